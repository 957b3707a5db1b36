package locks

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerrent/internal/app/policies"
)

func TestRedisDefaults(t *testing.T) {
	r := &Redis{}
	assert.Equal(t, "peerrent:lock:item:drill", r.key("drill"))
	assert.Equal(t, 10*time.Second, r.ttl())
	assert.Equal(t, 25*time.Millisecond, r.retryWait())

	r = &Redis{Prefix: "test:", TTL: time.Second}
	assert.Equal(t, "test:drill", r.key("drill"))
	assert.Equal(t, time.Second, r.ttl())
}

func TestRedisRequiresClient(t *testing.T) {
	_, err := (&Redis{}).Lock(context.Background(), "drill")
	require.Error(t, err)
}

func TestRedisUnreachableIsNotATimeout(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	_, err := (&Redis{Client: client}).Lock(context.Background(), "drill")
	require.Error(t, err)
	assert.NotErrorIs(t, err, policies.ErrLockTimeout)
	assert.Contains(t, err.Error(), "peerrent:lock:item:drill")
}
