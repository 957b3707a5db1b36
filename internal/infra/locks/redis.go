package locks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"peerrent/internal/app/policies"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a cross-instance item lock built on SET NX PX. TTL bounds how long a crashed holder
// keeps the item blocked.
type Redis struct {
	Client    redis.UniversalClient
	Prefix    string
	TTL       time.Duration
	RetryWait time.Duration
	Logger    *slog.Logger
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (r *Redis) Lock(ctx context.Context, itemID string) (func(), error) {
	if r.Client == nil {
		return nil, errors.New("locks: redis client not configured")
	}
	key := r.key(itemID)
	token := uuid.NewString()
	for {
		ok, err := r.Client.SetNX(ctx, key, token, r.ttl()).Result()
		if err != nil {
			return nil, fmt.Errorf("locks: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(r.retryWait())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s", policies.ErrLockTimeout, itemID)
		case <-timer.C:
		}
	}
	return func() {
		// Release with a fresh context: the caller's may already be canceled.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, r.Client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			r.logger().Warn("item lock release failed", slog.String("key", key), slog.Any("err", err))
		}
	}, nil
}

func (r *Redis) key(itemID string) string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "peerrent:lock:item:"
	}
	return prefix + itemID
}

func (r *Redis) ttl() time.Duration {
	if r.TTL <= 0 {
		return 10 * time.Second
	}
	return r.TTL
}

func (r *Redis) retryWait() time.Duration {
	if r.RetryWait <= 0 {
		return 25 * time.Millisecond
	}
	return r.RetryWait
}

func (r *Redis) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

var _ policies.ItemLocker = (*Redis)(nil)
