package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithinIsInclusiveAtBothEnds(t *testing.T) {
	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	week := 7 * 24 * time.Hour

	assert.True(t, Within(since, since, week))
	assert.True(t, Within(since, since.Add(week), week))
	assert.False(t, Within(since, since.Add(week+time.Second), week))
	assert.False(t, Within(since, since.Add(-time.Second), week))
}

func TestElapsed(t *testing.T) {
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, Elapsed(since, since.Add(23*time.Hour), 24*time.Hour))
	assert.True(t, Elapsed(since, since.Add(24*time.Hour), 24*time.Hour))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)
	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(time.Hour), c.Advance(time.Hour))
	assert.Equal(t, start.Add(time.Hour), NowOr(c, time.Time{}))
	assert.Equal(t, start, NowOr(c, start))
}
