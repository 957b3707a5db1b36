package clock

import (
	"sync"
	"time"
)

// Clock is the wall-clock port. Production code uses System; tests inject a Manual clock.
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Manual is a settable clock for deterministic tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t.UTC()
}

func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// Within reports whether now falls inside the closed window [since, since+window].
func Within(since, now time.Time, window time.Duration) bool {
	if now.Before(since) {
		return false
	}
	return now.Sub(since) <= window
}

// Elapsed reports whether at least d has passed between since and now.
func Elapsed(since, now time.Time, d time.Duration) bool {
	return now.Sub(since) >= d
}

// NowOr returns at when it is set, otherwise the clock reading.
func NowOr(c Clock, at time.Time) time.Time {
	if !at.IsZero() {
		return at.UTC()
	}
	if c == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}
