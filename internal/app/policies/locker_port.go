package policies

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("locks: timed out waiting for item lock")

// ItemLocker provides the per-item critical section. Locks on different items are independent.
type ItemLocker interface {
	Lock(ctx context.Context, itemID string) (unlock func(), err error)
}
