package middleware

import (
	"context"
	"errors"
	"time"

	"peerrent/internal/app/commands"
	"peerrent/internal/app/uow"
)

// Retry re-dispatches a command that lost an optimistic version race. Attempts counts the first
// try; backoff[i] is the pause before retry i+1 (the last entry repeats).
func Retry(attempts int, backoff []time.Duration) CommandMiddleware {
	if attempts < 1 {
		attempts = 1
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var lastErr error
			for attempt := 0; attempt < attempts; attempt++ {
				if attempt > 0 {
					if err := sleepCtx(ctx, pause(backoff, attempt-1)); err != nil {
						return nil, errors.Join(lastErr, err)
					}
				}
				res, err := nextFn(ctx, cmd)
				if err == nil || !errors.Is(err, uow.ErrStorageConflict) {
					return res, err
				}
				lastErr = err
			}
			return nil, lastErr
		})
	}
}

func pause(backoff []time.Duration, i int) time.Duration {
	if len(backoff) == 0 {
		return 0
	}
	if i >= len(backoff) {
		return backoff[len(backoff)-1]
	}
	return backoff[i]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
