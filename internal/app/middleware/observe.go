package middleware

import (
	"context"
	"log/slog"
	"time"

	"peerrent/internal/app/commands"
	"peerrent/internal/app/outcome"
	"peerrent/internal/app/queries"
)

// CommandObserver receives one observation per dispatched command.
type CommandObserver interface {
	ObserveCommand(key, result string, elapsed time.Duration)
}

// Observe reports key, classified outcome and latency of every command to the observer.
func Observe(obs CommandObserver) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			if obs != nil {
				obs.ObserveCommand(cmd.Key(), outcome.Classify(err), time.Since(start))
			}
			return res, err
		})
	}
}

// Logging writes one line per command. Expected domain refusals log at info, unexpected
// failures at error.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			kind := outcome.Classify(err)
			attrs := []any{
				slog.String("command", cmd.Key()),
				slog.String("outcome", kind),
				slog.Duration("duration", time.Since(start)),
			}
			switch kind {
			case outcome.OK, outcome.Duplicate:
				logger.DebugContext(ctx, "command handled", attrs...)
			case outcome.Error, outcome.StorageConflict:
				logger.ErrorContext(ctx, "command failed", append(attrs, slog.Any("err", err))...)
			default:
				logger.InfoContext(ctx, "command refused", append(attrs, slog.String("reason", err.Error()))...)
			}
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			res, err := nextFn(ctx, q)
			if kind := outcome.Classify(err); kind == outcome.Error {
				logger.ErrorContext(ctx, "query failed", slog.String("query", q.Key()), slog.Any("err", err))
			}
			return res, err
		})
	}
}
