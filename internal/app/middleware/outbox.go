package middleware

import (
	"context"
	"log/slog"

	"peerrent/internal/app/commands"
	"peerrent/internal/app/outbox"
)

// OutboxFlush asks the outbox to hand committed records to its publisher after a successful
// command. A flush failure is logged only: the records are durable and the worker picks them up.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				logger.WarnContext(ctx, "outbox flush failed", slog.String("command", cmd.Key()), slog.Any("err", err))
			}
			return res, nil
		})
	}
}
