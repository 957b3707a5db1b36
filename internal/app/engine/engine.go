// Package engine assembles the reservation engine: handlers on the command and query buses,
// wrapped in the middleware chain, with one method per public operation.
package engine

import (
	"errors"
	"log/slog"
	"time"

	"peerrent/internal/app/booking"
	"peerrent/internal/app/commands"
	"peerrent/internal/app/dto"
	availabilityapp "peerrent/internal/app/handlers/availability"
	paymentsapp "peerrent/internal/app/handlers/payments"
	reservationsapp "peerrent/internal/app/handlers/reservations"
	"peerrent/internal/app/middleware"
	"peerrent/internal/app/outbox"
	"peerrent/internal/app/policies"
	"peerrent/internal/app/queries"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/shared/clock"
)

var ErrMissingDependency = errors.New("engine: missing dependency")

// Metrics is the optional instrumentation sink.
type Metrics interface {
	middleware.CommandObserver
	booking.Observer
	paymentsapp.DuplicateObserver
}

type Deps struct {
	UoWFactory    uow.UoWFactory
	Items         policies.ItemCatalog
	Payments      policies.PaymentsPort
	Locks         policies.ItemLocker
	Outbox        outbox.Outbox
	Idempotency   middleware.IdempotencyStore
	Clock         clock.Clock
	Metrics       Metrics
	Logger        *slog.Logger
	RetryAttempts int
	RetryBackoff  []time.Duration
	NewID         func() string
}

type Engine struct {
	Commands    commands.Bus
	Queries     queries.Bus
	Coordinator *booking.Coordinator
}

func New(d Deps) (*Engine, error) {
	switch {
	case d.UoWFactory == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("unit of work factory"))
	case d.Items == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("item catalog"))
	case d.Payments == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("payments port"))
	case d.Outbox == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("outbox"))
	case d.Idempotency == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("idempotency store"))
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RetryAttempts <= 0 {
		d.RetryAttempts = 3
	}
	encoder := outbox.JSONEventEncoder{}

	coordinator := &booking.Coordinator{
		UoWFactory: d.UoWFactory,
		Locks:      d.Locks,
		Clock:      d.Clock,
		Outbox:     d.Outbox,
		Encoder:    encoder,
		Payments:   d.Payments,
		Logger:     d.Logger.With(slog.String("component", "booking")),
	}
	var cmdObserver middleware.CommandObserver
	var duplicates paymentsapp.DuplicateObserver
	if d.Metrics != nil {
		coordinator.Observer = d.Metrics
		cmdObserver = d.Metrics
		duplicates = d.Metrics
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, reservationsapp.CreateCommand{}.Key(), &reservationsapp.CreateHandler{
		UoWFactory: d.UoWFactory,
		Items:      d.Items,
		Clock:      d.Clock,
		Outbox:     d.Outbox,
		Encoder:    encoder,
		NewID:      d.NewID,
	})
	commands.RegisterHandler(commandBus, reservationsapp.TransitionCommand{}.Key(), &reservationsapp.TransitionHandler{
		Coordinator: coordinator,
	})
	commands.RegisterHandler(commandBus, reservationsapp.RequestPaymentCommand{}.Key(), &reservationsapp.RequestPaymentHandler{
		UoWFactory: d.UoWFactory,
		Payments:   d.Payments,
	})
	commands.RegisterHandler(commandBus, paymentsapp.ReconcileCommand{}.Key(), &paymentsapp.ReconcileHandler{
		UoWFactory:  d.UoWFactory,
		Coordinator: coordinator,
		Duplicates:  duplicates,
	})

	queryBus := queries.NewInMemoryBus()
	rq := &reservationsapp.QueryHandlers{UoWFactory: d.UoWFactory, Clock: d.Clock}
	queries.RegisterHandler(queryBus, reservationsapp.GetQuery{}.Key(), queries.HandlerFunc[reservationsapp.GetQuery, dto.Reservation](rq.Get))
	queries.RegisterHandler(queryBus, reservationsapp.PermissionsQuery{}.Key(), queries.HandlerFunc[reservationsapp.PermissionsQuery, dto.Permissions](rq.Permissions))
	queries.RegisterHandler(queryBus, reservationsapp.ListByItemQuery{}.Key(), queries.HandlerFunc[reservationsapp.ListByItemQuery, []dto.Reservation](rq.ListByItem))
	queries.RegisterHandler(queryBus, availabilityapp.BlockedDaysQuery{}.Key(), &availabilityapp.BlockedDaysHandler{UoWFactory: d.UoWFactory})

	validator := middleware.NewStructValidator()
	return &Engine{
		Commands: middleware.ChainCommands(
			commandBus,
			middleware.Observe(cmdObserver),
			middleware.Logging(d.Logger),
			middleware.Validation(validator),
			middleware.Idempotency(d.Idempotency, nil),
			middleware.Retry(d.RetryAttempts, d.RetryBackoff),
			middleware.Transaction(d.UoWFactory, nil),
			middleware.OutboxFlush(d.Outbox, d.Logger),
		),
		Queries: middleware.ChainQueries(
			queryBus,
			middleware.QueryLogging(d.Logger),
			middleware.QueryValidation(validator),
		),
		Coordinator: coordinator,
	}, nil
}
