package uow

import (
	"context"
	"errors"

	"peerrent/internal/domain/availability"
	"peerrent/internal/domain/reservation"
)

// ErrStorageConflict signals that an optimistic version check failed on commit or save. The whole
// unit may be retried from scratch.
var ErrStorageConflict = errors.New("uow: storage version conflict")

// UnitOfWork spans the reservation record and the item's availability index so both are written
// or neither is.
type UnitOfWork interface {
	Reservations() reservation.Repository
	Availability() availability.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// Inject returns ctx enriched with whatever the unit needs downstream (a database session for
// instance) and with the unit itself.
func Inject(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}
