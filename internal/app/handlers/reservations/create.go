package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"peerrent/internal/app/commands"
	"peerrent/internal/app/dto"
	"peerrent/internal/app/middleware"
	"peerrent/internal/app/outbox"
	"peerrent/internal/app/outcome"
	"peerrent/internal/app/policies"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/clock"
	"peerrent/internal/domain/shared/daterange"
)

const createKey = "reservation.create"

var ErrUnitOfWorkRequired = errors.New("reservations: unit of work required")

type CreateCommand struct {
	ReservationID   string
	ItemID          string    `validate:"required"`
	RenterUID       string    `validate:"required"`
	StartDate       string    `validate:"required,datetime=2006-01-02"`
	EndDate         string    `validate:"required,datetime=2006-01-02"`
	At              time.Time `idempotency:"-"`
	IdempotencyKeyV string    `idempotency:"-"`
}

func (c CreateCommand) Key() string { return createKey }

func (c CreateCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateCommand) IdempotencyScope() string { return c.RenterUID }

func (c CreateCommand) ResultPrototype() any { return &dto.Reservation{} }

// CreateHandler records a rental request. It runs inside the unit opened by the transaction
// middleware, or its own when dispatched without one.
type CreateHandler struct {
	UoWFactory uow.UoWFactory
	Items      policies.ItemCatalog
	Clock      clock.Clock
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	NewID      func() string
}

func (h *CreateHandler) Handle(ctx context.Context, cmd CreateCommand) (*dto.Reservation, error) {
	unit, ok := uow.FromContext(ctx)
	managed := false
	committed := false
	if !ok {
		if h.UoWFactory == nil {
			return nil, ErrUnitOfWorkRequired
		}
		var err error
		unit, err = h.UoWFactory.Begin(ctx, uow.TxOptions{})
		if err != nil {
			return nil, err
		}
		ctx = uow.Inject(ctx, unit)
		managed = true
	}
	if managed {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	start, err := daterange.ParseDay(cmd.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := daterange.ParseDay(cmd.EndDate)
	if err != nil {
		return nil, err
	}
	item, err := h.Items.Item(ctx, cmd.ItemID)
	if err != nil {
		return nil, err
	}

	id := reservation.ID(cmd.ReservationID)
	if id == "" {
		id = reservation.ID(h.newID())
	} else if _, err := unit.Reservations().ByID(ctx, id); err == nil {
		return nil, fmt.Errorf("%w: reservation %s already exists", outcome.ErrInvalidInput, id)
	} else if !errors.Is(err, reservation.ErrNotFound) {
		return nil, err
	}
	r, err := reservation.New(reservation.CreateParams{
		ID:        id,
		Item:      item,
		RenterUID: cmd.RenterUID,
		Range:     daterange.Range{Start: start, End: end},
		CreatedAt: clock.NowOr(h.Clock, cmd.At),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Reservations().Save(ctx, r); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, r.DrainEvents()); err != nil {
		return nil, err
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}
	out := dto.MapReservation(r)
	return &out, nil
}

func (h *CreateHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

var (
	_ commands.Handler[CreateCommand, *dto.Reservation] = (*CreateHandler)(nil)
	_ middleware.IdempotentCommand                      = CreateCommand{}
)
