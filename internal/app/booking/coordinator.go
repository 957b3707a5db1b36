package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"peerrent/internal/app/outbox"
	"peerrent/internal/app/policies"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/availability"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/clock"
	"peerrent/internal/domain/shared/events"
)

var ErrNotConfigured = errors.New("booking: coordinator missing dependencies")

// Observer is notified about calendar races the coordinator resolved.
type Observer interface {
	ConflictPrevented(itemID string)
}

// Coordinator runs a reservation command and its calendar side effects as one unit of work. Any
// command that can claim or release days runs inside the item's critical section, so two claims
// on the same item never interleave while different items proceed in parallel.
type Coordinator struct {
	UoWFactory uow.UoWFactory
	Locks      policies.ItemLocker
	Clock      clock.Clock
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Payments   policies.PaymentsPort
	Logger     *slog.Logger
	Observer   Observer
}

// Result describes what a command did. Reservation holds the state after the command, or the last
// stored state when the record was removed.
type Result struct {
	Reservation *reservation.Reservation
	Removed     bool
	Changed     bool
	Effects     []reservation.Effect
}

// ConfirmPayment applies a gateway payment confirmation: ledger check, MarkPaid and the range
// claim commit together or not at all. A lost race on the range surfaces as a Conflict.
func (c *Coordinator) ConfirmPayment(ctx context.Context, id reservation.ID, gatewayEventID string, now time.Time) (Result, error) {
	return c.Execute(ctx, id, reservation.MarkPaid{GatewayEventID: gatewayEventID}, now)
}

// Execute applies cmd to the stored reservation. A zero now reads the coordinator clock.
func (c *Coordinator) Execute(ctx context.Context, id reservation.ID, cmd reservation.Command, now time.Time) (Result, error) {
	if c.UoWFactory == nil {
		return Result{}, ErrNotConfigured
	}
	if cmd == nil {
		return Result{}, reservation.ErrUnknownCommand
	}
	current, err := c.peek(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if gw, ok := cmd.(reservation.GatewayCommand); ok && gw.EventID() != "" && current.HasApplied(gw.EventID()) {
		return Result{}, reservation.ErrAlreadyApplied
	}

	if reservation.TouchesCalendar(current, cmd) && c.Locks != nil {
		unlock, err := c.Locks.Lock(ctx, current.ItemID)
		if err != nil {
			return Result{}, err
		}
		defer unlock()
	}

	now = clock.NowOr(c.Clock, now)
	res, refund, err := c.run(ctx, id, cmd, now)
	if err != nil {
		return Result{}, err
	}
	if refund {
		c.requestRefund(ctx, res.Reservation)
	}
	return res, nil
}

// peek reads the reservation outside any lock to learn its item. The item never changes, so the
// lock decision is stable even if the record moves on before the unit begins.
func (c *Coordinator) peek(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	unit, err := c.UoWFactory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	execCtx := uow.Inject(ctx, unit)
	defer func() { _ = unit.Rollback(execCtx) }()
	return unit.Reservations().ByID(execCtx, id)
}

func (c *Coordinator) run(ctx context.Context, id reservation.ID, cmd reservation.Command, now time.Time) (Result, bool, error) {
	unit, err := c.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return Result{}, false, err
	}
	ctx = uow.Inject(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	stored, err := unit.Reservations().ByID(ctx, id)
	if err != nil {
		return Result{}, false, err
	}
	out, err := reservation.Apply(stored, cmd, now)
	if err != nil {
		return Result{}, false, err
	}
	if !out.Changed {
		return Result{Reservation: out.Reservation}, false, nil
	}
	pending := out.Reservation.DrainEvents()
	if follow := reservation.FollowUp(out.Reservation); follow != nil {
		chained, err := reservation.Apply(out.Reservation, follow, now)
		if err != nil {
			return Result{}, false, err
		}
		pending = append(pending, chained.Reservation.DrainEvents()...)
		chained.Effects = append(out.Effects, chained.Effects...)
		out = chained
	}

	indexEvents, err := c.applyCalendarEffects(ctx, unit, out, cmd, now)
	if err != nil {
		return Result{}, false, err
	}
	pending = append(pending, indexEvents...)

	if out.Removed {
		err = unit.Reservations().Delete(ctx, out.Reservation)
	} else {
		err = unit.Reservations().Save(ctx, out.Reservation)
	}
	if err != nil {
		return Result{}, false, err
	}
	if err := outbox.RecordDomainEvents(ctx, c.Outbox, c.Encoder, pending); err != nil {
		return Result{}, false, err
	}
	if err := unit.Commit(ctx); err != nil {
		return Result{}, false, err
	}
	committed = true

	return Result{
		Reservation: out.Reservation,
		Removed:     out.Removed,
		Changed:     true,
		Effects:     out.Effects,
	}, out.Has(reservation.EffectIssueRefund), nil
}

// applyCalendarEffects claims or releases the reservation's days on its item index. A failed claim
// leaves the index untouched and aborts the unit.
func (c *Coordinator) applyCalendarEffects(ctx context.Context, unit uow.UnitOfWork, out reservation.Outcome, cmd reservation.Command, now time.Time) ([]events.DomainEvent, error) {
	claim := out.Has(reservation.EffectClaimRange)
	release := out.Has(reservation.EffectReleaseRange)
	if !claim && !release {
		return nil, nil
	}
	r := out.Reservation
	index, err := unit.Availability().Index(ctx, r.ItemID)
	if err != nil {
		return nil, err
	}
	dirty := false
	for _, eff := range out.Effects {
		switch eff.Kind {
		case reservation.EffectClaimRange:
			if err := index.Claim(eff.Range, string(r.ID), now); err != nil {
				if errors.Is(err, availability.ErrConflict) {
					c.conflict(ctx, r, err)
					return nil, reservation.RangeTaken(cmd.Name(), err)
				}
				return nil, err
			}
			dirty = true
		case reservation.EffectReleaseRange:
			if index.Release(string(r.ID), now) > 0 {
				dirty = true
			}
		}
	}
	if !dirty {
		return nil, nil
	}
	if err := unit.Availability().Save(ctx, index); err != nil {
		return nil, err
	}
	return index.DrainEvents(), nil
}

func (c *Coordinator) conflict(ctx context.Context, r *reservation.Reservation, err error) {
	if c.Observer != nil {
		c.Observer.ConflictPrevented(r.ItemID)
	}
	c.logger().InfoContext(ctx, "overbooking prevented",
		slog.String("reservation_id", string(r.ID)),
		slog.String("item_id", r.ItemID),
		slog.String("reason", err.Error()),
	)
}

// requestRefund asks the gateway to refund after the cancellation committed. The reservation is
// already canceled and its days released; the refund itself is confirmed later by a gateway event.
func (c *Coordinator) requestRefund(ctx context.Context, r *reservation.Reservation) {
	if c.Payments == nil || r == nil || r.Total.IsZero() {
		return
	}
	if err := c.Payments.InitiateRefund(ctx, r.ID, r.Total); err != nil {
		c.logger().ErrorContext(ctx, "refund initiation failed",
			slog.String("reservation_id", string(r.ID)),
			slog.Any("err", err),
		)
	}
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
