package reservations

import (
	"context"
	"fmt"
	"time"

	"peerrent/internal/app/booking"
	"peerrent/internal/app/commands"
	"peerrent/internal/app/dto"
	"peerrent/internal/app/middleware"
	"peerrent/internal/app/outcome"
	"peerrent/internal/domain/reservation"
)

const transitionKey = "reservation.transition"

// Actions accepted by TransitionCommand.
const (
	ActionAccept           = "accept"
	ActionReject           = "reject"
	ActionDeleteByOwner    = "delete_by_owner"
	ActionDeleteByRenter   = "delete_by_renter"
	ActionMarkPickup       = "mark_pickup"
	ActionCancelWithRefund = "cancel_with_refund"
	ActionConfirmReturn    = "confirm_return"
	ActionSubmitReview     = "submit_review"
)

// TransitionCommand carries a user-initiated state change. Gateway-originated changes go through
// payment reconciliation instead.
type TransitionCommand struct {
	ReservationID   string    `validate:"required"`
	Action          string    `validate:"required,oneof=accept reject delete_by_owner delete_by_renter mark_pickup cancel_with_refund confirm_return submit_review"`
	ActorUID        string    `validate:"required"`
	ReviewTarget    string    `validate:"required_if=Action submit_review"`
	At              time.Time `idempotency:"-"`
	IdempotencyKeyV string    `idempotency:"-"`
}

func (c TransitionCommand) Key() string { return transitionKey }

func (c TransitionCommand) SelfTransacted() {}

func (c TransitionCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c TransitionCommand) IdempotencyScope() string { return c.ActorUID }

func (c TransitionCommand) ResultPrototype() any { return &dto.TransitionResult{} }

// DomainCommand translates the action into the state machine's command.
func (c TransitionCommand) DomainCommand() (reservation.Command, error) {
	switch c.Action {
	case ActionAccept:
		return reservation.Accept{Actor: c.ActorUID}, nil
	case ActionReject:
		return reservation.Reject{Actor: c.ActorUID}, nil
	case ActionDeleteByOwner:
		return reservation.DeleteByOwner{Actor: c.ActorUID}, nil
	case ActionDeleteByRenter:
		return reservation.DeleteByRenter{Actor: c.ActorUID}, nil
	case ActionMarkPickup:
		return reservation.MarkPickup{Actor: c.ActorUID}, nil
	case ActionCancelWithRefund:
		return reservation.CancelWithRefund{Actor: c.ActorUID}, nil
	case ActionConfirmReturn:
		return reservation.ConfirmReturn{Actor: c.ActorUID}, nil
	case ActionSubmitReview:
		target := reservation.ReviewTarget(c.ReviewTarget)
		if !target.Valid() {
			return nil, fmt.Errorf("%w: review target %q", outcome.ErrInvalidInput, c.ReviewTarget)
		}
		return reservation.SubmitReview{Actor: c.ActorUID, Target: target}, nil
	}
	return nil, fmt.Errorf("%w: action %q", outcome.ErrInvalidInput, c.Action)
}

type TransitionHandler struct {
	Coordinator *booking.Coordinator
}

func (h *TransitionHandler) Handle(ctx context.Context, cmd TransitionCommand) (*dto.TransitionResult, error) {
	domainCmd, err := cmd.DomainCommand()
	if err != nil {
		return nil, err
	}
	res, err := h.Coordinator.Execute(ctx, reservation.ID(cmd.ReservationID), domainCmd, cmd.At)
	if err != nil {
		return nil, err
	}
	return MapResult(res), nil
}

func MapResult(res booking.Result) *dto.TransitionResult {
	out := &dto.TransitionResult{
		Reservation: dto.MapReservation(res.Reservation),
		Removed:     res.Removed,
		Changed:     res.Changed,
	}
	for _, eff := range res.Effects {
		out.Effects = append(out.Effects, string(eff.Kind))
	}
	return out
}

var (
	_ commands.Handler[TransitionCommand, *dto.TransitionResult] = (*TransitionHandler)(nil)
	_ middleware.SelfTransacted                                  = TransitionCommand{}
	_ middleware.IdempotentCommand                               = TransitionCommand{}
)
