package engine

import (
	"context"
	"time"

	"peerrent/internal/app/commands"
	"peerrent/internal/app/dto"
	availabilityapp "peerrent/internal/app/handlers/availability"
	paymentsapp "peerrent/internal/app/handlers/payments"
	reservationsapp "peerrent/internal/app/handlers/reservations"
	"peerrent/internal/app/queries"
	"peerrent/internal/domain/reservation"
)

// Call carries the per-request parameters shared by user commands. A zero At reads the clock.
type Call struct {
	ActorUID       string
	At             time.Time
	IdempotencyKey string
}

func (e *Engine) CreateReservation(ctx context.Context, cmd reservationsapp.CreateCommand) (*dto.Reservation, error) {
	return commands.Dispatch[reservationsapp.CreateCommand, *dto.Reservation](ctx, e.Commands, cmd)
}

func (e *Engine) Accept(ctx context.Context, id string, call Call) (*dto.TransitionResult, error) {
	return e.transition(ctx, id, reservationsapp.ActionAccept, "", call)
}

func (e *Engine) Reject(ctx context.Context, id string, call Call) (*dto.TransitionResult, error) {
	return e.transition(ctx, id, reservationsapp.ActionReject, "", call)
}

func (e *Engine) DeleteByOwner(ctx context.Context, id string, call Call) (*dto.TransitionResult, error) {
	return e.transition(ctx, id, reservationsapp.ActionDeleteByOwner, "", call)
}

func (e *Engine) DeleteByRenter(ctx context.Context, id string, call Call) (*dto.TransitionResult, error) {
	return e.transition(ctx, id, reservationsapp.ActionDeleteByRenter, "", call)
}

func (e *Engine) MarkPickup(ctx context.Context, id string, call Call) (*dto.TransitionResult, error) {
	return e.transition(ctx, id, reservationsapp.ActionMarkPickup, "", call)
}

func (e *Engine) CancelWithRefund(ctx context.Context, id string, call Call) (*dto.TransitionResult, error) {
	return e.transition(ctx, id, reservationsapp.ActionCancelWithRefund, "", call)
}

func (e *Engine) ConfirmReturn(ctx context.Context, id string, call Call) (*dto.TransitionResult, error) {
	return e.transition(ctx, id, reservationsapp.ActionConfirmReturn, "", call)
}

func (e *Engine) SubmitReview(ctx context.Context, id string, target reservation.ReviewTarget, call Call) (*dto.TransitionResult, error) {
	return e.transition(ctx, id, reservationsapp.ActionSubmitReview, string(target), call)
}

// Transition runs any user action by name.
func (e *Engine) Transition(ctx context.Context, cmd reservationsapp.TransitionCommand) (*dto.TransitionResult, error) {
	return commands.Dispatch[reservationsapp.TransitionCommand, *dto.TransitionResult](ctx, e.Commands, cmd)
}

func (e *Engine) RequestPayment(ctx context.Context, id string, call Call) (*dto.PaymentRedirect, error) {
	return commands.Dispatch[reservationsapp.RequestPaymentCommand, *dto.PaymentRedirect](ctx, e.Commands, reservationsapp.RequestPaymentCommand{
		ReservationID:   id,
		ActorUID:        call.ActorUID,
		At:              call.At,
		IdempotencyKeyV: call.IdempotencyKey,
	})
}

// Reconcile feeds one gateway event. Replays succeed with Duplicate set.
func (e *Engine) Reconcile(ctx context.Context, cmd paymentsapp.ReconcileCommand) (*dto.ReconcileResult, error) {
	return commands.Dispatch[paymentsapp.ReconcileCommand, *dto.ReconcileResult](ctx, e.Commands, cmd)
}

// ConfirmPayment is the paid event without an amount check.
func (e *Engine) ConfirmPayment(ctx context.Context, id, gatewayEventID string, at time.Time) (*dto.ReconcileResult, error) {
	return e.Reconcile(ctx, paymentsapp.ReconcileCommand{
		Type:           paymentsapp.EventPaid,
		ReservationID:  id,
		GatewayEventID: gatewayEventID,
		At:             at,
	})
}

func (e *Engine) Reservation(ctx context.Context, id, viewerUID string, at time.Time) (dto.Reservation, error) {
	return queries.Ask[reservationsapp.GetQuery, dto.Reservation](ctx, e.Queries, reservationsapp.GetQuery{
		ReservationID: id,
		ViewerUID:     viewerUID,
		At:            at,
	})
}

func (e *Engine) Permissions(ctx context.Context, id string, role reservation.Role, at time.Time) (dto.Permissions, error) {
	return queries.Ask[reservationsapp.PermissionsQuery, dto.Permissions](ctx, e.Queries, reservationsapp.PermissionsQuery{
		ReservationID: id,
		Role:          string(role),
		At:            at,
	})
}

func (e *Engine) ItemReservations(ctx context.Context, itemID string) ([]dto.Reservation, error) {
	return queries.Ask[reservationsapp.ListByItemQuery, []dto.Reservation](ctx, e.Queries, reservationsapp.ListByItemQuery{ItemID: itemID})
}

func (e *Engine) BlockedDays(ctx context.Context, itemID string) (dto.BlockedDays, error) {
	return queries.Ask[availabilityapp.BlockedDaysQuery, dto.BlockedDays](ctx, e.Queries, availabilityapp.BlockedDaysQuery{ItemID: itemID})
}

func (e *Engine) transition(ctx context.Context, id, action, target string, call Call) (*dto.TransitionResult, error) {
	return e.Transition(ctx, reservationsapp.TransitionCommand{
		ReservationID:   id,
		Action:          action,
		ActorUID:        call.ActorUID,
		ReviewTarget:    target,
		At:              call.At,
		IdempotencyKeyV: call.IdempotencyKey,
	})
}
