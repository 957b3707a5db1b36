package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"peerrent/internal/app/booking"
	"peerrent/internal/app/commands"
	"peerrent/internal/app/dto"
	"peerrent/internal/app/handlers/support"
	"peerrent/internal/app/middleware"
	"peerrent/internal/app/outcome"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/reservation"
)

const reconcileKey = "payments.reconcile"

// Gateway event types.
const (
	EventPaid     = "paid"
	EventRefunded = "refunded"
	EventPaidOut  = "paid_out"
)

// ReconcileCommand is one gateway notification. Amount is optional; when present it must match
// the reservation total for paid and refunded events.
type ReconcileCommand struct {
	Type           string    `validate:"required,oneof=paid refunded paid_out" json:"type"`
	ReservationID  string    `validate:"required" json:"reservation_id"`
	GatewayEventID string    `validate:"required" json:"gateway_event_id"`
	Amount         *int64    `validate:"omitempty,min=0" json:"amount,omitempty"`
	At             time.Time `json:"at"`
}

func (c ReconcileCommand) Key() string { return reconcileKey }

func (c ReconcileCommand) SelfTransacted() {}

// DuplicateObserver is told about gateway retries that were absorbed.
type DuplicateObserver interface {
	DuplicateGatewayEvent(eventType string)
}

// ReconcileHandler maps gateway events onto the state machine. A replayed event id is a success
// with Duplicate set, whether it is caught by the ledger before the lock or by the coordinator.
type ReconcileHandler struct {
	UoWFactory  uow.UoWFactory
	Coordinator *booking.Coordinator
	Duplicates  DuplicateObserver
}

func (h *ReconcileHandler) Handle(ctx context.Context, cmd ReconcileCommand) (*dto.ReconcileResult, error) {
	domainCmd, err := gatewayCommand(cmd)
	if err != nil {
		return nil, err
	}
	result := &dto.ReconcileResult{
		ReservationID:  cmd.ReservationID,
		GatewayEventID: cmd.GatewayEventID,
		Type:           cmd.Type,
	}

	current, err := h.load(ctx, reservation.ID(cmd.ReservationID))
	if err != nil {
		return nil, err
	}
	if current.HasApplied(cmd.GatewayEventID) {
		return h.duplicate(result, current), nil
	}
	if cmd.Amount != nil && cmd.Type != EventPaidOut && *cmd.Amount != current.Total.Minor() {
		return nil, reservation.AmountMismatch(domainCmd.Name(), current.Status, current.Total.Minor(), *cmd.Amount)
	}

	res, err := h.Coordinator.Execute(ctx, current.ID, domainCmd, cmd.At)
	if errors.Is(err, reservation.ErrAlreadyApplied) {
		return h.duplicate(result, current), nil
	}
	if err != nil {
		return nil, err
	}
	result.Status = string(res.Reservation.Status)
	return result, nil
}

func (h *ReconcileHandler) duplicate(result *dto.ReconcileResult, current *reservation.Reservation) *dto.ReconcileResult {
	if h.Duplicates != nil {
		h.Duplicates.DuplicateGatewayEvent(result.Type)
	}
	result.Duplicate = true
	result.Status = string(current.Status)
	return result
}

func (h *ReconcileHandler) load(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer support.Release(cleanup)
	return unit.Reservations().ByID(execCtx, id)
}

func gatewayCommand(cmd ReconcileCommand) (reservation.GatewayCommand, error) {
	switch cmd.Type {
	case EventPaid:
		return reservation.MarkPaid{GatewayEventID: cmd.GatewayEventID}, nil
	case EventRefunded:
		return reservation.ConfirmRefund{GatewayEventID: cmd.GatewayEventID}, nil
	case EventPaidOut:
		return reservation.MarkPaidOut{GatewayEventID: cmd.GatewayEventID}, nil
	}
	return nil, fmt.Errorf("%w: gateway event type %q", outcome.ErrInvalidInput, cmd.Type)
}

var (
	_ commands.Handler[ReconcileCommand, *dto.ReconcileResult] = (*ReconcileHandler)(nil)
	_ middleware.SelfTransacted                                = ReconcileCommand{}
)
