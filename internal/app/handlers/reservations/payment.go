package reservations

import (
	"context"
	"time"

	"peerrent/internal/app/commands"
	"peerrent/internal/app/dto"
	"peerrent/internal/app/handlers/support"
	"peerrent/internal/app/middleware"
	"peerrent/internal/app/policies"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/reservation"
)

const requestPaymentKey = "reservation.request_payment"

type RequestPaymentCommand struct {
	ReservationID   string    `validate:"required"`
	ActorUID        string    `validate:"required"`
	At              time.Time `idempotency:"-"`
	IdempotencyKeyV string    `idempotency:"-"`
}

func (c RequestPaymentCommand) Key() string { return requestPaymentKey }

// SelfTransacted: starting a checkout only reads the reservation.
func (c RequestPaymentCommand) SelfTransacted() {}

func (c RequestPaymentCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestPaymentCommand) IdempotencyScope() string { return c.ActorUID }

func (c RequestPaymentCommand) ResultPrototype() any { return &dto.PaymentRedirect{} }

// RequestPaymentHandler starts the gateway checkout for an accepted reservation. The reservation
// only becomes paid when the gateway confirms through reconciliation.
type RequestPaymentHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
}

func (h *RequestPaymentHandler) Handle(ctx context.Context, cmd RequestPaymentCommand) (*dto.PaymentRedirect, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	r, err := unit.Reservations().ByID(execCtx, reservation.ID(cmd.ReservationID))
	support.Release(cleanup)
	if err != nil {
		return nil, err
	}
	if err := reservation.CheckPayable(r, cmd.ActorUID); err != nil {
		return nil, err
	}
	url, err := h.Payments.InitiatePayment(ctx, r.ID, r.Total)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentRedirect{
		ReservationID: string(r.ID),
		Amount:        r.Total.Minor(),
		RedirectURL:   url,
	}, nil
}

var (
	_ commands.Handler[RequestPaymentCommand, *dto.PaymentRedirect] = (*RequestPaymentHandler)(nil)
	_ middleware.SelfTransacted                                     = RequestPaymentCommand{}
)
