package policies

import (
	"context"

	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/money"
)

// PaymentsPort is the gateway client boundary. Confirmations arrive later as gateway events.
type PaymentsPort interface {
	// InitiatePayment starts a checkout and returns the URL the renter is redirected to.
	InitiatePayment(ctx context.Context, reservationID reservation.ID, amount money.Amount) (string, error)
	InitiateRefund(ctx context.Context, reservationID reservation.ID, amount money.Amount) error
}
