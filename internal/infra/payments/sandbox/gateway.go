// Package sandbox is a stand-in payment gateway. Checkout links point at a configurable base URL
// and refund requests are published for the gateway side to pick up.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"peerrent/internal/app/policies"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/money"
)

var ErrRedirectBase = errors.New("sandbox: invalid redirect base url")

type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// RefundRequest is the message published for every refund the engine asks for.
type RefundRequest struct {
	RequestID     string    `json:"request_id"`
	ReservationID string    `json:"reservation_id"`
	Amount        int64     `json:"amount"`
	RequestedAt   time.Time `json:"requested_at"`
}

type Gateway struct {
	RedirectBase string
	Publisher    Publisher
	Topic        string
	Logger       *slog.Logger
	NewID        func() string

	mu      sync.Mutex
	refunds []RefundRequest
}

func (g *Gateway) InitiatePayment(ctx context.Context, id reservation.ID, amount money.Amount) (string, error) {
	base, err := url.Parse(g.RedirectBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", ErrRedirectBase
	}
	q := base.Query()
	q.Set("reservation_id", string(id))
	q.Set("amount", strconv.FormatInt(amount.Minor(), 10))
	q.Set("session", g.newID())
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (g *Gateway) InitiateRefund(ctx context.Context, id reservation.ID, amount money.Amount) error {
	req := RefundRequest{
		RequestID:     g.newID(),
		ReservationID: string(id),
		Amount:        amount.Minor(),
		RequestedAt:   time.Now().UTC(),
	}
	g.mu.Lock()
	g.refunds = append(g.refunds, req)
	g.mu.Unlock()

	if g.Publisher == nil {
		g.logger().InfoContext(ctx, "sandbox refund requested",
			slog.String("reservation_id", req.ReservationID),
			slog.Int64("amount", req.Amount),
		)
		return nil
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return g.Publisher.Publish(ctx, g.topic(), req.ReservationID, payload, map[string]string{
		"content-type": "application/json",
		"request_id":   req.RequestID,
	})
}

// Refunds lists refund requests made so far.
func (g *Gateway) Refunds() []RefundRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RefundRequest(nil), g.refunds...)
}

func (g *Gateway) topic() string {
	if g.Topic != "" {
		return g.Topic
	}
	return "payments.refund_requests.v1"
}

func (g *Gateway) newID() string {
	if g.NewID != nil {
		return g.NewID()
	}
	return uuid.NewString()
}

func (g *Gateway) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

var _ policies.PaymentsPort = (*Gateway)(nil)
