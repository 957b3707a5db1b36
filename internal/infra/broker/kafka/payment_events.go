package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"peerrent/internal/app/dto"
	paymentsapp "peerrent/internal/app/handlers/payments"
	"peerrent/internal/app/outcome"
)

// Reconciler is the engine entry point for gateway events.
type Reconciler interface {
	Reconcile(ctx context.Context, cmd paymentsapp.ReconcileCommand) (*dto.ReconcileResult, error)
}

// PaymentEvent is the gateway notification as published on the payments topic. It may arrive
// bare or as the data of a CloudEvents envelope.
type PaymentEvent struct {
	Type           string    `json:"type"`
	ReservationID  string    `json:"reservation_id"`
	GatewayEventID string    `json:"gateway_event_id"`
	Amount         *int64    `json:"amount,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type cloudEvent struct {
	SpecVersion string          `json:"specversion"`
	ID          string          `json:"id"`
	Data        json.RawMessage `json:"data"`
}

var ErrMalformedEvent = errors.New("kafka: malformed payment event")

// PaymentEventsHandler feeds the payments topic into reconciliation. Events the engine refuses
// are logged and committed; only transient failures are returned for redelivery.
type PaymentEventsHandler struct {
	Engine Reconciler
	Logger *slog.Logger
}

func (h PaymentEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	log := h.logger().With(
		slog.String("topic", msg.Topic),
		slog.Int("partition", int(msg.Partition)),
		slog.Int64("offset", msg.Offset),
	)
	evt, err := DecodePaymentEvent(msg.Value)
	if err != nil {
		log.WarnContext(ctx, "dropping malformed payment event", slog.Any("err", err))
		return nil
	}
	res, err := h.Engine.Reconcile(ctx, paymentsapp.ReconcileCommand{
		Type:           evt.Type,
		ReservationID:  evt.ReservationID,
		GatewayEventID: evt.GatewayEventID,
		Amount:         evt.Amount,
		At:             evt.OccurredAt,
	})
	switch result := outcome.Classify(err); result {
	case outcome.OK:
		log.InfoContext(ctx, "payment event applied",
			slog.String("reservation_id", res.ReservationID),
			slog.String("gateway_event_id", res.GatewayEventID),
			slog.Bool("duplicate", res.Duplicate),
			slog.String("status", res.Status),
		)
		return nil
	case outcome.StorageConflict, outcome.Canceled, outcome.Error:
		return err
	default:
		log.WarnContext(ctx, "payment event refused",
			slog.String("reservation_id", evt.ReservationID),
			slog.String("gateway_event_id", evt.GatewayEventID),
			slog.String("outcome", result),
			slog.Any("err", err),
		)
		return nil
	}
}

// DecodePaymentEvent accepts a bare event or a CloudEvents envelope carrying one.
func DecodePaymentEvent(raw []byte) (PaymentEvent, error) {
	var env cloudEvent
	if err := json.Unmarshal(raw, &env); err != nil {
		return PaymentEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	body := raw
	if env.SpecVersion != "" && len(env.Data) > 0 {
		body = env.Data
	}
	var evt PaymentEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return PaymentEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.GatewayEventID == "" && env.ID != "" {
		evt.GatewayEventID = env.ID
	}
	if evt.Type == "" || evt.ReservationID == "" || evt.GatewayEventID == "" {
		return PaymentEvent{}, fmt.Errorf("%w: type, reservation_id and gateway_event_id are required", ErrMalformedEvent)
	}
	return evt, nil
}

func (h PaymentEventsHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
