package reservation

import (
	"time"

	"peerrent/internal/domain/shared/daterange"
	"peerrent/internal/domain/shared/money"
)

type Requested struct {
	ReservationID ID              `json:"reservation_id"`
	ItemID        string          `json:"item_id"`
	RenterUID     string          `json:"renter_uid"`
	Range         daterange.Range `json:"range"`
	Total         money.Amount    `json:"total"`
	At            time.Time       `json:"at"`
}

func (e Requested) EventName() string     { return "reservation.requested" }
func (e Requested) AggregateID() string   { return string(e.ReservationID) }
func (e Requested) OccurredAt() time.Time { return e.At }

// StatusChanged is raised on every status transition; its name carries the target status.
type StatusChanged struct {
	ReservationID ID        `json:"reservation_id"`
	ItemID        string    `json:"item_id"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	Command       string    `json:"command"`
	At            time.Time `json:"at"`
}

func (e StatusChanged) EventName() string     { return "reservation." + string(e.To) }
func (e StatusChanged) AggregateID() string   { return string(e.ReservationID) }
func (e StatusChanged) OccurredAt() time.Time { return e.At }

type Removed struct {
	ReservationID ID        `json:"reservation_id"`
	ItemID        string    `json:"item_id"`
	Status        Status    `json:"status"`
	Command       string    `json:"command"`
	ByUID         string    `json:"by_uid"`
	At            time.Time `json:"at"`
}

func (e Removed) EventName() string     { return "reservation.removed" }
func (e Removed) AggregateID() string   { return string(e.ReservationID) }
func (e Removed) OccurredAt() time.Time { return e.At }

type ReviewClosed struct {
	ReservationID ID           `json:"reservation_id"`
	Target        ReviewTarget `json:"target"`
	AuthorUID     string       `json:"author_uid"`
	At            time.Time    `json:"at"`
}

func (e ReviewClosed) EventName() string     { return "reservation.review_closed" }
func (e ReviewClosed) AggregateID() string   { return string(e.ReservationID) }
func (e ReviewClosed) OccurredAt() time.Time { return e.At }

type RefundConfirmed struct {
	ReservationID  ID        `json:"reservation_id"`
	GatewayEventID string    `json:"gateway_event_id"`
	At             time.Time `json:"at"`
}

func (e RefundConfirmed) EventName() string     { return "reservation.refund_confirmed" }
func (e RefundConfirmed) AggregateID() string   { return string(e.ReservationID) }
func (e RefundConfirmed) OccurredAt() time.Time { return e.At }
