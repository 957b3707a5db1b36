package availability

import (
	"time"

	"peerrent/internal/domain/shared/daterange"
)

type RangeClaimed struct {
	ItemID        string          `json:"item_id"`
	Range         daterange.Range `json:"range"`
	ReservationID string          `json:"reservation_id"`
	At            time.Time       `json:"at"`
}

func (e RangeClaimed) EventName() string     { return "availability.range_claimed" }
func (e RangeClaimed) AggregateID() string   { return e.ItemID }
func (e RangeClaimed) OccurredAt() time.Time { return e.At }

type RangeReleased struct {
	ItemID        string          `json:"item_id"`
	Days          []daterange.Day `json:"days"`
	ReservationID string          `json:"reservation_id"`
	At            time.Time       `json:"at"`
}

func (e RangeReleased) EventName() string     { return "availability.range_released" }
func (e RangeReleased) AggregateID() string   { return e.ItemID }
func (e RangeReleased) OccurredAt() time.Time { return e.At }

type OverbookingPrevented struct {
	ItemID        string          `json:"item_id"`
	Range         daterange.Range `json:"range"`
	Day           daterange.Day   `json:"day"`
	ReservationID string          `json:"reservation_id"`
	HeldBy        string          `json:"held_by"`
	At            time.Time       `json:"at"`
}

func (e OverbookingPrevented) EventName() string     { return "availability.overbooking_prevented" }
func (e OverbookingPrevented) AggregateID() string   { return e.ItemID }
func (e OverbookingPrevented) OccurredAt() time.Time { return e.At }
