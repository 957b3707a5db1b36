package dto

import (
	"peerrent/internal/domain/availability"
)

type BlockedDay struct {
	Date          string `json:"date"`
	ReservationID string `json:"reservation_id"`
}

type BlockedDays struct {
	ItemID string       `json:"item_id"`
	Days   []BlockedDay `json:"days"`
}

func MapBlockedDays(idx *availability.Index) BlockedDays {
	out := BlockedDays{Days: []BlockedDay{}}
	if idx == nil {
		return out
	}
	out.ItemID = idx.ItemID
	for _, day := range idx.BlockedDays() {
		owner, _ := idx.OwnerOf(day)
		out.Days = append(out.Days, BlockedDay{Date: day.String(), ReservationID: owner})
	}
	return out
}
