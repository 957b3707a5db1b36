package dto

import (
	"time"

	"peerrent/internal/domain/reservation"
)

type ReviewsOpen struct {
	RenterCanReviewOwner bool `json:"renter_can_review_owner"`
	RenterCanReviewItem  bool `json:"renter_can_review_item"`
	OwnerCanReviewRenter bool `json:"owner_can_review_renter"`
}

type Reservation struct {
	ID            string          `json:"id"`
	ItemID        string          `json:"item_id"`
	ItemOwnerUID  string          `json:"item_owner_uid"`
	RenterUID     string          `json:"renter_uid"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	Days          int             `json:"days"`
	MinRentalDays int             `json:"min_rental_days"`
	Total         int64           `json:"total"`
	IsFree        bool            `json:"is_free"`
	Status        string          `json:"status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	PickedUpAt    *time.Time      `json:"picked_up_at,omitempty"`
	ReturnedAt    *time.Time      `json:"returned_at,omitempty"`
	PaidOutAt     *time.Time      `json:"paid_out_at,omitempty"`
	CanceledAt    *time.Time      `json:"canceled_at,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
	ReviewsOpen   ReviewsOpen     `json:"reviews_open"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int64           `json:"version"`
	Permissions   map[string]bool `json:"permissions,omitempty"`
}

func MapReservation(r *reservation.Reservation) Reservation {
	if r == nil {
		return Reservation{}
	}
	return Reservation{
		ID:            string(r.ID),
		ItemID:        r.ItemID,
		ItemOwnerUID:  r.ItemOwnerUID,
		RenterUID:     r.RenterUID,
		StartDate:     r.Range.Start.String(),
		EndDate:       r.Range.End.String(),
		Days:          r.Days,
		MinRentalDays: r.MinRentalDays,
		Total:         r.Total.Minor(),
		IsFree:        r.IsFree,
		Status:        string(r.Status),
		PaidAt:        r.PaidAt,
		PickedUpAt:    r.PickedUpAt,
		ReturnedAt:    r.ReturnedAt,
		PaidOutAt:     r.PaidOutAt,
		CanceledAt:    r.CanceledAt,
		RefundedAt:    r.RefundedAt,
		ReviewsOpen: ReviewsOpen{
			RenterCanReviewOwner: r.ReviewsOpen.RenterCanReviewOwner,
			RenterCanReviewItem:  r.ReviewsOpen.RenterCanReviewItem,
			OwnerCanReviewRenter: r.ReviewsOpen.OwnerCanReviewRenter,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Version:   r.Version,
	}
}

// TransitionResult is returned by every reservation command.
type TransitionResult struct {
	Reservation Reservation `json:"reservation"`
	Removed     bool        `json:"removed"`
	Changed     bool        `json:"changed"`
	Effects     []string    `json:"effects,omitempty"`
}

type PaymentRedirect struct {
	ReservationID string `json:"reservation_id"`
	Amount        int64  `json:"amount"`
	RedirectURL   string `json:"redirect_url"`
}

type Permissions struct {
	ReservationID string          `json:"reservation_id"`
	Role          string          `json:"role"`
	At            time.Time       `json:"at"`
	Allowed       map[string]bool `json:"allowed"`
}

// ReconcileResult reports the outcome of a gateway event. Duplicate events succeed with
// Duplicate set.
type ReconcileResult struct {
	ReservationID  string `json:"reservation_id"`
	GatewayEventID string `json:"gateway_event_id"`
	Type           string `json:"type"`
	Duplicate      bool   `json:"duplicate"`
	Status         string `json:"status,omitempty"`
}
