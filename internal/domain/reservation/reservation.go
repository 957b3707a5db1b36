package reservation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"peerrent/internal/domain/shared/daterange"
	"peerrent/internal/domain/shared/events"
	"peerrent/internal/domain/shared/money"
)

// RefundWindow is how long after payment a renter may still cancel with a full refund.
const RefundWindow = 7 * 24 * time.Hour

type ID string

type Status string

const (
	StatusRequested Status = "requested"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
	StatusPickedUp  Status = "picked_up"
	StatusReturned  Status = "returned"
	StatusPaidOut   Status = "paid_out"
	StatusCanceled  Status = "canceled"
)

var allStatuses = []Status{
	StatusRequested, StatusAccepted, StatusRejected, StatusPaid,
	StatusPickedUp, StatusReturned, StatusPaidOut, StatusCanceled,
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range allStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", fmt.Errorf("reservation: unknown status %q", raw)
}

// BlocksCalendar reports whether a reservation in this status owns its days on the item calendar.
func (s Status) BlocksCalendar() bool {
	switch s {
	case StatusPaid, StatusPickedUp, StatusReturned, StatusPaidOut:
		return true
	}
	return false
}

// Deletable reports whether the record may be physically removed.
func (s Status) Deletable() bool {
	switch s {
	case StatusRequested, StatusRejected, StatusCanceled:
		return true
	}
	return false
}

type ReviewTarget string

const (
	ReviewRenterToOwner ReviewTarget = "renter_to_owner"
	ReviewRenterToItem  ReviewTarget = "renter_to_item"
	ReviewOwnerToRenter ReviewTarget = "owner_to_renter"
)

func (t ReviewTarget) Valid() bool {
	switch t {
	case ReviewRenterToOwner, ReviewRenterToItem, ReviewOwnerToRenter:
		return true
	}
	return false
}

type ReviewsOpen struct {
	RenterCanReviewOwner bool
	RenterCanReviewItem  bool
	OwnerCanReviewRenter bool
}

func AllReviewsOpen() ReviewsOpen {
	return ReviewsOpen{RenterCanReviewOwner: true, RenterCanReviewItem: true, OwnerCanReviewRenter: true}
}

func (o ReviewsOpen) IsOpen(t ReviewTarget) bool {
	switch t {
	case ReviewRenterToOwner:
		return o.RenterCanReviewOwner
	case ReviewRenterToItem:
		return o.RenterCanReviewItem
	case ReviewOwnerToRenter:
		return o.OwnerCanReviewRenter
	}
	return false
}

func (o *ReviewsOpen) close(t ReviewTarget) {
	switch t {
	case ReviewRenterToOwner:
		o.RenterCanReviewOwner = false
	case ReviewRenterToItem:
		o.RenterCanReviewItem = false
	case ReviewOwnerToRenter:
		o.OwnerCanReviewRenter = false
	}
}

// Item is the snapshot of the external item record taken when a reservation is requested.
type Item struct {
	ID            string
	OwnerUID      string
	MinRentalDays int
	DailyRate     money.Amount
	IsFree        bool
}

type Reservation struct {
	ID            ID
	ItemID        string
	ItemOwnerUID  string
	RenterUID     string
	Range         daterange.Range
	Days          int
	MinRentalDays int
	Total         money.Amount
	IsFree        bool
	Status        Status

	PaidAt     *time.Time
	PickedUpAt *time.Time
	ReturnedAt *time.Time
	PaidOutAt  *time.Time
	CanceledAt *time.Time
	RefundedAt *time.Time

	ReviewsOpen ReviewsOpen
	// GatewayEventsApplied is the idempotency ledger of consumed gateway event ids.
	GatewayEventsApplied []string

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Reservation, error)
	// Save writes with optimistic concurrency on Version and bumps it on success.
	Save(ctx context.Context, r *Reservation) error
	Delete(ctx context.Context, r *Reservation) error
	ListByItem(ctx context.Context, itemID string) ([]*Reservation, error)
}

type CreateParams struct {
	ID        ID
	Item      Item
	RenterUID string
	Range     daterange.Range
	CreatedAt time.Time
}

// New validates a rental request and builds the reservation in requested status.
func New(params CreateParams) (*Reservation, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, fmt.Errorf("%w: id", ErrInvalidParams)
	}
	if strings.TrimSpace(params.Item.ID) == "" || strings.TrimSpace(params.Item.OwnerUID) == "" {
		return nil, fmt.Errorf("%w: item", ErrInvalidParams)
	}
	renter := strings.TrimSpace(params.RenterUID)
	if renter == "" {
		return nil, fmt.Errorf("%w: renter", ErrInvalidParams)
	}
	if err := params.Range.Validate(); err != nil {
		return nil, violation(CodeInvalidRange, "request", "", err.Error())
	}
	if renter == params.Item.OwnerUID {
		return nil, violation(CodeSelfRental, "request", "", "owners cannot rent their own item")
	}
	days := params.Range.Days()
	if days < params.Item.MinRentalDays {
		return nil, violation(CodeBelowMinRentalDays, "request", "",
			fmt.Sprintf("%d days requested, item requires at least %d", days, params.Item.MinRentalDays))
	}
	total := money.Amount(0)
	if !params.Item.IsFree {
		var err error
		total, err = params.Item.DailyRate.Times(days)
		if err != nil {
			return nil, err
		}
	}
	now := params.CreatedAt.UTC()
	r := &Reservation{
		ID:            params.ID,
		ItemID:        params.Item.ID,
		ItemOwnerUID:  params.Item.OwnerUID,
		RenterUID:     renter,
		Range:         params.Range,
		Days:          days,
		MinRentalDays: params.Item.MinRentalDays,
		Total:         total,
		IsFree:        params.Item.IsFree,
		Status:        StatusRequested,
		ReviewsOpen:   AllReviewsOpen(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.Record(Requested{ReservationID: r.ID, ItemID: r.ItemID, RenterUID: r.RenterUID, Range: r.Range, Total: r.Total, At: now})
	return r, nil
}

func (r *Reservation) HasApplied(gatewayEventID string) bool {
	for _, id := range r.GatewayEventsApplied {
		if id == gatewayEventID {
			return true
		}
	}
	return false
}

// ActorFor resolves the uid acting in the given role.
func (r *Reservation) ActorFor(role Role) string {
	switch role {
	case RoleOwner:
		return r.ItemOwnerUID
	case RoleRenter:
		return r.RenterUID
	}
	return ""
}

// Clone deep-copies the aggregate; pending events are not carried over.
func (r *Reservation) Clone() *Reservation {
	cp := *r
	cp.EventRecorder = events.EventRecorder{}
	cp.PaidAt = cloneTime(r.PaidAt)
	cp.PickedUpAt = cloneTime(r.PickedUpAt)
	cp.ReturnedAt = cloneTime(r.ReturnedAt)
	cp.PaidOutAt = cloneTime(r.PaidOutAt)
	cp.CanceledAt = cloneTime(r.CanceledAt)
	cp.RefundedAt = cloneTime(r.RefundedAt)
	cp.GatewayEventsApplied = append([]string(nil), r.GatewayEventsApplied...)
	return &cp
}

// CheckInvariants verifies status/timestamp coupling and timestamp ordering.
func (r *Reservation) CheckInvariants() error {
	want := map[string]bool{
		"paid_at":      false,
		"picked_up_at": false,
		"returned_at":  false,
		"paid_out_at":  false,
		"canceled_at":  false,
	}
	switch r.Status {
	case StatusRequested, StatusAccepted, StatusRejected:
	case StatusPaid:
		want["paid_at"] = true
	case StatusPickedUp:
		want["paid_at"], want["picked_up_at"] = true, true
	case StatusReturned:
		want["paid_at"], want["picked_up_at"], want["returned_at"] = true, true, true
	case StatusPaidOut:
		want["paid_at"], want["picked_up_at"], want["returned_at"], want["paid_out_at"] = true, true, true, true
	case StatusCanceled:
		want["paid_at"], want["canceled_at"] = true, true
	default:
		return fmt.Errorf("reservation: unknown status %q", r.Status)
	}
	got := map[string]*time.Time{
		"paid_at":      r.PaidAt,
		"picked_up_at": r.PickedUpAt,
		"returned_at":  r.ReturnedAt,
		"paid_out_at":  r.PaidOutAt,
		"canceled_at":  r.CanceledAt,
	}
	for field, required := range want {
		if required != (got[field] != nil) {
			return fmt.Errorf("reservation: status %s inconsistent with %s", r.Status, field)
		}
	}
	if r.RefundedAt != nil && r.Status != StatusCanceled {
		return fmt.Errorf("reservation: refunded_at set while status is %s", r.Status)
	}
	ordered := []*time.Time{r.PaidAt, r.PickedUpAt, r.ReturnedAt, r.PaidOutAt}
	var prev *time.Time
	for _, ts := range ordered {
		if ts == nil {
			continue
		}
		if prev != nil && ts.Before(*prev) {
			return fmt.Errorf("reservation: timestamps out of order")
		}
		prev = ts
	}
	if r.IsFree && !r.Total.IsZero() {
		return fmt.Errorf("reservation: free reservation with non-zero total")
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
