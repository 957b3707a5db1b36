package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"peerrent/internal/domain/shared/daterange"
	"peerrent/internal/domain/shared/events"
)

var (
	ErrConflict          = errors.New("availability: range overlaps with a blocked day")
	ErrReservationNeeded = errors.New("availability: reservation id is required")
)

// ConflictError explains which day blocked a claim and who holds it.
type ConflictError struct {
	ItemID string
	Day    daterange.Day
	HeldBy string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("availability: item %s day %s already blocked by reservation %s", e.ItemID, e.Day, e.HeldBy)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Index is the per-item set of blocked days, keyed by day with the owning reservation as value.
type Index struct {
	ItemID  string
	Owners  map[daterange.Day]string
	Version int64
	events.EventRecorder
}

type Repository interface {
	// Index returns the item's index, or an empty one at version 0 when none is stored yet.
	Index(ctx context.Context, itemID string) (*Index, error)
	Save(ctx context.Context, index *Index) error
}

func NewIndex(itemID string) *Index {
	return &Index{ItemID: itemID, Owners: make(map[daterange.Day]string)}
}

func (x *Index) IsRangeFree(r daterange.Range) bool {
	_, _, found := x.firstConflict(r, "")
	return !found
}

// Claim blocks every day of r for reservationID, or nothing at all. Days already owned by the
// same reservation are accepted so that a retried claim is a no-op.
func (x *Index) Claim(r daterange.Range, reservationID string, now time.Time) error {
	if reservationID == "" {
		return ErrReservationNeeded
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if day, holder, found := x.firstConflict(r, reservationID); found {
		x.Record(OverbookingPrevented{ItemID: x.ItemID, Range: r, Day: day, ReservationID: reservationID, HeldBy: holder, At: now.UTC()})
		return &ConflictError{ItemID: x.ItemID, Day: day, HeldBy: holder}
	}
	if x.Owners == nil {
		x.Owners = make(map[daterange.Day]string, r.Days())
	}
	added := 0
	for _, day := range r.EachDay() {
		if _, ok := x.Owners[day]; ok {
			continue
		}
		x.Owners[day] = reservationID
		added++
	}
	if added > 0 {
		x.Record(RangeClaimed{ItemID: x.ItemID, Range: r, ReservationID: reservationID, At: now.UTC()})
	}
	return nil
}

// Release unblocks every day owned by reservationID and reports how many were freed.
func (x *Index) Release(reservationID string, now time.Time) int {
	freed := make([]daterange.Day, 0)
	for day, owner := range x.Owners {
		if owner == reservationID {
			freed = append(freed, day)
		}
	}
	if len(freed) == 0 {
		return 0
	}
	for _, day := range freed {
		delete(x.Owners, day)
	}
	sortDays(freed)
	x.Record(RangeReleased{ItemID: x.ItemID, Days: freed, ReservationID: reservationID, At: now.UTC()})
	return len(freed)
}

// BlockedDays lists blocked days in ascending order.
func (x *Index) BlockedDays() []daterange.Day {
	out := make([]daterange.Day, 0, len(x.Owners))
	for day := range x.Owners {
		out = append(out, day)
	}
	sortDays(out)
	return out
}

func (x *Index) OwnerOf(day daterange.Day) (string, bool) {
	owner, ok := x.Owners[day]
	return owner, ok
}

func (x *Index) DaysOwnedBy(reservationID string) []daterange.Day {
	out := make([]daterange.Day, 0)
	for day, owner := range x.Owners {
		if owner == reservationID {
			out = append(out, day)
		}
	}
	sortDays(out)
	return out
}

// Clone copies the index without its pending events.
func (x *Index) Clone() *Index {
	cp := &Index{ItemID: x.ItemID, Version: x.Version, Owners: make(map[daterange.Day]string, len(x.Owners))}
	for day, owner := range x.Owners {
		cp.Owners[day] = owner
	}
	return cp
}

func (x *Index) firstConflict(r daterange.Range, self string) (daterange.Day, string, bool) {
	for _, day := range r.EachDay() {
		owner, ok := x.Owners[day]
		if ok && owner != self {
			return day, owner, true
		}
	}
	return 0, "", false
}

func sortDays(days []daterange.Day) {
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
}
