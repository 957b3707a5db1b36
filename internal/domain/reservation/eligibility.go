package reservation

import (
	"time"

	"peerrent/internal/domain/shared/clock"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleRenter Role = "renter"
)

// The predicates below answer "may this role do X now" for UI and authorization layers. Each one
// runs the real guard through Apply on a copy, so they can never drift from the transition table.

func IsRefundable(r *Reservation, now time.Time) bool {
	if r == nil || r.Status != StatusPaid || r.PickedUpAt != nil || r.PaidAt == nil {
		return false
	}
	return clock.Within(*r.PaidAt, now, RefundWindow)
}

func CanAccept(r *Reservation, now time.Time, role Role) bool {
	return allowed(r, Accept{Actor: actor(r, role)}, now)
}

func CanReject(r *Reservation, now time.Time, role Role) bool {
	return allowed(r, Reject{Actor: actor(r, role)}, now)
}

func CanDeleteByOwner(r *Reservation, now time.Time, role Role) bool {
	return allowed(r, DeleteByOwner{Actor: actor(r, role)}, now)
}

func CanDeleteByRenter(r *Reservation, now time.Time, role Role) bool {
	return allowed(r, DeleteByRenter{Actor: actor(r, role)}, now)
}

func CanMarkPickup(r *Reservation, now time.Time, role Role) bool {
	return allowed(r, MarkPickup{Actor: actor(r, role)}, now)
}

func CanCancelWithRefund(r *Reservation, now time.Time, role Role) bool {
	return role == RoleRenter && IsRefundable(r, now) && allowed(r, CancelWithRefund{Actor: actor(r, role)}, now)
}

// CanConfirmReturn is false for paid_out: the acknowledgement would be a no-op there.
func CanConfirmReturn(r *Reservation, now time.Time, role Role) bool {
	return r != nil && r.Status == StatusPickedUp && allowed(r, ConfirmReturn{Actor: actor(r, role)}, now)
}

// CanPay reports whether the renter should be offered the payment flow.
func CanPay(r *Reservation, now time.Time, role Role) bool {
	return r != nil && CheckPayable(r, actor(r, role)) == nil
}

// CheckPayable explains why actor may not start a payment for r, or returns nil.
func CheckPayable(r *Reservation, actor string) error {
	const cmd = "request_payment"
	if r == nil {
		return ErrNilReservation
	}
	if r.PaidAt != nil || r.Status.BlocksCalendar() {
		return violation(CodeAlreadyPaid, cmd, r.Status, "")
	}
	if r.Status != StatusAccepted {
		return violation(CodeFromStateMismatch, cmd, r.Status, "payment requires an accepted reservation")
	}
	if actor == "" || actor != r.RenterUID {
		return violation(CodeNotRenter, cmd, r.Status, "only the renter pays")
	}
	if r.IsFree {
		return violation(CodeNoPaymentExpected, cmd, r.Status, "free reservations are settled on acceptance")
	}
	if r.Days < r.MinRentalDays {
		return violation(CodeBelowMinRentalDays, cmd, r.Status, "")
	}
	return nil
}

func CanReview(r *Reservation, now time.Time, role Role, target ReviewTarget) bool {
	return allowed(r, SubmitReview{Actor: actor(r, role), Target: target}, now)
}

// Permissions evaluates every predicate for one role.
func Permissions(r *Reservation, now time.Time, role Role) map[string]bool {
	return map[string]bool{
		"accept":                 CanAccept(r, now, role),
		"reject":                 CanReject(r, now, role),
		"delete_by_owner":        CanDeleteByOwner(r, now, role),
		"delete_by_renter":       CanDeleteByRenter(r, now, role),
		"pay":                    CanPay(r, now, role),
		"mark_pickup":            CanMarkPickup(r, now, role),
		"cancel_with_refund":     CanCancelWithRefund(r, now, role),
		"refundable":             IsRefundable(r, now),
		"confirm_return":         CanConfirmReturn(r, now, role),
		"review_renter_to_owner": CanReview(r, now, role, ReviewRenterToOwner),
		"review_renter_to_item":  CanReview(r, now, role, ReviewRenterToItem),
		"review_owner_to_renter": CanReview(r, now, role, ReviewOwnerToRenter),
	}
}

func actor(r *Reservation, role Role) string {
	if r == nil {
		return ""
	}
	return r.ActorFor(role)
}

func allowed(r *Reservation, cmd Command, now time.Time) bool {
	if r == nil {
		return false
	}
	_, err := Apply(r, cmd, now)
	return err == nil
}
