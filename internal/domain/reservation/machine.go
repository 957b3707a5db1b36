package reservation

import (
	"errors"
	"fmt"
	"time"

	"peerrent/internal/domain/shared/clock"
)

var ErrNilReservation = errors.New("reservation: nil reservation")

// Apply is the single transition function. It does no I/O and never mutates r: the next state is
// returned in the Outcome together with the side effects the caller must carry out.
func Apply(r *Reservation, cmd Command, now time.Time) (Outcome, error) {
	if r == nil {
		return Outcome{}, ErrNilReservation
	}
	if gw, ok := cmd.(GatewayCommand); ok && gw.EventID() != "" && r.HasApplied(gw.EventID()) {
		return Outcome{}, ErrAlreadyApplied
	}
	next := r.Clone()
	now = now.UTC()

	switch c := cmd.(type) {
	case Accept:
		return accept(next, c, now)
	case Reject:
		return reject(next, c, now)
	case DeleteByOwner:
		return deleteByOwner(next, c, now)
	case DeleteByRenter:
		return deleteByRenter(next, c, now)
	case MarkPaid:
		return markPaid(next, c, now)
	case MarkPickup:
		return markPickup(next, c, now)
	case CancelWithRefund:
		return cancelWithRefund(next, c, now)
	case ConfirmReturn:
		return confirmReturn(next, c, now)
	case MarkPaidOut:
		return markPaidOut(next, c, now)
	case SubmitReview:
		return submitReview(next, c, now)
	case ConfirmRefund:
		return confirmRefund(next, c, now)
	default:
		return Outcome{}, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func accept(r *Reservation, c Accept, now time.Time) (Outcome, error) {
	if err := requireStatus(r, c, StatusRequested); err != nil {
		return Outcome{}, err
	}
	if err := requireOwner(r, c, c.Actor); err != nil {
		return Outcome{}, err
	}
	return moved(r, c, StatusAccepted, now)
}

func reject(r *Reservation, c Reject, now time.Time) (Outcome, error) {
	if err := requireStatus(r, c, StatusRequested); err != nil {
		return Outcome{}, err
	}
	if err := requireOwner(r, c, c.Actor); err != nil {
		return Outcome{}, err
	}
	return moved(r, c, StatusRejected, now, Effect{Kind: EffectReleaseRange, Range: r.Range})
}

func deleteByOwner(r *Reservation, c DeleteByOwner, now time.Time) (Outcome, error) {
	if err := requireStatus(r, c, StatusRequested); err != nil {
		return Outcome{}, err
	}
	if err := requireOwner(r, c, c.Actor); err != nil {
		return Outcome{}, err
	}
	return removed(r, c, c.Actor, now), nil
}

func deleteByRenter(r *Reservation, c DeleteByRenter, now time.Time) (Outcome, error) {
	if err := requireStatus(r, c, StatusRequested, StatusRejected, StatusCanceled); err != nil {
		return Outcome{}, err
	}
	if err := requireRenter(r, c, c.Actor); err != nil {
		return Outcome{}, err
	}
	return removed(r, c, c.Actor, now), nil
}

func markPaid(r *Reservation, c MarkPaid, now time.Time) (Outcome, error) {
	if r.PaidAt != nil || r.Status.BlocksCalendar() {
		return Outcome{}, violation(CodeAlreadyPaid, c.Name(), r.Status, "")
	}
	if err := requireStatus(r, c, StatusAccepted); err != nil {
		return Outcome{}, err
	}
	switch {
	case r.IsFree && c.GatewayEventID != "":
		return Outcome{}, violation(CodeNoPaymentExpected, c.Name(), r.Status, "free reservations are settled on acceptance")
	case !r.IsFree && c.GatewayEventID == "":
		return Outcome{}, violation(CodePaymentNotConfirmed, c.Name(), r.Status, "gateway event id is required")
	}
	if r.Days < r.MinRentalDays {
		return Outcome{}, violation(CodeBelowMinRentalDays, c.Name(), r.Status,
			fmt.Sprintf("%d days booked, item requires %d", r.Days, r.MinRentalDays))
	}
	paidAt := now
	r.PaidAt = &paidAt
	r.ledger(c.GatewayEventID)
	return moved(r, c, StatusPaid, now, Effect{Kind: EffectClaimRange, Range: r.Range})
}

func markPickup(r *Reservation, c MarkPickup, now time.Time) (Outcome, error) {
	if r.PickedUpAt != nil {
		return Outcome{}, violation(CodeAlreadyPickedUp, c.Name(), r.Status, "")
	}
	if err := requireStatus(r, c, StatusPaid); err != nil {
		return Outcome{}, err
	}
	if err := requireRenter(r, c, c.Actor); err != nil {
		return Outcome{}, err
	}
	at := notBefore(now, r.PaidAt)
	r.PickedUpAt = &at
	return moved(r, c, StatusPickedUp, now)
}

func cancelWithRefund(r *Reservation, c CancelWithRefund, now time.Time) (Outcome, error) {
	if err := requireStatus(r, c, StatusPaid); err != nil {
		return Outcome{}, err
	}
	if err := requireRenter(r, c, c.Actor); err != nil {
		return Outcome{}, err
	}
	if err := refundAllowed(r, c, now); err != nil {
		return Outcome{}, err
	}
	at := notBefore(now, r.PaidAt)
	r.CanceledAt = &at
	return moved(r, c, StatusCanceled, now,
		Effect{Kind: EffectReleaseRange, Range: r.Range},
		Effect{Kind: EffectIssueRefund},
	)
}

// confirmReturn on a paid_out reservation is a no-op: moving back to returned would leave
// paidOutAt set on a returned reservation and break the status/timestamp coupling.
func confirmReturn(r *Reservation, c ConfirmReturn, now time.Time) (Outcome, error) {
	if err := requireStatus(r, c, StatusPickedUp, StatusPaidOut); err != nil {
		return Outcome{}, err
	}
	if err := requireOwner(r, c, c.Actor); err != nil {
		return Outcome{}, err
	}
	if r.Status == StatusPaidOut {
		// returnedAt is already set and payout happened after it; acknowledging again changes nothing.
		return Outcome{Reservation: r}, nil
	}
	at := notBefore(now, r.PickedUpAt)
	r.ReturnedAt = &at
	r.ReviewsOpen = AllReviewsOpen()
	return moved(r, c, StatusReturned, now, Effect{Kind: EffectOpenReviews})
}

func markPaidOut(r *Reservation, c MarkPaidOut, now time.Time) (Outcome, error) {
	if r.PaidOutAt != nil {
		return Outcome{}, violation(CodeAlreadyPaidOut, c.Name(), r.Status, "")
	}
	if err := requireStatus(r, c, StatusReturned); err != nil {
		return Outcome{}, err
	}
	if c.GatewayEventID == "" {
		return Outcome{}, violation(CodePayoutNotConfirmed, c.Name(), r.Status, "gateway event id is required")
	}
	at := notBefore(now, r.ReturnedAt)
	r.PaidOutAt = &at
	r.ledger(c.GatewayEventID)
	return moved(r, c, StatusPaidOut, now)
}

// submitReview also accepts paid_out, since payout can land before either party reviews.
func submitReview(r *Reservation, c SubmitReview, now time.Time) (Outcome, error) {
	if err := requireStatus(r, c, StatusReturned, StatusPaidOut); err != nil {
		return Outcome{}, err
	}
	switch c.Target {
	case ReviewRenterToOwner, ReviewRenterToItem:
		if err := requireRenter(r, c, c.Actor); err != nil {
			return Outcome{}, err
		}
	case ReviewOwnerToRenter:
		if err := requireOwner(r, c, c.Actor); err != nil {
			return Outcome{}, err
		}
	default:
		return Outcome{}, violation(CodeInvalidReviewTarget, c.Name(), r.Status, string(c.Target))
	}
	if !r.ReviewsOpen.IsOpen(c.Target) {
		return Outcome{}, violation(CodeReviewClosed, c.Name(), r.Status, string(c.Target))
	}
	r.ReviewsOpen.close(c.Target)
	r.UpdatedAt = now
	r.Record(ReviewClosed{ReservationID: r.ID, Target: c.Target, AuthorUID: c.Actor, At: now})
	return Outcome{Reservation: r, Changed: true, Effects: []Effect{{Kind: EffectCloseReview, Review: c.Target}}}, nil
}

// confirmRefund trusts the engine's own record over the gateway: a refund for a reservation that
// is still paid only goes through if the renter could have cancelled at this moment.
func confirmRefund(r *Reservation, c ConfirmRefund, now time.Time) (Outcome, error) {
	if c.GatewayEventID == "" {
		return Outcome{}, violation(CodePaymentNotConfirmed, c.Name(), r.Status, "gateway event id is required")
	}
	switch r.Status {
	case StatusCanceled:
		if r.RefundedAt != nil {
			return Outcome{}, violation(CodeAlreadyRefunded, c.Name(), r.Status, "")
		}
		at := notBefore(now, r.CanceledAt)
		r.RefundedAt = &at
		r.ledger(c.GatewayEventID)
		r.UpdatedAt = now
		r.Record(RefundConfirmed{ReservationID: r.ID, GatewayEventID: c.GatewayEventID, At: now})
		return Outcome{Reservation: r, Changed: true, Effects: []Effect{{Kind: EffectReleaseRange, Range: r.Range}}}, nil
	case StatusPaid:
		if err := refundAllowed(r, c, now); err != nil {
			return Outcome{}, err
		}
		at := notBefore(now, r.PaidAt)
		r.CanceledAt = &at
		r.RefundedAt = &at
		r.ledger(c.GatewayEventID)
		r.Record(RefundConfirmed{ReservationID: r.ID, GatewayEventID: c.GatewayEventID, At: now})
		return moved(r, c, StatusCanceled, now, Effect{Kind: EffectReleaseRange, Range: r.Range})
	default:
		return Outcome{}, violation(CodeFromStateMismatch, c.Name(), r.Status, "refund only applies to paid or canceled reservations")
	}
}

func refundAllowed(r *Reservation, c Command, now time.Time) error {
	if r.PickedUpAt != nil {
		return violation(CodeAlreadyPickedUp, c.Name(), r.Status, "item already picked up")
	}
	if r.PaidAt == nil || !clock.Within(*r.PaidAt, now, RefundWindow) {
		return violation(CodeRefundWindowExpired, c.Name(), r.Status, "refunds are only possible within 7 days of payment")
	}
	return nil
}

func requireStatus(r *Reservation, c Command, allowed ...Status) error {
	for _, s := range allowed {
		if r.Status == s {
			return nil
		}
	}
	return violation(CodeFromStateMismatch, c.Name(), r.Status, fmt.Sprintf("expected one of %v", allowed))
}

func requireOwner(r *Reservation, c Command, actor string) error {
	if actor == "" || actor != r.ItemOwnerUID {
		return violation(CodeNotOwner, c.Name(), r.Status, "actor is not the item owner")
	}
	return nil
}

func requireRenter(r *Reservation, c Command, actor string) error {
	if actor == "" || actor != r.RenterUID {
		return violation(CodeNotRenter, c.Name(), r.Status, "actor is not the renter")
	}
	return nil
}

func moved(r *Reservation, c Command, to Status, now time.Time, effects ...Effect) (Outcome, error) {
	from := r.Status
	r.Status = to
	r.UpdatedAt = now
	r.Record(StatusChanged{ReservationID: r.ID, ItemID: r.ItemID, From: from, To: to, Command: c.Name(), At: now})
	return Outcome{Reservation: r, Changed: true, Effects: effects}, nil
}

func removed(r *Reservation, c Command, actor string, now time.Time) Outcome {
	r.UpdatedAt = now
	r.Record(Removed{ReservationID: r.ID, ItemID: r.ItemID, Status: r.Status, Command: c.Name(), ByUID: actor, At: now})
	return Outcome{Reservation: r, Removed: true, Changed: true}
}

func (r *Reservation) ledger(gatewayEventID string) {
	if gatewayEventID == "" || r.HasApplied(gatewayEventID) {
		return
	}
	r.GatewayEventsApplied = append(r.GatewayEventsApplied, gatewayEventID)
}

// notBefore keeps timestamps monotonic when the caller's clock lags a previous stamp.
func notBefore(now time.Time, prev *time.Time) time.Time {
	if prev != nil && now.Before(*prev) {
		return *prev
	}
	return now
}
