package reservation

import "peerrent/internal/domain/shared/daterange"

// Command is the closed set of inputs accepted by Apply.
type Command interface {
	Name() string
	command()
}

// GatewayCommand is a command originating from a payment gateway event.
type GatewayCommand interface {
	Command
	EventID() string
}

type Accept struct{ Actor string }
type Reject struct{ Actor string }
type DeleteByOwner struct{ Actor string }
type DeleteByRenter struct{ Actor string }
type MarkPickup struct{ Actor string }
type CancelWithRefund struct{ Actor string }
type ConfirmReturn struct{ Actor string }

type SubmitReview struct {
	Actor  string
	Target ReviewTarget
}

// MarkPaid confirms payment. GatewayEventID is empty only for free reservations.
type MarkPaid struct{ GatewayEventID string }

type MarkPaidOut struct{ GatewayEventID string }

// ConfirmRefund records a refund reported by the gateway.
type ConfirmRefund struct{ GatewayEventID string }

func (Accept) Name() string           { return "accept" }
func (Reject) Name() string           { return "reject" }
func (DeleteByOwner) Name() string    { return "delete_by_owner" }
func (DeleteByRenter) Name() string   { return "delete_by_renter" }
func (MarkPaid) Name() string         { return "mark_paid" }
func (MarkPickup) Name() string       { return "mark_pickup" }
func (CancelWithRefund) Name() string { return "cancel_with_refund" }
func (ConfirmReturn) Name() string    { return "confirm_return" }
func (MarkPaidOut) Name() string      { return "mark_paid_out" }
func (SubmitReview) Name() string     { return "submit_review" }
func (ConfirmRefund) Name() string    { return "confirm_refund" }

func (Accept) command()           {}
func (Reject) command()           {}
func (DeleteByOwner) command()    {}
func (DeleteByRenter) command()   {}
func (MarkPaid) command()         {}
func (MarkPickup) command()       {}
func (CancelWithRefund) command() {}
func (ConfirmReturn) command()    {}
func (MarkPaidOut) command()      {}
func (SubmitReview) command()     {}
func (ConfirmRefund) command()    {}

func (c MarkPaid) EventID() string      { return c.GatewayEventID }
func (c MarkPaidOut) EventID() string   { return c.GatewayEventID }
func (c ConfirmRefund) EventID() string { return c.GatewayEventID }

type EffectKind string

const (
	EffectClaimRange   EffectKind = "claim-range"
	EffectReleaseRange EffectKind = "release-range"
	EffectIssueRefund  EffectKind = "issue-refund"
	EffectOpenReviews  EffectKind = "open-reviews"
	EffectCloseReview  EffectKind = "close-review"
)

// Effect is a side-effect intent. Apply never performs it; the coordinator does.
type Effect struct {
	Kind   EffectKind
	Range  daterange.Range
	Review ReviewTarget
}

type Outcome struct {
	// Reservation is the next state. It is still set when Removed is true so callers can
	// address the stored record.
	Reservation *Reservation
	Removed     bool
	Changed     bool
	Effects     []Effect
}

func (o Outcome) Has(kind EffectKind) bool {
	for _, e := range o.Effects {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// FollowUp names the command that must be chained after a transition in the same unit of work.
// A free reservation skips the gateway: acceptance settles it immediately.
func FollowUp(r *Reservation) Command {
	if r != nil && r.IsFree && r.Status == StatusAccepted {
		return MarkPaid{}
	}
	return nil
}

// TouchesCalendar reports whether cmd applied to r may claim or release days, which requires the
// per-item critical section.
func TouchesCalendar(r *Reservation, cmd Command) bool {
	switch cmd.(type) {
	case MarkPaid, CancelWithRefund, Reject, ConfirmRefund:
		return true
	case Accept:
		return r != nil && r.IsFree
	}
	return false
}
