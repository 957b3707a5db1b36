package reservation

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerrent/internal/domain/shared/daterange"
	"peerrent/internal/domain/shared/money"
)

const (
	ownerUID  = "owner-1"
	renterUID = "renter-1"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func testItem(free bool) Item {
	return Item{ID: "item-1", OwnerUID: ownerUID, MinRentalDays: 2, DailyRate: money.Must(1500), IsFree: free}
}

func newRequested(t *testing.T, free bool) *Reservation {
	t.Helper()
	r, err := New(CreateParams{
		ID:        "res-1",
		Item:      testItem(free),
		RenterUID: renterUID,
		Range:     daterange.MustParse("2025-06-10", "2025-06-15"),
		CreatedAt: t0,
	})
	require.NoError(t, err)
	return r
}

// drive applies cmds in order and fails the test on the first error.
func drive(t *testing.T, r *Reservation, at time.Time, cmds ...Command) *Reservation {
	t.Helper()
	for _, cmd := range cmds {
		out, err := Apply(r, cmd, at)
		require.NoError(t, err, "command %s from %s", cmd.Name(), r.Status)
		r = out.Reservation
	}
	return r
}

func paid(t *testing.T) *Reservation {
	return drive(t, newRequested(t, false), t0, Accept{Actor: ownerUID}, MarkPaid{GatewayEventID: "evt-paid"})
}

func TestNewRejectsRangeBelowMinimum(t *testing.T) {
	r, err := New(CreateParams{
		ID:        "res-1",
		Item:      testItem(false),
		RenterUID: renterUID,
		Range:     daterange.MustParse("2025-03-01", "2025-03-02"),
		CreatedAt: t0,
	})
	assert.Nil(t, r)
	assert.True(t, IsViolation(err, CodeBelowMinRentalDays))
	assert.ErrorIs(t, err, ErrRuleViolation)
}

func TestNewRejectsSelfRental(t *testing.T) {
	_, err := New(CreateParams{
		ID:        "res-1",
		Item:      testItem(false),
		RenterUID: ownerUID,
		Range:     daterange.MustParse("2025-06-10", "2025-06-15"),
		CreatedAt: t0,
	})
	assert.True(t, IsViolation(err, CodeSelfRental))
}

func TestNewComputesTotal(t *testing.T) {
	r := newRequested(t, false)
	assert.Equal(t, StatusRequested, r.Status)
	assert.Equal(t, 5, r.Days)
	assert.Equal(t, money.Amount(7500), r.Total)
	require.Len(t, r.PendingEvents(), 1)

	free := newRequested(t, true)
	assert.True(t, free.Total.IsZero())
}

func TestFullLifecycle(t *testing.T) {
	r := newRequested(t, false)

	out, err := Apply(r, Accept{Actor: ownerUID}, t0)
	require.NoError(t, err)
	assert.Empty(t, out.Effects)
	r = out.Reservation

	out, err = Apply(r, MarkPaid{GatewayEventID: "evt-1"}, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, out.Has(EffectClaimRange))
	assert.Equal(t, r.Range, out.Effects[0].Range)
	r = out.Reservation
	assert.Equal(t, StatusPaid, r.Status)
	assert.True(t, r.HasApplied("evt-1"))

	r = drive(t, r, t0.Add(48*time.Hour), MarkPickup{Actor: renterUID})

	out, err = Apply(r, ConfirmReturn{Actor: ownerUID}, t0.Add(96*time.Hour))
	require.NoError(t, err)
	assert.True(t, out.Has(EffectOpenReviews))
	r = out.Reservation

	r = drive(t, r, t0.Add(100*time.Hour), MarkPaidOut{GatewayEventID: "evt-2"})
	assert.Equal(t, StatusPaidOut, r.Status)
	require.NoError(t, r.CheckInvariants())

	r = drive(t, r, t0.Add(101*time.Hour),
		SubmitReview{Actor: renterUID, Target: ReviewRenterToOwner},
		SubmitReview{Actor: renterUID, Target: ReviewRenterToItem},
		SubmitReview{Actor: ownerUID, Target: ReviewOwnerToRenter},
	)
	assert.Equal(t, ReviewsOpen{}, r.ReviewsOpen)
}

func TestApplyNeverMutatesInput(t *testing.T) {
	r := newRequested(t, false)
	r.ClearEvents()

	out, err := Apply(r, Accept{Actor: ownerUID}, t0)
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, r.Status)
	assert.Empty(t, r.PendingEvents())
	assert.Equal(t, StatusAccepted, out.Reservation.Status)
	assert.Len(t, out.Reservation.PendingEvents(), 1)
}

func TestGuards(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T) *Reservation
		cmd   Command
		code  ViolationCode
	}{
		{"accept by renter", func(t *testing.T) *Reservation { return newRequested(t, false) }, Accept{Actor: renterUID}, CodeNotOwner},
		{"accept twice", func(t *testing.T) *Reservation {
			return drive(t, newRequested(t, false), t0, Accept{Actor: ownerUID})
		}, Accept{Actor: ownerUID}, CodeFromStateMismatch},
		{"reject accepted", func(t *testing.T) *Reservation {
			return drive(t, newRequested(t, false), t0, Accept{Actor: ownerUID})
		}, Reject{Actor: ownerUID}, CodeFromStateMismatch},
		{"owner deletes accepted", func(t *testing.T) *Reservation {
			return drive(t, newRequested(t, false), t0, Accept{Actor: ownerUID})
		}, DeleteByOwner{Actor: ownerUID}, CodeFromStateMismatch},
		{"renter deletes paid", paid, DeleteByRenter{Actor: renterUID}, CodeFromStateMismatch},
		{"pay requested", func(t *testing.T) *Reservation { return newRequested(t, false) }, MarkPaid{GatewayEventID: "e"}, CodeFromStateMismatch},
		{"pay without event", func(t *testing.T) *Reservation {
			return drive(t, newRequested(t, false), t0, Accept{Actor: ownerUID})
		}, MarkPaid{}, CodePaymentNotConfirmed},
		{"pay twice", paid, MarkPaid{GatewayEventID: "evt-other"}, CodeAlreadyPaid},
		{"pickup by owner", paid, MarkPickup{Actor: ownerUID}, CodeNotRenter},
		{"return before pickup", paid, ConfirmReturn{Actor: ownerUID}, CodeFromStateMismatch},
		{"payout before return", paid, MarkPaidOut{GatewayEventID: "evt-out"}, CodeFromStateMismatch},
		{"cancel by owner", paid, CancelWithRefund{Actor: ownerUID}, CodeNotRenter},
		{"review before return", paid, SubmitReview{Actor: renterUID, Target: ReviewRenterToItem}, CodeFromStateMismatch},
		{"refund requested", func(t *testing.T) *Reservation { return newRequested(t, false) }, ConfirmRefund{GatewayEventID: "e"}, CodeFromStateMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.setup(t)
			before := r.Status
			_, err := Apply(r, tc.cmd, t0.Add(time.Hour))
			require.Error(t, err)
			assert.True(t, IsViolation(err, tc.code), "got %v", err)
			assert.Equal(t, before, r.Status)
		})
	}
}

func TestGatewayReplayIsAlreadyApplied(t *testing.T) {
	r := paid(t)
	_, err := Apply(r, MarkPaid{GatewayEventID: "evt-paid"}, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyApplied)
	assert.False(t, errors.Is(err, ErrRuleViolation))
}

func TestFreeReservationSettlesOnAccept(t *testing.T) {
	r := drive(t, newRequested(t, true), t0, Accept{Actor: ownerUID})
	follow := FollowUp(r)
	require.Equal(t, MarkPaid{}, follow)
	assert.True(t, TouchesCalendar(newRequested(t, true), Accept{Actor: ownerUID}))

	out, err := Apply(r, follow, t0)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, out.Reservation.Status)
	assert.True(t, out.Has(EffectClaimRange))
	assert.Nil(t, FollowUp(out.Reservation))

	_, err = Apply(r, MarkPaid{GatewayEventID: "evt-1"}, t0)
	assert.True(t, IsViolation(err, CodeNoPaymentExpected))
}

func TestRefundWindowBoundary(t *testing.T) {
	r := paid(t)
	paidAt := *r.PaidAt

	assert.True(t, IsRefundable(r, paidAt.Add(RefundWindow-time.Second)))
	assert.True(t, IsRefundable(r, paidAt.Add(RefundWindow)))
	assert.False(t, IsRefundable(r, paidAt.Add(RefundWindow+time.Second)))

	out, err := Apply(r, CancelWithRefund{Actor: renterUID}, paidAt.Add(RefundWindow-time.Second))
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, out.Reservation.Status)
	assert.True(t, out.Has(EffectReleaseRange))
	assert.True(t, out.Has(EffectIssueRefund))

	_, err = Apply(r, CancelWithRefund{Actor: renterUID}, paidAt.Add(RefundWindow+time.Second))
	assert.True(t, IsViolation(err, CodeRefundWindowExpired))
}

func TestCancelRetryAfterCancelIsStateMismatch(t *testing.T) {
	r := paid(t)
	at := r.PaidAt.Add(6*24*time.Hour + 23*time.Hour)

	out, err := Apply(r, CancelWithRefund{Actor: renterUID}, at)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, out.Reservation.Status)
	assert.True(t, out.Has(EffectReleaseRange))

	_, err = Apply(out.Reservation, CancelWithRefund{Actor: renterUID}, at.Add(time.Second))
	assert.True(t, IsViolation(err, CodeFromStateMismatch))
}

func TestCancelAfterPickupIsRejected(t *testing.T) {
	r := drive(t, paid(t), t0.Add(24*time.Hour), MarkPickup{Actor: renterUID})
	assert.False(t, IsRefundable(r, t0.Add(25*time.Hour)))

	_, err := Apply(r, CancelWithRefund{Actor: renterUID}, t0.Add(25*time.Hour))
	require.Error(t, err)
	assert.True(t, IsViolation(err, CodeFromStateMismatch))
	assert.Equal(t, StatusPickedUp, r.Status)
}

func TestConfirmReturnAfterPayoutIsNoop(t *testing.T) {
	r := drive(t, paid(t), t0.Add(time.Hour),
		MarkPickup{Actor: renterUID},
		ConfirmReturn{Actor: ownerUID},
		MarkPaidOut{GatewayEventID: "evt-out"},
	)
	out, err := Apply(r, ConfirmReturn{Actor: ownerUID}, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, StatusPaidOut, out.Reservation.Status)
	assert.Equal(t, r.ReturnedAt, out.Reservation.ReturnedAt)
	require.NoError(t, out.Reservation.CheckInvariants())
}

func TestReviewAfterPayout(t *testing.T) {
	r := drive(t, paid(t), t0.Add(time.Hour),
		MarkPickup{Actor: renterUID},
		ConfirmReturn{Actor: ownerUID},
		MarkPaidOut{GatewayEventID: "evt-out"},
	)
	out, err := Apply(r, SubmitReview{Actor: ownerUID, Target: ReviewOwnerToRenter}, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusPaidOut, out.Reservation.Status)
	assert.False(t, out.Reservation.ReviewsOpen.IsOpen(ReviewOwnerToRenter))
	require.NoError(t, out.Reservation.CheckInvariants())
}

func TestReviewsCloseIndependently(t *testing.T) {
	r := drive(t, paid(t), t0.Add(time.Hour), MarkPickup{Actor: renterUID}, ConfirmReturn{Actor: ownerUID})

	out, err := Apply(r, SubmitReview{Actor: renterUID, Target: ReviewRenterToItem}, t0.Add(2*time.Hour))
	require.NoError(t, err)
	r = out.Reservation
	assert.False(t, r.ReviewsOpen.IsOpen(ReviewRenterToItem))
	assert.True(t, r.ReviewsOpen.IsOpen(ReviewRenterToOwner))
	assert.True(t, r.ReviewsOpen.IsOpen(ReviewOwnerToRenter))

	_, err = Apply(r, SubmitReview{Actor: renterUID, Target: ReviewRenterToItem}, t0.Add(2*time.Hour))
	assert.True(t, IsViolation(err, CodeReviewClosed))

	_, err = Apply(r, SubmitReview{Actor: ownerUID, Target: ReviewRenterToOwner}, t0.Add(2*time.Hour))
	assert.True(t, IsViolation(err, CodeNotRenter))

	_, err = Apply(r, SubmitReview{Actor: ownerUID, Target: "owner_to_item"}, t0.Add(2*time.Hour))
	assert.True(t, IsViolation(err, CodeInvalidReviewTarget))
}

func TestConfirmRefund(t *testing.T) {
	t.Run("after cancel records refund", func(t *testing.T) {
		r := drive(t, paid(t), t0.Add(time.Hour), CancelWithRefund{Actor: renterUID})
		out, err := Apply(r, ConfirmRefund{GatewayEventID: "evt-ref"}, t0.Add(2*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, out.Reservation.RefundedAt)
		assert.True(t, out.Has(EffectReleaseRange))
		require.NoError(t, out.Reservation.CheckInvariants())

		_, err = Apply(out.Reservation, ConfirmRefund{GatewayEventID: "evt-ref-2"}, t0.Add(3*time.Hour))
		assert.True(t, IsViolation(err, CodeAlreadyRefunded))
	})
	t.Run("on paid within window cancels", func(t *testing.T) {
		out, err := Apply(paid(t), ConfirmRefund{GatewayEventID: "evt-ref"}, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, StatusCanceled, out.Reservation.Status)
		assert.NotNil(t, out.Reservation.CanceledAt)
		assert.NotNil(t, out.Reservation.RefundedAt)
	})
	t.Run("on paid outside window is refused", func(t *testing.T) {
		_, err := Apply(paid(t), ConfirmRefund{GatewayEventID: "evt-ref"}, t0.Add(RefundWindow+time.Minute))
		assert.True(t, IsViolation(err, CodeRefundWindowExpired))
	})
}

func TestDeleteByRenterStates(t *testing.T) {
	out, err := Apply(newRequested(t, false), DeleteByRenter{Actor: renterUID}, t0)
	require.NoError(t, err)
	assert.True(t, out.Removed)

	rejected := drive(t, newRequested(t, false), t0, Reject{Actor: ownerUID})
	out, err = Apply(rejected, DeleteByRenter{Actor: renterUID}, t0)
	require.NoError(t, err)
	assert.True(t, out.Removed)

	canceled := drive(t, paid(t), t0.Add(time.Hour), CancelWithRefund{Actor: renterUID})
	out, err = Apply(canceled, DeleteByRenter{Actor: renterUID}, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, out.Removed)
}

func randomCommand(rng *rand.Rand, step int) Command {
	actors := []string{ownerUID, renterUID, "stranger"}
	a := actors[rng.Intn(len(actors))]
	targets := []ReviewTarget{ReviewRenterToOwner, ReviewRenterToItem, ReviewOwnerToRenter}
	evt := fmt.Sprintf("evt-%d", rng.Intn(4))
	switch rng.Intn(11) {
	case 0:
		return Accept{Actor: a}
	case 1:
		return Reject{Actor: a}
	case 2:
		return DeleteByOwner{Actor: a}
	case 3:
		return DeleteByRenter{Actor: a}
	case 4:
		if rng.Intn(3) == 0 {
			return MarkPaid{}
		}
		return MarkPaid{GatewayEventID: evt}
	case 5:
		return MarkPickup{Actor: a}
	case 6:
		return CancelWithRefund{Actor: a}
	case 7:
		return ConfirmReturn{Actor: a}
	case 8:
		return MarkPaidOut{GatewayEventID: evt}
	case 9:
		return SubmitReview{Actor: a, Target: targets[rng.Intn(len(targets))]}
	default:
		return ConfirmRefund{GatewayEventID: fmt.Sprintf("evt-%d", step)}
	}
}

func TestRandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(20250601))
	for run := 0; run < 500; run++ {
		r := newRequested(t, run%5 == 0)
		now := t0
		for step := 0; step < 30; step++ {
			now = now.Add(time.Duration(rng.Intn(72)) * time.Hour)
			cmd := randomCommand(rng, step)
			out, err := Apply(r, cmd, now)
			if err != nil {
				continue
			}
			if out.Removed {
				assert.True(t, r.Status.Deletable(), "removed from %s by %s", r.Status, cmd.Name())
				break
			}
			next := out.Reservation
			require.NoError(t, next.CheckInvariants(), "run %d step %d: %s from %s", run, step, cmd.Name(), r.Status)
			if out.Has(EffectClaimRange) {
				assert.Equal(t, StatusPaid, next.Status)
			}
			if next.Status.BlocksCalendar() {
				assert.NotNil(t, next.PaidAt)
			}
			r = next
			if f := FollowUp(r); f != nil {
				out, err = Apply(r, f, now)
				require.NoError(t, err)
				r = out.Reservation
			}
		}
	}
}
