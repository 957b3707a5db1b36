package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPermissionsForRequested(t *testing.T) {
	r := newRequested(t, false)

	owner := Permissions(r, t0, RoleOwner)
	assert.True(t, owner["accept"])
	assert.True(t, owner["reject"])
	assert.True(t, owner["delete_by_owner"])
	assert.False(t, owner["delete_by_renter"])
	assert.False(t, owner["pay"])

	renter := Permissions(r, t0, RoleRenter)
	assert.False(t, renter["accept"])
	assert.True(t, renter["delete_by_renter"])
	assert.False(t, renter["pay"])
}

func TestCanPay(t *testing.T) {
	accepted := drive(t, newRequested(t, false), t0, Accept{Actor: ownerUID})
	assert.True(t, CanPay(accepted, t0, RoleRenter))
	assert.False(t, CanPay(accepted, t0, RoleOwner))

	free := drive(t, newRequested(t, true), t0, Accept{Actor: ownerUID})
	assert.False(t, CanPay(free, t0, RoleRenter))

	assert.False(t, CanPay(paid(t), t0, RoleRenter))
}

func TestPermissionsForPaid(t *testing.T) {
	r := paid(t)
	renter := Permissions(r, t0.Add(time.Hour), RoleRenter)
	assert.True(t, renter["mark_pickup"])
	assert.True(t, renter["cancel_with_refund"])
	assert.True(t, renter["refundable"])
	assert.False(t, renter["delete_by_renter"])

	late := Permissions(r, t0.Add(RefundWindow+time.Hour), RoleRenter)
	assert.False(t, late["cancel_with_refund"])
	assert.True(t, late["mark_pickup"])

	owner := Permissions(r, t0.Add(time.Hour), RoleOwner)
	assert.False(t, owner["cancel_with_refund"])
	assert.False(t, owner["confirm_return"])
}

func TestReviewPermissions(t *testing.T) {
	r := drive(t, paid(t), t0.Add(time.Hour), MarkPickup{Actor: renterUID}, ConfirmReturn{Actor: ownerUID})

	assert.True(t, CanReview(r, t0, RoleRenter, ReviewRenterToOwner))
	assert.True(t, CanReview(r, t0, RoleRenter, ReviewRenterToItem))
	assert.False(t, CanReview(r, t0, RoleRenter, ReviewOwnerToRenter))
	assert.True(t, CanReview(r, t0, RoleOwner, ReviewOwnerToRenter))
	assert.False(t, CanConfirmReturn(r, t0, RoleOwner))
}

func TestPredicatesHandleNil(t *testing.T) {
	assert.False(t, IsRefundable(nil, t0))
	assert.False(t, CanAccept(nil, t0, RoleOwner))
	assert.False(t, CanPay(nil, t0, RoleRenter))
}

func TestCheckPayableExplainsRefusal(t *testing.T) {
	requested := newRequested(t, false)
	assert.True(t, IsViolation(CheckPayable(requested, renterUID), CodeFromStateMismatch))

	accepted := drive(t, requested, t0, Accept{Actor: ownerUID})
	assert.NoError(t, CheckPayable(accepted, renterUID))
	assert.True(t, IsViolation(CheckPayable(accepted, ownerUID), CodeNotRenter))
	assert.True(t, IsViolation(CheckPayable(paid(t), renterUID), CodeAlreadyPaid))
}
