package mongo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"peerrent/internal/app/uow"
	"peerrent/internal/domain/availability"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/daterange"
	"peerrent/internal/domain/shared/money"
)

func TestReservationDocumentKeepsLedgerAndTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r, err := reservation.New(reservation.CreateParams{
		ID:        "r-1",
		Item:      reservation.Item{ID: "item-1", OwnerUID: "owner", MinRentalDays: 1, DailyRate: money.Must(1000)},
		RenterUID: "renter",
		Range:     daterange.MustParse("2025-06-10", "2025-06-12"),
		CreatedAt: now,
	})
	require.NoError(t, err)
	r.Status = reservation.StatusPaid
	r.PaidAt = &now
	r.GatewayEventsApplied = []string{"evt-1"}
	r.Version = 3

	back, err := newReservationDocument(r).toAggregate()
	require.NoError(t, err)
	assert.Equal(t, r.Range, back.Range)
	assert.Equal(t, reservation.StatusPaid, back.Status)
	assert.True(t, back.HasApplied("evt-1"))
	assert.Equal(t, now, *back.PaidAt)
	assert.Nil(t, back.PickedUpAt)
	assert.Equal(t, int64(2000), back.Total.Minor())
	assert.Equal(t, int64(3), back.Version)
	assert.NoError(t, back.CheckInvariants())
}

func TestReservationDocumentRejectsUnknownStatus(t *testing.T) {
	doc := reservationDocument{ID: "r-1", Start: "2025-06-10", End: "2025-06-12", Status: "teleported"}
	_, err := doc.toAggregate()
	assert.Error(t, err)
}

func TestAvailabilityDocumentUsesDayKeys(t *testing.T) {
	idx := availability.NewIndex("item-1")
	require.NoError(t, idx.Claim(daterange.MustParse("2025-06-14", "2025-06-16"), "r-1", time.Now()))
	idx.Version = 4

	doc := newAvailabilityDocument(idx)
	assert.Equal(t, map[string]string{"2025-06-14": "r-1", "2025-06-15": "r-1"}, doc.Owners)

	back, err := doc.toIndex()
	require.NoError(t, err)
	assert.Equal(t, idx.Owners, back.Owners)
	assert.Equal(t, int64(4), back.Version)
	assert.False(t, back.IsRangeFree(daterange.MustParse("2025-06-15", "2025-06-17")))
}

func TestStorageErrMapsRaces(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, storageErr(dup), uow.ErrStorageConflict)

	conflict := mongo.CommandError{Code: writeConflictCode, Message: "WriteConflict"}
	assert.ErrorIs(t, storageErr(conflict), uow.ErrStorageConflict)

	transient := mongo.CommandError{Code: 251, Labels: []string{transientTxnLabel}}
	assert.ErrorIs(t, storageErr(transient), uow.ErrStorageConflict)

	other := errors.New("socket closed")
	assert.Equal(t, other, storageErr(other))
	assert.NoError(t, storageErr(nil))
}
