package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerrent/internal/domain/shared/daterange"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func TestClaimBlocksWholeRange(t *testing.T) {
	idx := NewIndex("item-1")
	r := daterange.MustParse("2025-06-10", "2025-06-15")

	require.True(t, idx.IsRangeFree(r))
	require.NoError(t, idx.Claim(r, "R1", now))

	assert.False(t, idx.IsRangeFree(r))
	assert.Len(t, idx.BlockedDays(), 5)
	owner, ok := idx.OwnerOf(daterange.MustDay("2025-06-14"))
	assert.True(t, ok)
	assert.Equal(t, "R1", owner)
}

func TestClaimConflictCitesFirstDayAndBlocksNothing(t *testing.T) {
	idx := NewIndex("item-1")
	require.NoError(t, idx.Claim(daterange.MustParse("2025-06-10", "2025-06-15"), "R1", now))

	err := idx.Claim(daterange.MustParse("2025-06-14", "2025-06-18"), "R2", now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "2025-06-14", conflict.Day.String())
	assert.Equal(t, "R1", conflict.HeldBy)

	assert.Empty(t, idx.DaysOwnedBy("R2"))
	assert.True(t, idx.IsRangeFree(daterange.MustParse("2025-06-15", "2025-06-18")))
}

func TestCheckoutDayCanBeNextCheckin(t *testing.T) {
	idx := NewIndex("item-1")
	require.NoError(t, idx.Claim(daterange.MustParse("2025-06-10", "2025-06-15"), "R1", now))
	assert.NoError(t, idx.Claim(daterange.MustParse("2025-06-15", "2025-06-18"), "R2", now))
}

func TestReclaimBySameReservationIsNoop(t *testing.T) {
	idx := NewIndex("item-1")
	r := daterange.MustParse("2025-06-10", "2025-06-12")
	require.NoError(t, idx.Claim(r, "R1", now))
	idx.ClearEvents()

	require.NoError(t, idx.Claim(r, "R1", now))
	assert.Empty(t, idx.PendingEvents())
}

func TestReleaseIsIdempotent(t *testing.T) {
	idx := NewIndex("item-1")
	r := daterange.MustParse("2025-06-10", "2025-06-15")
	require.NoError(t, idx.Claim(r, "R1", now))

	assert.Equal(t, 5, idx.Release("R1", now))
	assert.Equal(t, 0, idx.Release("R1", now))
	assert.True(t, idx.IsRangeFree(r))
}

func TestCloneIsIndependent(t *testing.T) {
	idx := NewIndex("item-1")
	require.NoError(t, idx.Claim(daterange.MustParse("2025-06-10", "2025-06-11"), "R1", now))
	cp := idx.Clone()
	cp.Release("R1", now)
	assert.Len(t, idx.BlockedDays(), 1)
	assert.Empty(t, cp.BlockedDays())
}
