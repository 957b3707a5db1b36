package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayRoundTrip(t *testing.T) {
	d, err := ParseDay("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", d.String())
	assert.Equal(t, "2025-03-02", d.AddDays(1).String())

	_, err = ParseDay("01/03/2025")
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestDayOfIgnoresZone(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*3600)
	late := time.Date(2025, 6, 10, 23, 30, 0, 0, saoPaulo)
	assert.Equal(t, "2025-06-10", DayOf(late).String())
}

func TestRangeDaysAndValidation(t *testing.T) {
	r, err := Parse("2025-03-01", "2025-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Days())

	_, err = Parse("2025-03-01", "2025-03-01")
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = Parse("2025-03-05", "2025-03-01")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRangeHalfOpenOverlap(t *testing.T) {
	first := MustParse("2025-06-10", "2025-06-15")
	adjacent := MustParse("2025-06-15", "2025-06-18")
	overlapping := MustParse("2025-06-14", "2025-06-18")

	assert.False(t, first.Overlaps(adjacent))
	assert.True(t, first.Adjacent(adjacent))
	assert.True(t, first.Overlaps(overlapping))
	assert.True(t, first.Contains(MustDay("2025-06-14")))
	assert.False(t, first.Contains(MustDay("2025-06-15")))
}

func TestEachDayCrossesMonthBoundary(t *testing.T) {
	r := MustParse("2024-02-28", "2024-03-02")
	days := r.EachDay()
	require.Len(t, days, 3)
	assert.Equal(t, "2024-02-29", days[1].String())
}

func TestDayTextMarshalling(t *testing.T) {
	var d Day
	require.NoError(t, d.UnmarshalText([]byte("2025-12-31")))
	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-12-31", string(out))
}
