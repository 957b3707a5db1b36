package daterange

import (
	"errors"
	"fmt"
	"time"
)

const Layout = "2006-01-02"

var (
	ErrInvalidRange = errors.New("daterange: end day must be after start day")
	ErrInvalidDay   = errors.New("daterange: day must be formatted as yyyy-mm-dd")
)

var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// Day is a timezone-agnostic calendar day counted from 1970-01-01.
type Day int32

// DayOf takes the calendar date of t in its own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Day(midnight.Sub(epoch) / (24 * time.Hour))
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return DayOf(t), nil
}

// MustDay parses s and panics on failure; meant for fixtures and tests.
func MustDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Day) Time() time.Time {
	return epoch.AddDate(0, 0, int(d))
}

func (d Day) String() string {
	return d.Time().Format(Layout)
}

func (d Day) AddDays(n int) Day {
	return d + Day(n)
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Range represents a half-open interval of days [Start, End).
type Range struct {
	Start Day `json:"start"`
	End   Day `json:"end"`
}

func New(start, end Day) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Parse builds a range from two yyyy-mm-dd keys.
func Parse(start, end string) (Range, error) {
	s, err := ParseDay(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return Range{}, err
	}
	return New(s, e)
}

func MustParse(start, end string) Range {
	r, err := Parse(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Range) Validate() error {
	if r.End <= r.Start {
		return ErrInvalidRange
	}
	return nil
}

// Days is the whole-day length of the range.
func (r Range) Days() int {
	if r.End <= r.Start {
		return 0
	}
	return int(r.End - r.Start)
}

func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

func (r Range) Contains(d Day) bool {
	return d >= r.Start && d < r.End
}

func (r Range) Adjacent(other Range) bool {
	return r.End == other.Start || r.Start == other.End
}

// EachDay lists every day in the range in ascending order.
func (r Range) EachDay() []Day {
	out := make([]Day, 0, r.Days())
	for d := r.Start; d < r.End; d++ {
		out = append(out, d)
	}
	return out
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}
