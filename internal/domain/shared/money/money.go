package money

import (
	"errors"
	"fmt"
)

var (
	ErrNegativeAmount = errors.New("money: amount must not be negative")
	ErrOverflow       = errors.New("money: amount overflow")
)

// Amount keeps values in integer minor units (centavos) to avoid floating point issues.
type Amount int64

// New validates that the amount is non-negative.
func New(minor int64) (Amount, error) {
	if minor < 0 {
		return 0, ErrNegativeAmount
	}
	return Amount(minor), nil
}

// Must creates an Amount and panics if validation fails; useful in tests and fixtures.
func Must(minor int64) Amount {
	a, err := New(minor)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Minor() int64 { return int64(a) }

func (a Amount) IsZero() bool { return a == 0 }

// Times multiplies a per-day rate by a number of days.
func (a Amount) Times(n int) (Amount, error) {
	if n < 0 {
		return 0, ErrNegativeAmount
	}
	if n == 0 || a == 0 {
		return 0, nil
	}
	total := int64(a) * int64(n)
	if total/int64(n) != int64(a) {
		return 0, ErrOverflow
	}
	return Amount(total), nil
}

// String renders the amount with two decimal places, e.g. 1234 -> "12.34".
func (a Amount) String() string {
	return fmt.Sprintf("%d.%02d", int64(a)/100, int64(a)%100)
}
