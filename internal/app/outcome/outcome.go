package outcome

import (
	"context"
	"errors"

	"peerrent/internal/app/policies"
	"peerrent/internal/app/uow"
	"peerrent/internal/domain/availability"
	"peerrent/internal/domain/reservation"
	"peerrent/internal/domain/shared/daterange"
	"peerrent/internal/domain/shared/money"
)

const (
	OK              = "ok"
	Invalid         = "invalid"
	RuleViolation   = "rule_violation"
	Conflict        = "conflict"
	Duplicate       = "duplicate"
	NotFound        = "not_found"
	StorageConflict = "storage_conflict"
	Canceled        = "canceled"
	Error           = "error"
)

// ErrInvalidInput marks malformed requests rejected before reaching the domain.
var ErrInvalidInput = errors.New("app: invalid input")

// Classify maps an error onto the taxonomy used by logs, metrics and transports. Conflict is
// checked before RuleViolation since a lost range race satisfies both.
func Classify(err error) string {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, availability.ErrConflict):
		return Conflict
	case errors.Is(err, reservation.ErrRuleViolation):
		return RuleViolation
	case errors.Is(err, reservation.ErrAlreadyApplied):
		return Duplicate
	case errors.Is(err, reservation.ErrNotFound), errors.Is(err, policies.ErrItemNotFound):
		return NotFound
	case errors.Is(err, uow.ErrStorageConflict):
		return StorageConflict
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, reservation.ErrInvalidParams),
		errors.Is(err, daterange.ErrInvalidDay),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, money.ErrNegativeAmount):
		return Invalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Canceled
	}
	return Error
}
