package reservation

import (
	"errors"
	"fmt"
)

var (
	ErrRuleViolation  = errors.New("reservation: rule violation")
	ErrAlreadyApplied = errors.New("reservation: gateway event already applied")
	ErrNotFound       = errors.New("reservation: not found")
	ErrInvalidParams  = errors.New("reservation: invalid parameters")
	ErrUnknownCommand = errors.New("reservation: unknown command")
)

type ViolationCode string

const (
	CodeFromStateMismatch   ViolationCode = "FromStateMismatch"
	CodeNotOwner            ViolationCode = "NotOwner"
	CodeNotRenter           ViolationCode = "NotRenter"
	CodeAlreadyPaid         ViolationCode = "AlreadyPaid"
	CodeAlreadyPickedUp     ViolationCode = "AlreadyPickedUp"
	CodeAlreadyPaidOut      ViolationCode = "AlreadyPaidOut"
	CodeAlreadyRefunded     ViolationCode = "AlreadyRefunded"
	CodeRefundWindowExpired ViolationCode = "RefundWindowExpired"
	CodeRangeNoLongerFree   ViolationCode = "RangeNoLongerFree"
	CodeBelowMinRentalDays  ViolationCode = "BelowMinRentalDays"
	CodePaymentNotConfirmed ViolationCode = "PaymentNotConfirmed"
	CodePayoutNotConfirmed  ViolationCode = "PayoutNotConfirmed"
	CodeNoPaymentExpected   ViolationCode = "NoPaymentExpected"
	CodeAmountMismatch      ViolationCode = "PaymentAmountMismatch"
	CodeReviewClosed        ViolationCode = "ReviewClosed"
	CodeInvalidReviewTarget ViolationCode = "InvalidReviewTarget"
	CodeInvalidRange        ViolationCode = "InvalidRange"
	CodeSelfRental          ViolationCode = "SelfRental"
)

// RuleViolation is returned when a guard rejects a command. It never means the state was touched.
type RuleViolation struct {
	Code    ViolationCode
	Command string
	Status  Status
	Detail  string
	Cause   error
}

func (v *RuleViolation) Error() string {
	msg := fmt.Sprintf("reservation: %s rejected (%s)", v.Command, v.Code)
	if v.Status != "" {
		msg += " in status " + string(v.Status)
	}
	if v.Detail != "" {
		msg += ": " + v.Detail
	}
	return msg
}

func (v *RuleViolation) Is(target error) bool {
	return target == ErrRuleViolation
}

func (v *RuleViolation) Unwrap() error {
	return v.Cause
}

// IsViolation reports whether err carries a RuleViolation with the given code.
func IsViolation(err error, code ViolationCode) bool {
	var v *RuleViolation
	if !errors.As(err, &v) {
		return false
	}
	return v.Code == code
}

// RangeTaken wraps an availability conflict raised while applying the claim-range effect.
func RangeTaken(command string, cause error) *RuleViolation {
	return &RuleViolation{Code: CodeRangeNoLongerFree, Command: command, Status: StatusAccepted, Detail: cause.Error(), Cause: cause}
}

func violation(code ViolationCode, command string, status Status, detail string) *RuleViolation {
	return &RuleViolation{Code: code, Command: command, Status: status, Detail: detail}
}

// AmountMismatch rejects a gateway event whose amount differs from the reservation total.
func AmountMismatch(command string, status Status, want, got int64) *RuleViolation {
	return violation(CodeAmountMismatch, command, status, fmt.Sprintf("expected %d, gateway reported %d", want, got))
}
