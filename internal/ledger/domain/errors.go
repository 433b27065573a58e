package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

const (
	CodeNegativeAmount   = "negative_amount"
	CodeInvalidLineSide  = "invalid_line_side"
	CodeTooFewLines      = "too_few_lines"
	CodeUnbalanced       = "unbalanced"
	CodeInvalidPrecision = "invalid_precision"
	CodeAmountOutOfRange = "amount_out_of_range"
)

var (
	ErrInvalidCompany     = errors.New("invalid_company")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidAccount     = errors.New("invalid_account")
	ErrInvalidEntry       = errors.New("invalid_entry")
	ErrInvalidPeriod      = errors.New("invalid_period")

	ErrCompanyNotFound = errors.New("company_not_found")
	ErrAccountNotFound = errors.New("account_not_found")
	ErrEntryNotFound   = errors.New("entry_not_found")
)

// ValidationError is a rejected journal entry. Message is safe to return to clients.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(code, message string) error {
	return &ValidationError{Code: code, Message: message}
}

// ConsistencyError means a write left the store in a state that violates
// the entry invariants. The surrounding transaction is rolled back.
type ConsistencyError struct {
	EntryID snowflake.ID
	Reason  string
	Err     error
}

func (e *ConsistencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger consistency failure for entry %s: %s: %v", e.EntryID, e.Reason, e.Err)
	}
	return fmt.Sprintf("ledger consistency failure for entry %s: %s", e.EntryID, e.Reason)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

// IsInputError reports malformed request fields that are not ledger rule violations.
func IsInputError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidCompany),
		errors.Is(err, ErrInvalidDescription),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrInvalidEntry),
		errors.Is(err, ErrInvalidPeriod):
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err names a missing company, account or entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCompanyNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
