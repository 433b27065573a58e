package domain

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	MsgNegativeAmount   = "Amount must be non-negative"
	MsgInvalidLineSide  = "Either debit or credit must be non-zero, but not both"
	MsgTooFewLines      = "Entry must have at least 2 lines"
	MsgInvalidPrecision = "Amounts must have at most 2 decimal places"
	MsgAmountOutOfRange = "Amount must be less than 10000000000000.00"
)

// MoneyScale is the number of fractional digits stored for amounts.
const MoneyScale = 2

// maxAmount is the largest value a numeric(15,2) column holds.
var maxAmount = decimal.RequireFromString("9999999999999.99")

// ValidateEntry checks the field-level and balance rules of a draft. It
// returns the first violation found. Account ownership is checked later,
// inside the write transaction.
func ValidateEntry(draft EntryDraft) error {
	if draft.CompanyID == 0 {
		return ErrInvalidCompany
	}
	if strings.TrimSpace(draft.Description) == "" {
		return ErrInvalidDescription
	}
	if draft.Date.IsZero() {
		return ErrInvalidDate
	}

	// Each rule runs over every line before the next rule starts, so the
	// reported violation does not depend on line order.
	for _, check := range lineChecks {
		for _, line := range draft.Lines {
			if err := check(line); err != nil {
				return err
			}
		}
	}

	if len(draft.Lines) < 2 {
		return NewValidationError(CodeTooFewLines, MsgTooFewLines)
	}

	debit, credit := SumDrafts(draft.Lines)
	if !debit.Equal(credit) {
		return NewValidationError(CodeUnbalanced, UnbalancedMessage(debit, credit))
	}
	return nil
}

var lineChecks = []func(LineDraft) error{
	checkAccount,
	checkNonNegative,
	checkStorable,
	checkOneSided,
}

// ValidateLine enforces the one-sided, non-negative line shape.
func ValidateLine(line LineDraft) error {
	for _, check := range lineChecks {
		if err := check(line); err != nil {
			return err
		}
	}
	return nil
}

func checkAccount(line LineDraft) error {
	if line.AccountID == 0 {
		return ErrInvalidAccount
	}
	return nil
}

func checkNonNegative(line LineDraft) error {
	if line.Debit.IsNegative() || line.Credit.IsNegative() {
		return NewValidationError(CodeNegativeAmount, MsgNegativeAmount)
	}
	return nil
}

func checkStorable(line LineDraft) error {
	if exceedsScale(line.Debit) || exceedsScale(line.Credit) {
		return NewValidationError(CodeInvalidPrecision, MsgInvalidPrecision)
	}
	if line.Debit.GreaterThan(maxAmount) || line.Credit.GreaterThan(maxAmount) {
		return NewValidationError(CodeAmountOutOfRange, MsgAmountOutOfRange)
	}
	return nil
}

func checkOneSided(line LineDraft) error {
	if line.Debit.IsPositive() == line.Credit.IsPositive() {
		return NewValidationError(CodeInvalidLineSide, MsgInvalidLineSide)
	}
	return nil
}

func SumDrafts(lines []LineDraft) (decimal.Decimal, decimal.Decimal) {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

func SumLines(lines []JournalLine) (decimal.Decimal, decimal.Decimal) {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

func UnbalancedMessage(debit, credit decimal.Decimal) string {
	return fmt.Sprintf("Entry must be balanced. Debit: %s, Credit: %s", debit.StringFixed(MoneyScale), credit.StringFixed(MoneyScale))
}

// DistinctAccountIDs returns the referenced account ids in first-seen order.
func DistinctAccountIDs(lines []LineDraft) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(lines))
	ids := make([]snowflake.ID, 0, len(lines))
	for _, line := range lines {
		id := line.AccountID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func exceedsScale(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(MoneyScale))
}
