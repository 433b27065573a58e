package repository

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bookkeeper/internal/ledger/domain"
)

// amountOf normalizes a scanned aggregate. sqlite may return REAL for sums
// of fractional amounts, so values are rounded back to the money scale.
func amountOf(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal.Round(domain.MoneyScale)
}
