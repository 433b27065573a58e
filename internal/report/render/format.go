package render

import (
	"strings"

	money "github.com/Rhymond/go-money"
	"github.com/smallbiznis/bookkeeper/internal/report/domain"
)

// FormatAmount renders amount with the currency's symbol and separators.
// Unknown currencies fall back to a plain two-decimal string.
func FormatAmount(amount domain.Amount, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(strings.TrimSpace(currency)))
	if cur == nil {
		return amount.String()
	}
	minor := amount.Decimal().Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
