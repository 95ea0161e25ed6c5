package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const Currency = "LKR"

// FormatLKR renders an amount the way receipts show it, e.g. "LKR 1,234.50".
func FormatLKR(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return Currency + " " + sign + b.String() + "." + frac
}
