package ubl

import "github.com/shopspring/decimal"

// FormatAmount renders a currency amount with exactly two decimals unless
// digits beyond the second are significant, in which case up to five are kept.
func FormatAmount(v float64) string {
	return formatDecimal(decimal.NewFromFloat(v))
}

func formatDecimal(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	r := d.Round(5)
	if r.Equal(r.Round(2)) {
		return r.StringFixed(2)
	}
	// String trims trailing zeros.
	return r.String()
}

func formatQuantity(v float64) string {
	return decimal.NewFromFloat(v).String()
}
