package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

var symbols = map[string]string{
	"KZT": "₸",
	"USD": "$",
	"EUR": "€",
	"RUB": "₽",
	"JPY": "¥",
}

// Money formats an amount for display. Whole amounts print without a fraction, other
// amounts are rounded half-up to two places.
// Example: Money(decimal.NewFromInt(25000), "KZT") => "₸25,000"
func Money(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	neg := amount.IsNegative()
	amount = amount.Abs()

	var body string
	if amount.Equal(amount.Truncate(0)) {
		body = thousandSep(amount.StringFixed(0))
	} else {
		fixed := amount.StringFixed(2)
		dot := strings.IndexByte(fixed, '.')
		body = thousandSep(fixed[:dot]) + fixed[dot:]
	}

	prefix := ""
	if neg {
		prefix = "-"
	}
	if sym, ok := symbols[currency]; ok {
		return prefix + sym + body
	}
	if currency == "" {
		return prefix + body
	}
	return prefix + currency + " " + body
}

func thousandSep(digits string) string {
	var b strings.Builder
	for i, c := range digits {
		if i != 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}
