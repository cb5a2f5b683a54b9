package money

import "github.com/shopspring/decimal"

const DefaultSymbol = "€"

// Format renders an amount with a fixed symbol and two decimals, e.g. "€12.50".
func Format(symbol string, amount decimal.Decimal) string {
	return symbol + amount.StringFixed(2)
}

// FromInt is a convenience for tests and fixtures.
func FromInt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
