// Package money represents currency amounts as integer minor units.
//
// Amounts travel over JSON as fixed two-place decimal strings ("12.50") and
// are stored as BIGINT cents. Parsing goes through shopspring/decimal so that
// "0.1" + "0.2" never drifts the way float64 would.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places held in minor units.
const Scale = 2

// Amount is a currency value in minor units (cents).
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// FromMinor wraps a count of minor units.
func FromMinor(minor int64) Amount { return Amount(minor) }

// Parse reads a decimal string such as "12.5" or "-3.07". More than two
// fractional digits is an error rather than a silent rounding.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal converts a decimal to minor units.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Shift(Scale)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), Scale)
	}
	return Amount(minor.IntPart()), nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

func (a Amount) Minor() int64        { return int64(a) }
func (a Amount) IsPositive() bool    { return a > 0 }
func (a Amount) IsNegative() bool    { return a < 0 }
func (a Amount) IsZero() bool        { return a == 0 }
func (a Amount) Add(b Amount) Amount { return a + b }
func (a Amount) Sub(b Amount) Amount { return a - b }

// Mul multiplies by an integer quantity, e.g. stock count times unit price.
func (a Amount) Mul(qty int64) Amount { return a * Amount(qty) }

func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

// Sum adds a list of amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "12.50" and 12.5.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
