// Package money holds the fixed-scale decimal amount used for every balance,
// transaction amount, price and budget target.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits a stored amount carries.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// Money is an exact decimal amount. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

var Zero = Money{}

func New(d decimal.Decimal) Money {
	return Money{d: d}
}

func FromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

// FromCents builds an amount from its minor units, 1599 -> 15.99.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

// Parse reads a plain decimal string such as "15.99". Amounts with more than
// two fractional digits are rejected instead of rounded.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	m := Money{d: d}
	if !m.HasValidScale() {
		return Zero, fmt.Errorf("invalid amount %q: at most %d fractional digits allowed", s, Scale)
	}
	return m, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// MultiplyByPercent returns m * percent / 100 at full precision.
func (m Money) MultiplyByPercent(percent decimal.Decimal) Money {
	return Money{d: m.d.Mul(percent).Div(hundred)}
}

// PercentOf returns m*100/total rounded half-up to places fractional digits.
// A zero total yields 0.
func (m Money) PercentOf(total Money, places int32) decimal.Decimal {
	if total.d.IsZero() {
		return decimal.Zero
	}
	return m.d.Mul(hundred).DivRound(total.d, places)
}

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

// HasValidScale reports whether m fits in Scale fractional digits.
func (m Money) HasValidScale() bool {
	return m.d.Equal(m.d.Truncate(Scale))
}

// Cents returns the amount in minor units. Callers must only pass amounts
// with a valid scale.
func (m Money) Cents() int64 {
	return m.d.Shift(Scale).Round(0).IntPart()
}

func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = string(data)
	default:
		return fmt.Errorf("invalid amount %s", string(data))
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the amount as integer cents.
func (m Money) Value() (driver.Value, error) {
	return m.Cents(), nil
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*m = FromCents(v)
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		*m = Money{d: d.Shift(-Scale)}
	case nil:
		*m = Zero
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
	return nil
}

// Sum adds all amounts without intermediate rounding.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
