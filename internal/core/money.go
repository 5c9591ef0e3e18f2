// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values with two fractional digits. Values read from the
// server may be missing or malformed; those are kept as invalid Amounts so a
// single bad record never breaks a listing.
package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const amountPlaces = 2

// maxAmount mirrors the backend column: ten digits, two of them decimals.
var maxAmount = decimal.New(1, 8)

// Amount is a decimal money value that remembers whether it could be parsed.
type Amount struct {
	value decimal.Decimal
	valid bool
	raw   string
}

// NewAmount wraps a decimal value as a valid Amount.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: d.Round(amountPlaces), valid: true}
}

// InvalidAmount builds an Amount flagged as unusable, keeping the raw input.
func InvalidAmount(raw string) Amount {
	return Amount{raw: raw}
}

// ParseAmount converts a user supplied amount to a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// performs half-up rounding on the third decimal place. Negative values,
// signs, exponents and values beyond the storable range are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 || s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(amountPlaces)
	if d.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// MustAmount parses s and panics on failure. Intended for tests and constants.
func MustAmount(s string) Amount {
	d, err := ParseAmount(s)
	if err != nil {
		panic("core: invalid amount " + s)
	}
	return NewAmount(d)
}

// Valid reports whether the amount can take part in totals.
func (a Amount) Valid() bool {
	return a.valid
}

// Value returns the decimal and whether it is usable.
func (a Amount) Value() (decimal.Decimal, bool) {
	return a.value, a.valid
}

// Decimal returns the value, or zero for an invalid amount.
func (a Amount) Decimal() decimal.Decimal {
	if !a.valid {
		return decimal.Zero
	}
	return a.value
}

// Raw returns the input an invalid amount was built from.
func (a Amount) Raw() string {
	return a.raw
}

// String renders valid amounts with two decimals and invalid ones as the raw
// input they were built from.
func (a Amount) String() string {
	if !a.valid {
		return a.raw
	}
	return a.value.StringFixed(amountPlaces)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON never fails: anything that is not a non-negative number or
// numeric string leaves the Amount invalid.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	raw := string(b)
	if raw == "null" || raw == "" {
		*a = InvalidAmount("")
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = raw
	}
	d, err := ParseAmount(s)
	if err != nil {
		*a = InvalidAmount(s)
		return nil
	}
	*a = NewAmount(d)
	return nil
}
