// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from text and
// converting between decimal values and integer cents.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ValuePlaces is the number of fractional digits kept for a transaction value.
const ValuePlaces = 2

// MaxValue is the largest value every store can hold (NUMERIC(14,2)).
var MaxValue = decimal.RequireFromString("999999999999.99")

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ParseValue converts a decimal string into a non-negative value rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Zero is a valid value.
// Returns ErrInvalidValue for empty input, malformed numbers, signs, exponents
// or values above MaxValue.
//
// Examples:
//
//	ParseValue("12.34")  -> 12.34, nil
//	ParseValue("12,34")  -> 12.34, nil
//	ParseValue("12.345") -> 12.35, nil
//	ParseValue("-1")     -> 0, ErrInvalidValue
func ParseValue(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidValue
	}
	s = strings.ReplaceAll(s, ",", ".")
	// Only plain positional notation: no sign, no exponent.
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidValue
		}
	}
	if strings.Count(s, ".") > 1 || s == "." {
		return decimal.Zero, ErrInvalidValue
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidValue
	}
	d = d.Round(ValuePlaces)
	if d.GreaterThan(MaxValue) {
		return decimal.Zero, ErrInvalidValue
	}
	return d, nil
}

// ToCents converts a value to integer cents. It fails instead of wrapping
// when the value does not fit in an int64.
func ToCents(d decimal.Decimal) (int64, error) {
	cents := d.Shift(ValuePlaces).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s does not fit in cents", ErrInvalidValue, d)
	}
	return cents.IntPart(), nil
}

// FromCents converts integer cents back to a decimal value.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -ValuePlaces)
}
