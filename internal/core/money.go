// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts typed by a user
// and formatting them for display.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NewMoney returns a Money from a decimal string, panicking on malformed input.
// Intended for constants and tests.
func NewMoney(s string) Money {
	return Money{Decimal: decimal.RequireFromString(s)}
}

// MoneyFromFloat converts a float amount (e.g. from a JSON number) to Money.
func MoneyFromFloat(f float64) Money {
	return Money{Decimal: decimal.NewFromFloat(f)}
}

// ParseAmount converts a user-typed decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two decimal places. Negative values, signs, thousands separators
// and non-digit characters are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35
//	ParseAmount("0")      -> 0
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return Money{}, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{Decimal: d.Round(2)}, nil
}

// Format renders the amount with two decimals followed by the currency code,
// e.g. "4.50 USD". An empty code yields just the number.
func (m Money) Format(currency string) string {
	s := m.StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// Sum adds amounts.
func Sum(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Decimal)
	}
	return Money{Decimal: total}
}
