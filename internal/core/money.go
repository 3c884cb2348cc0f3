// Package core provides money parsing and handling utilities.
//
// Amounts are kept in paise to keep arithmetic exact; decimal conversion at the
// edges goes through shopspring/decimal.
package core

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// maxRupees bounds parsed amounts so paise always fit in an int64.
var maxRupees = decimal.New(1, 15)

var hundred = decimal.NewFromInt(100)

// Rupees builds Money from a whole rupee amount.
func Rupees(r int64) Money {
	return Money{Cents: r * 100}
}

// MoneyFromDecimal converts a decimal rupee amount to paise, rounding half away
// from zero on the third decimal place.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.Abs().GreaterThan(maxRupees) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}, nil
}

// ParseAmount parses a user-entered rupee amount such as "12000", "12,000.50"
// or "₹ 4,000". Commas are treated as digit grouping. Negative values are rejected.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		return Money{}, ErrNegativeAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Decimal returns the rupee value as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the plain rupee value with two decimals, e.g. "12000.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a bare JSON number in rupees.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in rupees.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return ErrInvalidAmount
		}
		b = []byte(strings.TrimSpace(s))
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return ErrInvalidAmount
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FormatINR formats the amount the way en-IN renders rupees: the last three
// digits form one group and the rest are grouped in pairs (lakh, crore).
//
// Examples:
//
//	FormatINR(Rupees(12000))     -> "₹12,000.00"
//	FormatINR(Rupees(1234567))   -> "₹12,34,567.00"
//	FormatINR(Money{Cents: -50}) -> "-₹0.50"
func FormatINR(m Money) string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	rupees := strconv.FormatInt(cents/100, 10)
	paise := cents % 100

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("₹")
	b.WriteString(groupIndian(rupees))
	b.WriteByte('.')
	if paise < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(paise, 10))
	return b.String()
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}
