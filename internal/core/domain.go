package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type (
	// Date is a calendar day with no time component, stored at UTC midnight.
	Date struct {
		time.Time
	}

	// Money is an amount in paise (1/100 rupee).
	Money struct {
		Cents int64
	}

	Payment struct {
		ID     string
		Date   Date
		Amount Money
	}

	// Customer owns its payments. Paid and Due are always derived from them.
	Customer struct {
		ID          string
		Name        string
		Village     string
		Phone       string
		TotalAmount Money
		Payments    []Payment
	}

	NewCustomer struct {
		Name        string
		Village     string
		Phone       string
		TotalAmount Money
	}

	NewPayment struct {
		Date   Date
		Amount Money
	}

	// Field marks whether a value was supplied at all, so a partial update can
	// tell "absent" apart from a zero value.
	Field[T any] struct {
		Value T
		Set   bool
	}

	CustomerPatch struct {
		Name        Field[string]
		Village     Field[string]
		Phone       Field[string]
		TotalAmount Field[Money]
	}
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyVillage     = errors.New("empty village")
	ErrEmptyPhone       = errors.New("empty phone")
	ErrMissingTotal     = errors.New("missing total amount")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the UTC calendar day containing t.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// Today returns the current UTC calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a yyyy-mm-dd string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: expected yyyy-mm-dd string", ErrInvalidDate)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Some returns a Field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// UnmarshalJSON only runs for keys present in the document; null and values
// of the wrong JSON type are errors.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return errors.New("value must not be null")
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value = v
	f.Set = true
	return nil
}

// IsEmpty reports whether the patch carries no field at all.
func (p CustomerPatch) IsEmpty() bool {
	return !p.Name.Set && !p.Village.Set && !p.Phone.Set && !p.TotalAmount.Set
}

// Apply overwrites only the fields present in the patch.
func (p CustomerPatch) Apply(c *Customer) {
	if p.Name.Set {
		c.Name = p.Name.Value
	}
	if p.Village.Set {
		c.Village = p.Village.Value
	}
	if p.Phone.Set {
		c.Phone = p.Phone.Value
	}
	if p.TotalAmount.Set {
		c.TotalAmount = p.TotalAmount.Value
	}
}

// ReplaceWith builds the patch used by a full replace (PUT).
func ReplaceWith(nc NewCustomer) CustomerPatch {
	return CustomerPatch{
		Name:        Some(nc.Name),
		Village:     Some(nc.Village),
		Phone:       Some(nc.Phone),
		TotalAmount: Some(nc.TotalAmount),
	}
}

func (nc NewCustomer) Validate() error {
	if strings.TrimSpace(nc.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(nc.Village) == "" {
		return ErrEmptyVillage
	}
	if strings.TrimSpace(nc.Phone) == "" {
		return ErrEmptyPhone
	}
	if nc.TotalAmount.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (np NewPayment) Validate() error {
	if err := np.Date.Validate(); err != nil {
		return err
	}
	if np.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Paid is the sum of all payment amounts.
func (c Customer) Paid() Money {
	var paid Money
	for _, p := range c.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// Due is the total amount minus what has been paid so far.
func (c Customer) Due() Money {
	return c.TotalAmount.Sub(c.Paid())
}

// LastPayment returns the most recent payment date, if any.
func (c Customer) LastPayment() (Date, bool) {
	if len(c.Payments) == 0 {
		return Date{}, false
	}
	latest := c.Payments[0].Date
	for _, p := range c.Payments[1:] {
		if p.Date.After(latest.Time) {
			latest = p.Date
		}
	}
	return latest, true
}

// Matches reports whether name, village or phone contains query, ignoring case.
// An empty query matches everything.
func (c Customer) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(strings.ToLower(c.Village), q) ||
		strings.Contains(strings.ToLower(c.Phone), q)
}

// Clone returns a deep copy, so callers never share the payment slice.
func (c Customer) Clone() Customer {
	out := c
	if c.Payments != nil {
		out.Payments = slices.Clone(c.Payments)
	} else {
		out.Payments = []Payment{}
	}
	return out
}

// SortPayments orders payments by date, newest first. Payments on the same day
// keep their relative order.
func SortPayments(ps []Payment) {
	slices.SortStableFunc(ps, func(a, b Payment) int {
		return b.Date.Compare(a.Date.Time)
	})
}
