// Package ledgertest holds behaviour checks shared by every ledger.Store
// implementation.
package ledgertest

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// StoreFactory returns a fresh, empty (unseeded) store.
type StoreFactory func(t *testing.T) ledger.Store

// Run exercises the store contract against stores built by newStore.
func Run(t *testing.T, newStore StoreFactory) {
	t.Run("CreateThenGet", func(t *testing.T) { testCreateThenGet(t, newStore(t)) })
	t.Run("CreateInsertsAtFront", func(t *testing.T) { testCreateInsertsAtFront(t, newStore(t)) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, newStore(t)) })
	t.Run("UpdatePartial", func(t *testing.T) { testUpdatePartial(t, newStore(t)) })
	t.Run("UpdateUnknown", func(t *testing.T) { testUpdateUnknown(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("DeleteUnknown", func(t *testing.T) { testDeleteUnknown(t, newStore(t)) })
	t.Run("AddPaymentScenario", func(t *testing.T) { testAddPaymentScenario(t, newStore(t)) })
	t.Run("AddPaymentUnknown", func(t *testing.T) { testAddPaymentUnknown(t, newStore(t)) })
	t.Run("UpdateTotalRecomputesDue", func(t *testing.T) { testUpdateTotalRecomputesDue(t, newStore(t)) })
	t.Run("DueInvariant", func(t *testing.T) { testDueInvariant(t, newStore(t)) })
}

func ravi() core.NewCustomer {
	return core.NewCustomer{Name: "Ravi Kumar", Village: "Lakshmipur", Phone: "9876543210", TotalAmount: core.Rupees(12000)}
}

func sita() core.NewCustomer {
	return core.NewCustomer{Name: "Sita Devi", Village: "Bhargavpur", Phone: "9876501234", TotalAmount: core.Rupees(8000)}
}

// MustCreate creates nc or fails the test.
func MustCreate(t *testing.T, s ledger.Store, nc core.NewCustomer) core.Customer {
	t.Helper()
	c, err := s.Create(context.Background(), nc)
	if err != nil {
		t.Fatalf("create %q: %v", nc.Name, err)
	}
	return c
}

// MustPay records a payment or fails the test.
func MustPay(t *testing.T, s ledger.Store, id string, date core.Date, rupees int64) core.Customer {
	t.Helper()
	c, err := s.AddPayment(context.Background(), id, core.NewPayment{Date: date, Amount: core.Rupees(rupees)})
	if err != nil {
		t.Fatalf("add payment to %s: %v", id, err)
	}
	return c
}

func ids(cs []core.Customer) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func testCreateThenGet(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	created := MustCreate(t, s, ravi())
	if created.ID == "" {
		t.Fatal("store must assign an id")
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Ravi Kumar" || got.Village != "Lakshmipur" || got.Phone != "9876543210" || got.TotalAmount != core.Rupees(12000) {
		t.Fatalf("unexpected fields: %+v", got)
	}
	if len(got.Payments) != 0 {
		t.Fatalf("new customer should have no payments, got %d", len(got.Payments))
	}

	other := MustCreate(t, s, ravi())
	if other.ID == created.ID {
		t.Fatal("identifiers must be unique")
	}
}

func testCreateInsertsAtFront(t *testing.T, s ledger.Store) {
	first := MustCreate(t, s, ravi())
	second := MustCreate(t, s, sita())

	all, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := ids(all)
	if len(got) != 2 || got[0] != second.ID || got[1] != first.ID {
		t.Fatalf("expected newest first, got %v", got)
	}
}

func testListFilters(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	r := MustCreate(t, s, ravi())
	d := MustCreate(t, s, sita())

	cases := []struct {
		q    string
		want []string
	}{
		{"", []string{d.ID, r.ID}},
		{"RAVI", []string{r.ID}},
		{"pur", []string{d.ID, r.ID}},
		{"bharGAV", []string{d.ID}},
		{"98765012", []string{d.ID}},
		{"nobody", nil},
	}
	for _, tc := range cases {
		first, err := s.List(ctx, tc.q)
		if err != nil {
			t.Fatalf("list %q: %v", tc.q, err)
		}
		second, err := s.List(ctx, tc.q)
		if err != nil {
			t.Fatalf("list %q again: %v", tc.q, err)
		}
		got := ids(first)
		if len(got) != len(tc.want) {
			t.Fatalf("list %q = %v, want %v", tc.q, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("list %q = %v, want %v", tc.q, got, tc.want)
			}
		}
		again := ids(second)
		for i := range again {
			if again[i] != got[i] {
				t.Fatalf("list %q not idempotent: %v then %v", tc.q, got, again)
			}
		}
	}
}

func testUpdatePartial(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := MustCreate(t, s, ravi())

	updated, err := s.Update(ctx, c.ID, core.CustomerPatch{Phone: core.Some("9000000000")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != "9000000000" || updated.Name != "Ravi Kumar" || updated.Village != "Lakshmipur" || updated.TotalAmount != core.Rupees(12000) {
		t.Fatalf("only phone should change: %+v", updated)
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phone != "9000000000" {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func testUpdateUnknown(t *testing.T, s ledger.Store) {
	_, err := s.Update(context.Background(), "missing", core.CustomerPatch{Name: core.Some("x")})
	if !errors.Is(err, core.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func testDelete(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	keep := MustCreate(t, s, sita())
	gone := MustCreate(t, s, ravi())
	MustPay(t, s, gone.ID, core.NewDate(2024, 1, 1), 100)

	ok, err := s.Delete(ctx, gone.ID)
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if _, err := s.Get(ctx, gone.ID); !errors.Is(err, core.ErrCustomerNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := ids(all); len(got) != 1 || got[0] != keep.ID {
		t.Fatalf("list after delete = %v", got)
	}
	if ok, _ := s.Delete(ctx, gone.ID); ok {
		t.Fatal("second delete should report false")
	}
}

func testDeleteUnknown(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := MustCreate(t, s, ravi())
	MustPay(t, s, c.ID, core.NewDate(2024, 1, 1), 500)

	ok, err := s.Delete(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Fatal("unknown id should report false")
	}
	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("other record affected: %v", err)
	}
	if len(got.Payments) != 1 || got.Due() != core.Rupees(11500) {
		t.Fatalf("other record changed: %+v", got)
	}
}

func testAddPaymentScenario(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := MustCreate(t, s, ravi())

	after := MustPay(t, s, c.ID, core.NewDate(2024, 1, 10), 4000)
	if after.Paid() != core.Rupees(4000) || after.Due() != core.Rupees(8000) {
		t.Fatalf("after first payment paid=%v due=%v", after.Paid(), after.Due())
	}
	MustPay(t, s, c.ID, core.NewDate(2024, 1, 5), 1500)

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(got.Payments))
	}
	if !got.Payments[0].Date.Equal(core.NewDate(2024, 1, 10).Time) || got.Payments[0].Amount != core.Rupees(4000) {
		t.Fatalf("first payment = %+v", got.Payments[0])
	}
	if !got.Payments[1].Date.Equal(core.NewDate(2024, 1, 5).Time) || got.Payments[1].Amount != core.Rupees(1500) {
		t.Fatalf("second payment = %+v", got.Payments[1])
	}
	if got.Payments[0].ID == "" || got.Payments[0].ID == got.Payments[1].ID {
		t.Fatalf("payments need distinct ids: %+v", got.Payments)
	}
	if got.Paid() != core.Rupees(5500) || got.Due() != core.Rupees(6500) {
		t.Fatalf("paid=%v due=%v, want 5500/6500", got.Paid(), got.Due())
	}

	// A newer payment added last moves to the front.
	latest := MustPay(t, s, c.ID, core.NewDate(2024, 2, 1), 500)
	if !latest.Payments[0].Date.Equal(core.NewDate(2024, 2, 1).Time) {
		t.Fatalf("newest payment should be first: %+v", latest.Payments)
	}
	for i := 1; i < len(latest.Payments); i++ {
		if latest.Payments[i].Date.After(latest.Payments[i-1].Date.Time) {
			t.Fatalf("payments not sorted newest first: %+v", latest.Payments)
		}
	}
}

func testAddPaymentUnknown(t *testing.T, s ledger.Store) {
	_, err := s.AddPayment(context.Background(), "missing", core.NewPayment{Date: core.NewDate(2024, 1, 1), Amount: core.Rupees(1)})
	if !errors.Is(err, core.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func testUpdateTotalRecomputesDue(t *testing.T, s ledger.Store) {
	c := MustCreate(t, s, ravi())
	MustPay(t, s, c.ID, core.NewDate(2024, 3, 1), 3000)

	updated, err := s.Update(context.Background(), c.ID, core.CustomerPatch{TotalAmount: core.Some(core.Rupees(9000))})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Paid() != core.Rupees(3000) || updated.Due() != core.Rupees(6000) {
		t.Fatalf("paid=%v due=%v, want 3000/6000", updated.Paid(), updated.Due())
	}
}

func testDueInvariant(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	a := MustCreate(t, s, ravi())
	b := MustCreate(t, s, sita())
	MustPay(t, s, a.ID, core.NewDate(2024, 1, 1), 100)
	MustPay(t, s, a.ID, core.NewDate(2024, 1, 2), 250)
	MustPay(t, s, b.ID, core.NewDate(2024, 1, 3), 8000)

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, c := range all {
		var sum core.Money
		for _, p := range c.Payments {
			sum = sum.Add(p.Amount)
		}
		if c.Due() != c.TotalAmount.Sub(sum) {
			t.Fatalf("due invariant broken for %s: due=%v total=%v paid=%v", c.ID, c.Due(), c.TotalAmount, sum)
		}
	}
}
