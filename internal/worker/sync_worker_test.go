package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/sheets/google"

	applog "ledger/internal/log"
)

type fakeSheet struct {
	rows      map[string]google.CustomerRow
	deleted   []string
	upsertErr error
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{rows: map[string]google.CustomerRow{}}
}

func (f *fakeSheet) UpsertCustomer(_ context.Context, row google.CustomerRow) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.rows[row.ID] = row
	return len(f.rows) + 1, nil
}

func (f *fakeSheet) DeleteCustomer(_ context.Context, id string) (int, error) {
	f.deleted = append(f.deleted, id)
	if _, ok := f.rows[id]; !ok {
		return 0, nil
	}
	delete(f.rows, id)
	return 2, nil
}

func quietLogger() *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = &bytes.Buffer{}
	return applog.New(cfg)
}

func customer() core.Customer {
	return core.Customer{
		ID:          "c1",
		Name:        "Ravi Kumar",
		Village:     "Lakshmipur",
		Phone:       "9876543210",
		TotalAmount: core.Rupees(12000),
		Payments: []core.Payment{
			{ID: "p1", Date: core.NewDate(2024, 1, 10), Amount: core.Rupees(4000)},
			{ID: "p2", Date: core.NewDate(2024, 1, 5), Amount: core.Rupees(1500)},
		},
	}
}

func TestHandleEventUpsertsSnapshot(t *testing.T) {
	sheet := newFakeSheet()
	w := NewSyncWorker(sheet, quietLogger())

	event := amqp.NewCustomerEvent(amqp.EventPaymentAdded, customer())
	if err := w.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	row, ok := sheet.rows["c1"]
	if !ok {
		t.Fatal("row not written")
	}
	if row.Paid != core.Rupees(5500) || row.Due != core.Rupees(6500) || row.Total != core.Rupees(12000) {
		t.Fatalf("amounts = %v/%v/%v", row.Total, row.Paid, row.Due)
	}
	if row.Payments != 2 || row.LastPayment != "2024-01-10" {
		t.Fatalf("payments=%d last=%q", row.Payments, row.LastPayment)
	}
	if !row.UpdatedAt.Equal(event.Timestamp) {
		t.Fatalf("updated at = %v, want %v", row.UpdatedAt, event.Timestamp)
	}
}

func TestHandleEventDelete(t *testing.T) {
	sheet := newFakeSheet()
	w := NewSyncWorker(sheet, quietLogger())
	ctx := context.Background()

	if err := w.HandleEvent(ctx, amqp.NewCustomerEvent(amqp.EventCustomerCreated, customer())); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.HandleEvent(ctx, amqp.NewCustomerDeletedEvent("c1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := sheet.rows["c1"]; ok {
		t.Fatal("row should be gone")
	}

	// Deleting a row the sheet never had is not an error.
	if err := w.HandleEvent(ctx, amqp.NewCustomerDeletedEvent("ghost")); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
}

func TestHandleEventDropsStale(t *testing.T) {
	sheet := newFakeSheet()
	w := NewSyncWorker(sheet, quietLogger())
	ctx := context.Background()

	old := amqp.NewCustomerEvent(amqp.EventCustomerUpdated, customer())
	old.Timestamp = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	del := amqp.NewCustomerDeletedEvent("c1")
	del.Timestamp = time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	if err := w.HandleEvent(ctx, del); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := w.HandleEvent(ctx, old); err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if _, ok := sheet.rows["c1"]; ok {
		t.Fatal("stale update resurrected a deleted row")
	}
}

func TestHandleEventErrors(t *testing.T) {
	sheet := newFakeSheet()
	sheet.upsertErr = errors.New("quota exceeded")
	w := NewSyncWorker(sheet, quietLogger())

	err := w.HandleEvent(context.Background(), amqp.NewCustomerEvent(amqp.EventCustomerCreated, customer()))
	if err == nil || !errors.Is(err, sheet.upsertErr) {
		t.Fatalf("expected wrapped upsert error, got %v", err)
	}

	bad := &amqp.CustomerEvent{Type: amqp.EventCustomerUpdated, CustomerID: "c1"}
	if err := w.HandleEvent(context.Background(), bad); !errors.Is(err, amqp.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}
