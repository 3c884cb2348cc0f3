// Package worker applies customer events to the spreadsheet mirror.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/sheets/google"

	applog "ledger/internal/log"
)

// SheetWriter is the part of the Sheets client the worker needs.
type SheetWriter interface {
	UpsertCustomer(ctx context.Context, row google.CustomerRow) (int, error)
	DeleteCustomer(ctx context.Context, id string) (int, error)
}

// SyncWorker mirrors every customer change into a sheet row.
// Events older than the last one applied for the same customer are dropped,
// so a redelivered update cannot resurrect a deleted row.
type SyncWorker struct {
	sheet  SheetWriter
	logger *applog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewSyncWorker(sheet SheetWriter, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SyncWorker{
		sheet:  sheet,
		logger: logger.WithComponent(applog.ComponentWorker),
		seen:   make(map[string]time.Time),
	}
}

// HandleEvent is an amqp.Handler. A returned error makes the broker redeliver.
func (w *SyncWorker) HandleEvent(ctx context.Context, event *amqp.CustomerEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if w.stale(event) {
		w.logger.InfoContext(ctx, "Skipping stale customer event",
			applog.FieldEventType, event.Type,
			applog.FieldCustomerID, event.CustomerID,
			"timestamp", event.Timestamp)
		return nil
	}

	var (
		row int
		err error
	)
	switch event.Type {
	case amqp.EventCustomerDeleted:
		row, err = w.sheet.DeleteCustomer(ctx, event.CustomerID)
		if err != nil {
			return fmt.Errorf("delete customer %s from sheet: %w", event.CustomerID, err)
		}
	default:
		row, err = w.sheet.UpsertCustomer(ctx, RowFromSnapshot(*event.Customer, event.Timestamp))
		if err != nil {
			return fmt.Errorf("upsert customer %s in sheet: %w", event.CustomerID, err)
		}
	}
	w.markApplied(event)

	w.logger.InfoContext(ctx, "Customer event applied",
		applog.FieldEventType, event.Type,
		applog.FieldCustomerID, event.CustomerID,
		applog.FieldSheetRow, row)
	return nil
}

func (w *SyncWorker) stale(event *amqp.CustomerEvent) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.seen[event.CustomerID]
	return ok && event.Timestamp.Before(last)
}

func (w *SyncWorker) markApplied(event *amqp.CustomerEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if event.Timestamp.After(w.seen[event.CustomerID]) {
		w.seen[event.CustomerID] = event.Timestamp
	}
}

// RowFromSnapshot maps an event snapshot onto its sheet row.
func RowFromSnapshot(s amqp.CustomerSnapshot, at time.Time) google.CustomerRow {
	return google.CustomerRow{
		ID:          s.ID,
		Name:        s.Name,
		Village:     s.Village,
		Phone:       s.Phone,
		Total:       s.TotalAmount,
		Paid:        s.Paid,
		Due:         s.Due,
		Payments:    s.PaymentCount,
		LastPayment: s.LastPayment,
		UpdatedAt:   at,
	}
}
