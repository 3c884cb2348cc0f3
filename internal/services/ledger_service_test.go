package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/ledger/ledgertest"
	"ledger/internal/ledger/memory"
	applog "ledger/internal/log"
	"ledger/internal/metrics"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.CustomerEvent
	err    error
	closed bool
}

func (p *fakePublisher) PublishCustomerEvent(_ context.Context, e *amqp.CustomerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeRecorder struct {
	ops      map[string]int
	payments []float64
	failures []string
}

func newFakeRecorder() *fakeRecorder { return &fakeRecorder{ops: map[string]int{}} }

func (r *fakeRecorder) IncOperation(op, outcome string) { r.ops[op+"/"+outcome]++ }
func (r *fakeRecorder) ObservePayment(v float64)        { r.payments = append(r.payments, v) }
func (r *fakeRecorder) IncPublishFailure(t string)      { r.failures = append(r.failures, t) }

func quietLogger(buf *bytes.Buffer) *applog.Logger {
	return applog.New(applog.Config{Output: buf})
}

func TestLedgerServiceContract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store {
		return NewLedgerService(memory.New(nil), &fakePublisher{}, nil, quietLogger(&bytes.Buffer{}))
	})
}

func TestLedgerService_PublishesEveryWrite(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	rec := newFakeRecorder()
	svc := NewLedgerService(memory.New(nil), pub, rec, quietLogger(&bytes.Buffer{}))

	c, err := svc.Create(ctx, core.NewCustomer{Name: "Ravi Kumar", Village: "Lakshmipur", Phone: "9876543210", TotalAmount: core.Rupees(12000)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.AddPayment(ctx, c.ID, core.NewPayment{Date: core.NewDate(2024, 1, 10), Amount: core.Rupees(4000)}); err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if _, err := svc.Update(ctx, c.ID, core.CustomerPatch{}); err != nil {
		t.Fatalf("empty update: %v", err)
	}
	replaced, err := svc.Replace(ctx, c.ID, core.NewCustomer{Name: "Ravi K", Village: "Lakshmipur", Phone: "1", TotalAmount: core.Rupees(9000)})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if replaced.Due() != core.Rupees(5000) || len(replaced.Payments) != 1 {
		t.Fatalf("replace should keep payments: %+v", replaced)
	}
	if ok, err := svc.Delete(ctx, c.ID); err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if ok, _ := svc.Delete(ctx, c.ID); ok {
		t.Fatal("second delete should report false")
	}

	want := []string{amqp.EventCustomerCreated, amqp.EventPaymentAdded, amqp.EventCustomerUpdated, amqp.EventCustomerDeleted}
	got := pub.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if pub.events[1].Customer.Due != core.Rupees(8000) {
		t.Errorf("payment event snapshot due = %v", pub.events[1].Customer.Due)
	}

	if rec.ops["delete/ok"] != 1 || rec.ops["delete/not_found"] != 1 || rec.ops["add_payment/ok"] != 1 {
		t.Errorf("unexpected operation counts: %v", rec.ops)
	}
	if len(rec.payments) != 1 || rec.payments[0] != 4000 {
		t.Errorf("payments observed = %v", rec.payments)
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	var logs bytes.Buffer
	pub := &fakePublisher{err: errors.New("broker down")}
	rec := newFakeRecorder()
	svc := NewLedgerService(memory.New(nil), pub, rec, quietLogger(&logs))

	c, err := svc.Create(context.Background(), core.NewCustomer{Name: "A", Village: "V", Phone: "1"})
	if err != nil {
		t.Fatalf("create should succeed despite publish failure: %v", err)
	}
	if _, err := svc.Get(context.Background(), c.ID); err != nil {
		t.Fatalf("customer should be stored: %v", err)
	}
	if len(rec.failures) != 1 || rec.failures[0] != amqp.EventCustomerCreated {
		t.Errorf("publish failures = %v", rec.failures)
	}
	if !bytes.Contains(logs.Bytes(), []byte("Failed to publish customer event")) {
		t.Errorf("publish failure should be logged, got: %s", logs.String())
	}
}

func TestLedgerService_NotFoundIsWrapped(t *testing.T) {
	rec := newFakeRecorder()
	svc := NewLedgerService(memory.New(nil), nil, rec, quietLogger(&bytes.Buffer{}))

	_, err := svc.AddPayment(context.Background(), "missing", core.NewPayment{Date: core.NewDate(2024, 1, 1), Amount: core.Rupees(1)})
	if !errors.Is(err, core.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if rec.ops["add_payment/not_found"] != 1 {
		t.Errorf("not-found should be counted: %v", rec.ops)
	}
}

func TestLedgerService_CloseAndPing(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(nil), pub, metrics.New(), nil)
	if err := svc.Ping(context.Background()); err != nil {
		t.Fatalf("memory store should always be ready: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !pub.closed {
		t.Error("publisher should be closed")
	}
}
