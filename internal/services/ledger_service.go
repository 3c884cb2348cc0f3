package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	applog "ledger/internal/log"
	"ledger/internal/metrics"
)

var _ ledger.Store = (*LedgerService)(nil)

// EventPublisher sends change events to the sheet mirror.
type EventPublisher interface {
	PublishCustomerEvent(ctx context.Context, event *amqp.CustomerEvent) error
}

// Recorder receives per-operation counters.
type Recorder interface {
	IncOperation(operation, outcome string)
	ObservePayment(rupees float64)
	IncPublishFailure(eventType string)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// LedgerService fronts a ledger.Store, counting operations and announcing
// every successful write. Publishing is best effort: the write has already
// happened, so a failed publish is logged and never returned.
type LedgerService struct {
	store     ledger.Store
	publisher EventPublisher
	recorder  Recorder
	logger    *applog.Logger
}

// NewLedgerService wires the service. publisher and recorder may be nil.
func NewLedgerService(store ledger.Store, publisher EventPublisher, recorder Recorder, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.WithComponent(applog.ComponentLedger),
	}
}

func (s *LedgerService) List(ctx context.Context, query string) ([]core.Customer, error) {
	out, err := s.store.List(ctx, query)
	s.count(applog.OpList, err)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

func (s *LedgerService) Get(ctx context.Context, id string) (core.Customer, error) {
	c, err := s.store.Get(ctx, id)
	s.count(applog.OpRead, err)
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer %s: %w", id, err)
	}
	return c, nil
}

func (s *LedgerService) Create(ctx context.Context, nc core.NewCustomer) (core.Customer, error) {
	c, err := s.store.Create(ctx, nc)
	s.count(applog.OpCreate, err)
	if err != nil {
		return core.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	s.logger.LogLedgerChange(ctx, applog.OpCreate, c.ID, c.Name, c.Due().Cents)
	s.publish(ctx, amqp.NewCustomerEvent(amqp.EventCustomerCreated, c))
	return c, nil
}

// Replace overwrites all four editable fields; payments are kept.
func (s *LedgerService) Replace(ctx context.Context, id string, nc core.NewCustomer) (core.Customer, error) {
	c, err := s.store.Update(ctx, id, core.ReplaceWith(nc))
	s.count(applog.OpReplace, err)
	if err != nil {
		return core.Customer{}, fmt.Errorf("replace customer %s: %w", id, err)
	}
	s.logger.LogLedgerChange(ctx, applog.OpReplace, c.ID, c.Name, c.Due().Cents)
	s.publish(ctx, amqp.NewCustomerEvent(amqp.EventCustomerUpdated, c))
	return c, nil
}

func (s *LedgerService) Update(ctx context.Context, id string, patch core.CustomerPatch) (core.Customer, error) {
	c, err := s.store.Update(ctx, id, patch)
	s.count(applog.OpUpdate, err)
	if err != nil {
		return core.Customer{}, fmt.Errorf("update customer %s: %w", id, err)
	}
	if !patch.IsEmpty() {
		s.logger.LogLedgerChange(ctx, applog.OpUpdate, c.ID, c.Name, c.Due().Cents)
		s.publish(ctx, amqp.NewCustomerEvent(amqp.EventCustomerUpdated, c))
	}
	return c, nil
}

func (s *LedgerService) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.store.Delete(ctx, id)
	switch {
	case err != nil:
		s.count(applog.OpDelete, err)
		return false, fmt.Errorf("delete customer %s: %w", id, err)
	case !ok:
		s.count(applog.OpDelete, core.ErrCustomerNotFound)
		return false, nil
	}
	s.count(applog.OpDelete, nil)
	s.logger.LogLedgerChange(ctx, applog.OpDelete, id, "", 0)
	s.publish(ctx, amqp.NewCustomerDeletedEvent(id))
	return true, nil
}

func (s *LedgerService) AddPayment(ctx context.Context, id string, np core.NewPayment) (core.Customer, error) {
	c, err := s.store.AddPayment(ctx, id, np)
	s.count(applog.OpAddPayment, err)
	if err != nil {
		return core.Customer{}, fmt.Errorf("add payment to %s: %w", id, err)
	}
	if s.recorder != nil {
		s.recorder.ObservePayment(np.Amount.Decimal().InexactFloat64())
	}
	s.logger.InfoContext(ctx, "Payment recorded",
		applog.NewFields().
			WithCustomer(c.ID, c.Name, c.Due().Cents).
			WithPayment(np.Date.String(), np.Amount.Cents).
			ToSlice()...)
	s.publish(ctx, amqp.NewCustomerEvent(amqp.EventPaymentAdded, c))
	return c, nil
}

// Ping reports whether the underlying store is reachable. Stores without a
// Ping method are always ready.
func (s *LedgerService) Ping(ctx context.Context) error {
	if p, ok := s.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.CustomerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCustomerEvent(ctx, event); err != nil {
		if s.recorder != nil {
			s.recorder.IncPublishFailure(event.Type)
		}
		s.logger.ErrorContext(ctx, "Failed to publish customer event",
			applog.FieldEventType, event.Type,
			applog.FieldCustomerID, event.CustomerID,
			applog.FieldError, err)
	}
}

func (s *LedgerService) count(op string, err error) {
	if s.recorder == nil {
		return
	}
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, core.ErrCustomerNotFound):
		outcome = metrics.OutcomeNotFound
	case err != nil:
		outcome = metrics.OutcomeError
	}
	s.recorder.IncOperation(op, outcome)
}

// Close releases the store and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
