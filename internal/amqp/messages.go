package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
)

// Event types double as topic routing keys.
const (
	EventCustomerCreated = "customer.created"
	EventCustomerUpdated = "customer.updated"
	EventCustomerDeleted = "customer.deleted"
	EventPaymentAdded    = "customer.payment_added"
)

// RoutingPattern binds the queue to every customer event.
const RoutingPattern = "customer.*"

var ErrInvalidEvent = errors.New("invalid customer event")

// CustomerSnapshot is the customer state carried by an event, with paid and
// due already derived so consumers never recompute them.
type CustomerSnapshot struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Village      string     `json:"village"`
	Phone        string     `json:"phone"`
	TotalAmount  core.Money `json:"total_amount"`
	Paid         core.Money `json:"paid"`
	Due          core.Money `json:"due"`
	PaymentCount int        `json:"payment_count"`
	LastPayment  string     `json:"last_payment,omitempty"`
}

func SnapshotOf(c core.Customer) CustomerSnapshot {
	s := CustomerSnapshot{
		ID:           c.ID,
		Name:         c.Name,
		Village:      c.Village,
		Phone:        c.Phone,
		TotalAmount:  c.TotalAmount,
		Paid:         c.Paid(),
		Due:          c.Due(),
		PaymentCount: len(c.Payments),
	}
	if last, ok := c.LastPayment(); ok {
		s.LastPayment = last.String()
	}
	return s
}

// CustomerEvent announces one change to a customer. Deleted events carry no
// snapshot.
type CustomerEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	CustomerID string            `json:"customer_id"`
	Customer   *CustomerSnapshot `json:"customer,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewCustomerEvent builds a created, updated or payment_added event.
func NewCustomerEvent(eventType string, c core.Customer) *CustomerEvent {
	snap := SnapshotOf(c)
	return &CustomerEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		CustomerID: c.ID,
		Customer:   &snap,
		Timestamp:  time.Now().UTC(),
	}
}

func NewCustomerDeletedEvent(customerID string) *CustomerEvent {
	return &CustomerEvent{
		ID:         uuid.NewString(),
		Type:       EventCustomerDeleted,
		CustomerID: customerID,
		Timestamp:  time.Now().UTC(),
	}
}

func (e *CustomerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Validate checks the event is one a consumer can act on.
func (e *CustomerEvent) Validate() error {
	if e.CustomerID == "" {
		return fmt.Errorf("%w: missing customer_id", ErrInvalidEvent)
	}
	switch e.Type {
	case EventCustomerDeleted:
		return nil
	case EventCustomerCreated, EventCustomerUpdated, EventPaymentAdded:
		if e.Customer == nil {
			return fmt.Errorf("%w: %s without customer snapshot", ErrInvalidEvent, e.Type)
		}
		if e.Customer.ID != e.CustomerID {
			return fmt.Errorf("%w: snapshot id %q does not match %q", ErrInvalidEvent, e.Customer.ID, e.CustomerID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
}

// CustomerEventFromJSON decodes and validates an event body.
func CustomerEventFromJSON(data []byte) (*CustomerEvent, error) {
	var e CustomerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode customer event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
