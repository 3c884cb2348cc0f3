package ledger

import (
	"context"

	"ledger/internal/core"
)

// Ports for the record store.
type (
	// CustomerReader looks customers up. Get returns core.ErrCustomerNotFound
	// for an unknown id.
	CustomerReader interface {
		List(ctx context.Context, query string) ([]core.Customer, error)
		Get(ctx context.Context, id string) (core.Customer, error)
	}

	// CustomerWriter mutates customers. Update and AddPayment return
	// core.ErrCustomerNotFound for an unknown id; Delete reports absence as false.
	CustomerWriter interface {
		Create(ctx context.Context, nc core.NewCustomer) (core.Customer, error)
		Update(ctx context.Context, id string, patch core.CustomerPatch) (core.Customer, error)
		Delete(ctx context.Context, id string) (bool, error)
	}

	// PaymentRecorder appends a payment and returns the customer with its
	// payments ordered newest first.
	PaymentRecorder interface {
		AddPayment(ctx context.Context, id string, np core.NewPayment) (core.Customer, error)
	}

	Store interface {
		CustomerReader
		CustomerWriter
		PaymentRecorder
	}
)
