package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps the ledger in process memory. A single mutex serializes every
// operation; nothing survives a restart.
type Store struct {
	mu        sync.Mutex
	seed      []ledger.SeedCustomer
	seeded    bool
	customers []core.Customer
	newID     func() string
}

// New returns an empty store that loads seed on its first access.
// A nil seed leaves the store empty.
func New(seed []ledger.SeedCustomer) *Store {
	return &Store{seed: seed, newID: uuid.NewString}
}

// NewSeeded returns a store that starts with the sample customers.
func NewSeeded() *Store {
	return New(ledger.SampleCustomers())
}

// ensureSeeded must be called with s.mu held.
func (s *Store) ensureSeeded() {
	if s.seeded {
		return
	}
	s.seeded = true
	for _, sc := range s.seed {
		c := core.Customer{
			ID:          s.newID(),
			Name:        sc.Customer.Name,
			Village:     sc.Customer.Village,
			Phone:       sc.Customer.Phone,
			TotalAmount: sc.Customer.TotalAmount,
			Payments:    make([]core.Payment, 0, len(sc.Payments)),
		}
		for _, p := range sc.Payments {
			c.Payments = append(c.Payments, core.Payment{ID: s.newID(), Date: p.Date, Amount: p.Amount})
		}
		core.SortPayments(c.Payments)
		s.customers = append(s.customers, c)
	}
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.customers, func(c core.Customer) bool { return c.ID == id })
}

// List returns customers in store order, filtered by query when it is non-empty.
func (s *Store) List(_ context.Context, query string) ([]core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded()

	out := make([]core.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if c.Matches(query) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded()

	i := s.indexOf(id)
	if i < 0 {
		return core.Customer{}, core.ErrCustomerNotFound
	}
	return s.customers[i].Clone(), nil
}

// Create inserts the customer at the front with no payments.
func (s *Store) Create(_ context.Context, nc core.NewCustomer) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded()

	c := core.Customer{
		ID:          s.newID(),
		Name:        nc.Name,
		Village:     nc.Village,
		Phone:       nc.Phone,
		TotalAmount: nc.TotalAmount,
		Payments:    []core.Payment{},
	}
	s.customers = slices.Insert(s.customers, 0, c)
	return c.Clone(), nil
}

func (s *Store) Update(_ context.Context, id string, patch core.CustomerPatch) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded()

	i := s.indexOf(id)
	if i < 0 {
		return core.Customer{}, core.ErrCustomerNotFound
	}
	patch.Apply(&s.customers[i])
	return s.customers[i].Clone(), nil
}

// Delete drops the customer together with its payments.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.customers = slices.Delete(s.customers, i, i+1)
	return true, nil
}

func (s *Store) AddPayment(_ context.Context, id string, np core.NewPayment) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded()

	i := s.indexOf(id)
	if i < 0 {
		return core.Customer{}, core.ErrCustomerNotFound
	}
	c := &s.customers[i]
	c.Payments = append(c.Payments, core.Payment{ID: s.newID(), Date: np.Date, Amount: np.Amount})
	core.SortPayments(c.Payments)
	return c.Clone(), nil
}

// Len returns the number of stored customers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded()
	return len(s.customers)
}
