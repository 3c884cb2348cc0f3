package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/ledger"

	_ "modernc.org/sqlite"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

// SQLiteRepository is a ledger.Store backed by a single SQLite file.
// Customers are listed newest first by position; payments newest date first,
// same-day payments in insertion order.
type SQLiteRepository struct {
	db    *sql.DB
	newID func() string

	seed   []ledger.SeedCustomer
	seedMu sync.Mutex
	seeded bool
}

// seedTimeout bounds seeding, which runs detached from the caller's cancellation.
const seedTimeout = 10 * time.Second

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath, runs
// migrations and returns a repository that seeds an empty ledger on first access.
func NewSQLiteRepository(dbPath string, seed []ledger.SeedCustomer) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers the same way the memory store's mutex does.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, newID: uuid.NewString, seed: seed}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ensureSeeded seeds an empty ledger once. A failed attempt rolls back and
// the next call tries again.
func (r *SQLiteRepository) ensureSeeded(ctx context.Context) error {
	r.seedMu.Lock()
	defer r.seedMu.Unlock()
	if r.seeded || len(r.seed) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), seedTimeout)
	defer cancel()
	if err := r.seedTx(ctx); err != nil {
		return err
	}
	r.seeded = true
	return nil
}

func (r *SQLiteRepository) seedTx(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return fmt.Errorf("count customers: %w", err)
	}
	if n > 0 {
		return nil
	}
	// Insert in reverse so the first sample ends up first in list order.
	for i := len(r.seed) - 1; i >= 0; i-- {
		sc := r.seed[i]
		c, err := r.insertCustomer(ctx, tx, sc.Customer)
		if err != nil {
			return fmt.Errorf("seed customer %q: %w", sc.Customer.Name, err)
		}
		for _, p := range sc.Payments {
			if _, err := r.insertPayment(ctx, tx, c.ID, p); err != nil {
				return fmt.Errorf("seed payment for %q: %w", sc.Customer.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	slog.InfoContext(ctx, "Seeded empty ledger", "customers", len(r.seed))
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, query string) ([]core.Customer, error) {
	if err := r.ensureSeeded(ctx); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, village, phone, total_cents
		FROM customers
		ORDER BY position DESC`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []core.Customer
	index := map[string]int{}
	for rows.Next() {
		var c core.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Village, &c.Phone, &c.TotalAmount.Cents); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		if !c.Matches(query) {
			continue
		}
		c.Payments = []core.Payment{}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	if len(out) == 0 {
		return []core.Customer{}, nil
	}

	prow, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, paid_on, amount_cents
		FROM payments
		ORDER BY customer_id, paid_on DESC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer prow.Close()

	for prow.Next() {
		var (
			customerID string
			p          core.Payment
		)
		if err := scanPayment(prow, &p, &customerID); err != nil {
			return nil, err
		}
		if i, ok := index[customerID]; ok {
			out[i].Payments = append(out[i].Payments, p)
		}
	}
	if err := prow.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Customer, error) {
	if err := r.ensureSeeded(ctx); err != nil {
		return core.Customer{}, err
	}
	return r.get(ctx, id)
}

func (r *SQLiteRepository) get(ctx context.Context, id string) (core.Customer, error) {
	var c core.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, village, phone, total_cents
		FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Village, &c.Phone, &c.TotalAmount.Cents)
	if err == sql.ErrNoRows {
		return core.Customer{}, core.ErrCustomerNotFound
	}
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, paid_on, amount_cents
		FROM payments WHERE customer_id = ?
		ORDER BY paid_on DESC, rowid ASC`, id)
	if err != nil {
		return core.Customer{}, fmt.Errorf("get payments for %s: %w", id, err)
	}
	defer rows.Close()

	c.Payments = []core.Payment{}
	for rows.Next() {
		var (
			p     core.Payment
			owner string
		)
		if err := scanPayment(rows, &p, &owner); err != nil {
			return core.Customer{}, err
		}
		c.Payments = append(c.Payments, p)
	}
	if err := rows.Err(); err != nil {
		return core.Customer{}, fmt.Errorf("iterate payments for %s: %w", id, err)
	}
	return c, nil
}

func scanPayment(rows *sql.Rows, p *core.Payment, customerID *string) error {
	var paidOn string
	if err := rows.Scan(&p.ID, customerID, &paidOn, &p.Amount.Cents); err != nil {
		return fmt.Errorf("scan payment: %w", err)
	}
	d, err := core.ParseDate(paidOn)
	if err != nil {
		return fmt.Errorf("payment %s: %w", p.ID, err)
	}
	p.Date = d
	return nil
}

func (r *SQLiteRepository) Create(ctx context.Context, nc core.NewCustomer) (core.Customer, error) {
	if err := r.ensureSeeded(ctx); err != nil {
		return core.Customer{}, err
	}
	return r.insertCustomer(ctx, r.db, nc)
}

func (r *SQLiteRepository) insertCustomer(ctx context.Context, q querier, nc core.NewCustomer) (core.Customer, error) {
	c := core.Customer{
		ID:          r.newID(),
		Name:        nc.Name,
		Village:     nc.Village,
		Phone:       nc.Phone,
		TotalAmount: nc.TotalAmount,
		Payments:    []core.Payment{},
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO customers (id, name, village, phone, total_cents, position)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM customers))`,
		c.ID, c.Name, c.Village, c.Phone, c.TotalAmount.Cents)
	if err != nil {
		return core.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, patch core.CustomerPatch) (core.Customer, error) {
	if err := r.ensureSeeded(ctx); err != nil {
		return core.Customer{}, err
	}

	c, err := r.get(ctx, id)
	if err != nil {
		return core.Customer{}, err
	}
	if patch.IsEmpty() {
		return c, nil
	}
	patch.Apply(&c)

	_, err = r.db.ExecContext(ctx, `
		UPDATE customers
		SET name = ?, village = ?, phone = ?, total_cents = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		c.Name, c.Village, c.Phone, c.TotalAmount.Cents, id)
	if err != nil {
		return core.Customer{}, fmt.Errorf("update customer %s: %w", id, err)
	}
	return c, nil
}

// Delete removes the customer and its payments in one transaction.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.ensureSeeded(ctx); err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE customer_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete payments of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete customer %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) AddPayment(ctx context.Context, id string, np core.NewPayment) (core.Customer, error) {
	if err := r.ensureSeeded(ctx); err != nil {
		return core.Customer{}, err
	}
	ok, err := r.insertPayment(ctx, r.db, id, np)
	if err != nil {
		return core.Customer{}, err
	}
	if !ok {
		return core.Customer{}, core.ErrCustomerNotFound
	}
	return r.get(ctx, id)
}

// insertPayment reports false when no customer has the given id.
func (r *SQLiteRepository) insertPayment(ctx context.Context, q querier, id string, np core.NewPayment) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO payments (id, customer_id, paid_on, amount_cents)
		SELECT ?, id, ?, ? FROM customers WHERE id = ?`,
		r.newID(), np.Date.String(), np.Amount.Cents, id)
	if err != nil {
		return false, fmt.Errorf("insert payment for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
