package google

import (
	"fmt"
	"strings"
	"time"

	"ledger/internal/core"
)

const lastColumn = "J"

// CustomerRow is one mirrored customer.
type CustomerRow struct {
	ID          string
	Name        string
	Village     string
	Phone       string
	Total       core.Money
	Paid        core.Money
	Due         core.Money
	Payments    int
	LastPayment string
	UpdatedAt   time.Time
}

func Header() []any {
	return []any{"ID", "Name", "Village", "Phone", "Total Amount", "Paid", "Due", "Payments", "Last Payment", "Updated At"}
}

// Values renders the row in column order. Amounts are plain decimals so the
// sheet parses them as numbers; user-entered text is forced literal.
func (r CustomerRow) Values() []any {
	return []any{
		r.ID,
		literal(r.Name),
		literal(r.Village),
		literal(r.Phone),
		r.Total.String(),
		r.Paid.String(),
		r.Due.String(),
		r.Payments,
		r.LastPayment,
		r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// literal prefixes s with an apostrophe so USER_ENTERED input keeps it as
// text: no formulas, no numeric conversion of phones like 09876543210.
func literal(s string) string {
	if s == "" {
		return s
	}
	return "'" + s
}

// a1 builds an A1 range, quoting the sheet name.
func a1(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}

func rowRange(sheet string, n int) string {
	return a1(sheet, fmt.Sprintf("A%d:%s%d", n, lastColumn, n))
}

// findRow returns the 1-based row whose first cell equals id, or 0.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if cell, ok := row[0].(string); ok && strings.TrimPrefix(strings.TrimSpace(cell), "'") == id {
			return i + 1
		}
	}
	return 0
}
