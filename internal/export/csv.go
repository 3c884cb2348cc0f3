// Package export renders the customer ledger as a spreadsheet file.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ledger/internal/core"
)

const ContentType = "text/csv; charset=utf-8"

var Header = []string{"ID", "Name", "Village", "Phone", "Total Amount", "Paid", "Due", "Payments", "Last Payment"}

// Filename returns the attachment name for an export taken on day.
func Filename(day core.Date) string {
	return fmt.Sprintf("customers-%s.csv", day.String())
}

// WriteCSV writes one row per customer in the given order followed by a TOTAL
// row summing the listed customers.
func WriteCSV(w io.Writer, customers []core.Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	payments := 0
	for _, c := range customers {
		last := ""
		if d, ok := c.LastPayment(); ok {
			last = d.String()
		}
		payments += len(c.Payments)
		row := []string{
			c.ID,
			textCell(c.Name),
			textCell(c.Village),
			textCell(c.Phone),
			c.TotalAmount.String(),
			c.Paid().String(),
			c.Due().String(),
			strconv.Itoa(len(c.Payments)),
			last,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write customer %s: %w", c.ID, err)
		}
	}

	totals := core.Summarize(customers)
	if err := cw.Write([]string{"TOTAL", "", "", "", totals.Total.String(), totals.Paid.String(), totals.Due.String(), strconv.Itoa(payments), ""}); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// textCell quotes user text that a spreadsheet would otherwise evaluate as a
// formula.
func textCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
