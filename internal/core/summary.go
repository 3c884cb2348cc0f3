package core

// Totals aggregates total, paid and due across a set of customers.
type Totals struct {
	Total Money
	Paid  Money
	Due   Money
}

// Summarize reduces the given customers into their combined totals.
func Summarize(customers []Customer) Totals {
	var t Totals
	for _, c := range customers {
		paid := c.Paid()
		t.Total = t.Total.Add(c.TotalAmount)
		t.Paid = t.Paid.Add(paid)
		t.Due = t.Due.Add(c.TotalAmount.Sub(paid))
	}
	return t
}
