package ledger

import "ledger/internal/core"

// SeedPayment and SeedCustomer describe the sample rows a fresh store starts with.
type (
	SeedPayment = core.NewPayment

	SeedCustomer struct {
		Customer core.NewCustomer
		Payments []SeedPayment
	}
)

// SampleCustomers returns the sample ledger used to populate an empty store.
// All sample payments are dated today.
func SampleCustomers() []SeedCustomer {
	today := core.Today()
	return []SeedCustomer{
		{
			Customer: core.NewCustomer{Name: "Ravi Kumar", Village: "Lakshmipur", Phone: "9876543210", TotalAmount: core.Rupees(12000)},
			Payments: []SeedPayment{
				{Date: today, Amount: core.Rupees(4000)},
				{Date: today, Amount: core.Rupees(1500)},
			},
		},
		{
			Customer: core.NewCustomer{Name: "Sita Devi", Village: "Bhargavpur", Phone: "9876501234", TotalAmount: core.Rupees(8000)},
			Payments: []SeedPayment{
				{Date: today, Amount: core.Rupees(3000)},
			},
		},
	}
}
