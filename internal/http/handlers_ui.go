package http

import (
	"errors"
	"net/http"

	"ledger/internal/core"
	applog "ledger/internal/log"
)

type customerRow struct {
	ID          string
	Name        string
	Village     string
	Phone       string
	Total       core.Money
	Paid        core.Money
	Due         core.Money
	LastPayment string
}

func toCustomerRow(c core.Customer) customerRow {
	row := customerRow{
		ID:      c.ID,
		Name:    c.Name,
		Village: c.Village,
		Phone:   c.Phone,
		Total:   c.TotalAmount,
		Paid:    c.Paid(),
		Due:     c.Due(),
	}
	if last, ok := c.LastPayment(); ok {
		row.LastPayment = last.String()
	}
	return row
}

type tableView struct {
	Query  string
	Rows   []customerRow
	Totals core.Totals
}

type detailView struct {
	Customer customerRow
	Payments []core.Payment
	Today    string
}

func newDetailView(c core.Customer) detailView {
	return detailView{Customer: toCustomerRow(c), Payments: c.Payments, Today: core.Today().String()}
}

// handleCustomersTable renders the table partial; totals cover only the rows shown.
func (s *Server) handleCustomersTable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	customers, err := s.ledger.List(r.Context(), q)
	if err != nil {
		s.uiError(w, r, applog.OpList, err)
		return
	}
	view := tableView{Query: q, Rows: make([]customerRow, 0, len(customers)), Totals: core.Summarize(customers)}
	for _, c := range customers {
		view.Rows = append(view.Rows, toCustomerRow(c))
	}
	s.render(w, r, "customers_table.html", view)
}

func (s *Server) handleCustomerDetail(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.uiError(w, r, applog.OpRead, err)
		return
	}
	s.render(w, r, "customer_detail.html", newDetailView(c))
}

func (s *Server) handleUICreateCustomer(w http.ResponseWriter, r *http.Request) {
	nc, err := NewRequestBodyParser(w, r).CustomerFromForm()
	if err != nil {
		s.uiError(w, r, applog.OpCreate, err)
		return
	}
	c, err := s.ledger.Create(r.Context(), nc)
	if err != nil {
		s.uiError(w, r, applog.OpCreate, err)
		return
	}
	NewHTMXResponse().
		TriggerCustomersChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Customer " + c.Name + " added").
		BodyHTML(`<div class="success">Customer added</div>`).
		Write(w)
}

// handleUIUpdateCustomer saves the edit form, which always carries every field.
func (s *Server) handleUIUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	nc, err := NewRequestBodyParser(w, r).CustomerFromForm()
	if err != nil {
		s.uiError(w, r, applog.OpReplace, err)
		return
	}
	c, err := s.ledger.Replace(r.Context(), r.PathValue("id"), nc)
	if err != nil {
		s.uiError(w, r, applog.OpReplace, err)
		return
	}
	s.renderWith(w, r, NewHTMXResponse().TriggerCustomersChanged().TriggerSuccessNotification("Customer saved"),
		"customer_detail.html", newDetailView(c))
}

func (s *Server) handleUIAddPayment(w http.ResponseWriter, r *http.Request) {
	np, err := NewRequestBodyParser(w, r).PaymentFromForm()
	if err != nil {
		s.uiError(w, r, applog.OpAddPayment, err)
		return
	}
	c, err := s.ledger.AddPayment(r.Context(), r.PathValue("id"), np)
	if err != nil {
		s.uiError(w, r, applog.OpAddPayment, err)
		return
	}
	s.renderWith(w, r, NewHTMXResponse().TriggerCustomersChanged().TriggerSuccessNotification("Payment recorded"),
		"customer_detail.html", newDetailView(c))
}

func (s *Server) handleUIDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := s.ledger.Delete(r.Context(), id)
	if err != nil {
		s.uiError(w, r, applog.OpDelete, err)
		return
	}
	if !ok {
		s.uiError(w, r, applog.OpDelete, core.ErrCustomerNotFound)
		return
	}
	NewHTMXResponse().
		TriggerCustomersChanged().
		TriggerCustomerDeleted(id).
		TriggerSuccessNotification("Customer deleted").
		Write(w)
}

// uiError answers a partial request with an HTML error fragment.
func (s *Server) uiError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch status := statusFor(err); status {
	case http.StatusNotFound:
		NotFoundError("Customer not found").Write(w)
	case http.StatusBadRequest:
		BadRequestError("Invalid request").Write(w)
	case http.StatusUnprocessableEntity:
		UnprocessableEntityError("Invalid data: " + validationMessage(err)).Write(w)
	default:
		applog.FromContext(r.Context()).LogError(r.Context(), "UI request failed", err, applog.ComponentLedger, op,
			applog.LogFields{applog.FieldCustomerID: r.PathValue("id")})
		InternalServerError("Something went wrong").TriggerErrorNotification("Request failed").Write(w)
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		return "name is required"
	case errors.Is(err, core.ErrEmptyVillage):
		return "village is required"
	case errors.Is(err, core.ErrEmptyPhone):
		return "phone is required"
	case errors.Is(err, core.ErrMissingTotal):
		return "total amount is required"
	case errors.Is(err, core.ErrNegativeAmount):
		return "amount cannot be negative"
	case errors.Is(err, core.ErrInvalidAmount):
		return "amount must be a positive number"
	case errors.Is(err, core.ErrInvalidDate):
		return "date must be yyyy-mm-dd"
	default:
		return err.Error()
	}
}
