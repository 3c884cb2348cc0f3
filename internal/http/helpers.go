package http

import (
	"errors"
	"net/http"
	"strings"

	"ledger/internal/core"
	applog "ledger/internal/log"
)

type paymentJSON struct {
	ID     string     `json:"id"`
	Date   core.Date  `json:"date"`
	Amount core.Money `json:"amount"`
}

// customerJSON is the API shape of a customer. The total goes out under both
// spellings because clients read either.
type customerJSON struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Village          string        `json:"village"`
	Phone            string        `json:"phone"`
	TotalAmount      core.Money    `json:"total_amount"`
	TotalAmountCamel core.Money    `json:"totalAmount"`
	Paid             core.Money    `json:"paid"`
	Due              core.Money    `json:"due"`
	Payments         []paymentJSON `json:"payments"`
}

func toCustomerJSON(c core.Customer) customerJSON {
	out := customerJSON{
		ID:               c.ID,
		Name:             c.Name,
		Village:          c.Village,
		Phone:            c.Phone,
		TotalAmount:      c.TotalAmount,
		TotalAmountCamel: c.TotalAmount,
		Paid:             c.Paid(),
		Due:              c.Due(),
		Payments:         make([]paymentJSON, 0, len(c.Payments)),
	}
	for _, p := range c.Payments {
		out.Payments = append(out.Payments, paymentJSON{ID: p.ID, Date: p.Date, Amount: p.Amount})
	}
	return out
}

func toCustomersJSON(cs []core.Customer) []customerJSON {
	out := make([]customerJSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCustomerJSON(c))
	}
	return out
}

// errBadRequest marks a body that could not be decoded at all.
var errBadRequest = errors.New("malformed request body")

// isValidation reports whether err is a field-level validation failure.
func isValidation(err error) bool {
	for _, target := range []error{
		core.ErrEmptyName,
		core.ErrEmptyVillage,
		core.ErrEmptyPhone,
		core.ErrMissingTotal,
		core.ErrNegativeAmount,
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps an error to its response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case isValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeAPIError answers with {"error": msg}. Internal errors are logged and
// their detail is not sent to the client.
func writeAPIError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).LogError(r.Context(), "Ledger request failed", err, applog.ComponentLedger, op,
			applog.LogFields{applog.FieldCustomerID: r.PathValue("id")})
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
