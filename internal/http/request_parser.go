// This file decodes API bodies and UI forms into domain inputs.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ledger/internal/core"
)

const maxBodyBytes = 1 << 20

// customerBody accepts the total under either spelling.
type customerBody struct {
	Name             core.Field[string]     `json:"name"`
	Village          core.Field[string]     `json:"village"`
	Phone            core.Field[string]     `json:"phone"`
	TotalAmount      core.Field[core.Money] `json:"total_amount"`
	TotalAmountCamel core.Field[core.Money] `json:"totalAmount"`
}

// total prefers totalAmount when both are sent.
func (b customerBody) total() core.Field[core.Money] {
	if b.TotalAmountCamel.Set {
		return b.TotalAmountCamel
	}
	return b.TotalAmount
}

type paymentBody struct {
	Date   core.Field[string]     `json:"date"`
	Amount core.Field[core.Money] `json:"amount"`
}

// decodeJSON decodes a body of at most maxBodyBytes. Amount and date
// failures keep their validation error; anything else is errBadRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if isValidation(err) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// ParseNewCustomer decodes and validates a create or replace body.
// All four fields are required.
func ParseNewCustomer(w http.ResponseWriter, r *http.Request) (core.NewCustomer, error) {
	var body customerBody
	if err := decodeJSON(w, r, &body); err != nil {
		return core.NewCustomer{}, err
	}
	total := body.total()
	if !total.Set {
		return core.NewCustomer{}, core.ErrMissingTotal
	}
	nc := core.NewCustomer{
		Name:        sanitizeInput(body.Name.Value),
		Village:     sanitizeInput(body.Village.Value),
		Phone:       sanitizeInput(body.Phone.Value),
		TotalAmount: total.Value,
	}
	if err := nc.Validate(); err != nil {
		return core.NewCustomer{}, err
	}
	return nc, nil
}

// ParseCustomerPatch decodes a partial update. Any subset of fields may be
// present, and a present value of the wrong type is a 400.
func ParseCustomerPatch(w http.ResponseWriter, r *http.Request) (core.CustomerPatch, error) {
	var body customerBody
	if err := decodeJSON(w, r, &body); err != nil {
		if !errors.Is(err, errBadRequest) {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return core.CustomerPatch{}, err
	}
	patch := core.CustomerPatch{
		Name:        trimField(body.Name),
		Village:     trimField(body.Village),
		Phone:       trimField(body.Phone),
		TotalAmount: body.total(),
	}
	if patch.TotalAmount.Set && patch.TotalAmount.Value.Cents < 0 {
		return core.CustomerPatch{}, core.ErrNegativeAmount
	}
	return patch, nil
}

func trimField(f core.Field[string]) core.Field[string] {
	if f.Set {
		f.Value = sanitizeInput(f.Value)
	}
	return f
}

// ParseNewPayment decodes and validates a payment body.
func ParseNewPayment(w http.ResponseWriter, r *http.Request) (core.NewPayment, error) {
	var body paymentBody
	if err := decodeJSON(w, r, &body); err != nil {
		return core.NewPayment{}, err
	}
	if !body.Date.Set {
		return core.NewPayment{}, fmt.Errorf("%w: missing date", core.ErrInvalidDate)
	}
	date, err := core.ParseDate(body.Date.Value)
	if err != nil {
		return core.NewPayment{}, err
	}
	if !body.Amount.Set {
		return core.NewPayment{}, fmt.Errorf("%w: missing amount", core.ErrInvalidAmount)
	}
	np := core.NewPayment{Date: date, Amount: body.Amount.Value}
	if err := np.Validate(); err != nil {
		return core.NewPayment{}, err
	}
	return np, nil
}

// RequestBodyParser reads a UI form body, url-encoded or JSON, once.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse tries JSON when the body looks like an object, form encoding otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}
	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		p.err = json.Unmarshal(p.body, &p.jsonData)
		return p.err
	}
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns the sanitized value for key from whichever encoding was parsed.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// CustomerFromForm reads the add and edit forms. Amounts may carry ₹ and
// digit-grouping commas.
func (p *RequestBodyParser) CustomerFromForm() (core.NewCustomer, error) {
	if err := p.Parse(); err != nil {
		return core.NewCustomer{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	raw := p.Get("total_amount")
	if raw == "" {
		raw = p.Get("totalAmount")
	}
	if strings.TrimSpace(raw) == "" {
		return core.NewCustomer{}, core.ErrMissingTotal
	}
	total, err := core.ParseAmount(raw)
	if err != nil {
		return core.NewCustomer{}, err
	}
	nc := core.NewCustomer{
		Name:        p.Get("name"),
		Village:     p.Get("village"),
		Phone:       p.Get("phone"),
		TotalAmount: total,
	}
	return nc, nc.Validate()
}

func (p *RequestBodyParser) PaymentFromForm() (core.NewPayment, error) {
	if err := p.Parse(); err != nil {
		return core.NewPayment{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.NewPayment{}, err
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.NewPayment{}, err
	}
	np := core.NewPayment{Date: date, Amount: amount}
	return np, np.Validate()
}
