package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ledger/internal/core"
	"ledger/internal/ledger/memory"
	applog "ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := applog.DefaultConfig()
	cfg.Output = io.Discard
	logger := applog.New(cfg)
	svc := services.NewLedgerService(memory.New(nil), nil, nil, logger)
	return NewServer(":0", svc, Options{Logger: logger, Metrics: metrics.New()})
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func doForm(t *testing.T, srv *Server, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeCustomer(t *testing.T, rr *httptest.ResponseRecorder) customerJSON {
	t.Helper()
	var c customerJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode customer: %v (body %s)", err, rr.Body.String())
	}
	return c
}

func createRavi(t *testing.T, srv *Server) customerJSON {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/api/customers/",
		`{"name":"Ravi Kumar","village":"Lakshmipur","phone":"9876543210","total_amount":12000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decodeCustomer(t, rr)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
}

func TestCustomerLifecycle(t *testing.T) {
	srv := newTestServer(t)

	created := createRavi(t, srv)
	if created.ID == "" || created.TotalAmount != core.Rupees(12000) || created.TotalAmountCamel != core.Rupees(12000) {
		t.Fatalf("created = %+v", created)
	}
	if len(created.Payments) != 0 || created.Due != core.Rupees(12000) {
		t.Fatalf("new customer should owe the full total: %+v", created)
	}
	base := "/api/customers/" + created.ID + "/"

	rr := do(t, srv, http.MethodPost, base+"payments/", `{"date":"2024-01-10","amount":4000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("payment status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodPost, base+"payments/", `{"date":"2024-01-05","amount":"1500"}`)
	got := decodeCustomer(t, rr)
	if got.Paid != core.Rupees(5500) || got.Due != core.Rupees(6500) {
		t.Fatalf("paid=%v due=%v", got.Paid, got.Due)
	}
	if len(got.Payments) != 2 || got.Payments[0].Date.String() != "2024-01-10" || got.Payments[1].Date.String() != "2024-01-05" {
		t.Fatalf("payments not newest first: %+v", got.Payments)
	}

	rr = do(t, srv, http.MethodPatch, base, `{"totalAmount":9000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	got = decodeCustomer(t, rr)
	if got.Due != core.Rupees(3500) || got.Name != "Ravi Kumar" {
		t.Fatalf("after patch = %+v", got)
	}

	rr = do(t, srv, http.MethodPut, base, `{"name":"Ravi K","village":"Lakshmipur","phone":"9000000000","totalAmount":10000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got = decodeCustomer(t, rr); got.Phone != "9000000000" || got.Due != core.Rupees(4500) {
		t.Fatalf("after put = %+v", got)
	}

	rr = do(t, srv, http.MethodGet, base, "")
	var item struct {
		Item customerJSON `json:"item"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &item); err != nil || item.Item.Name != "Ravi K" {
		t.Fatalf("get = %s (%v)", rr.Body.String(), err)
	}

	if rr = do(t, srv, http.MethodDelete, base, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr = do(t, srv, http.MethodGet, base, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
	if rr = do(t, srv, http.MethodDelete, base, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestListAndSearch(t *testing.T) {
	srv := newTestServer(t)
	createRavi(t, srv)
	do(t, srv, http.MethodPost, "/api/customers/", `{"name":"Sita Devi","village":"Bhargavpur","phone":"9876501234","totalAmount":8000}`)

	tests := []struct {
		path string
		want []string
	}{
		{"/api/customers/", []string{"Sita Devi", "Ravi Kumar"}},
		{"/api/customers", []string{"Sita Devi", "Ravi Kumar"}},
		{"/api/customers/?q=ravi", []string{"Ravi Kumar"}},
		{"/api/customers/?q=BHARGAV", []string{"Sita Devi"}},
		{"/api/customers/?q=zzz", nil},
	}
	for _, tt := range tests {
		rr := do(t, srv, http.MethodGet, tt.path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", tt.path, rr.Code)
		}
		var body struct {
			Items []customerJSON `json:"items"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s decode: %v", tt.path, err)
		}
		if body.Items == nil {
			t.Fatalf("%s: items must be an array, got %s", tt.path, rr.Body.String())
		}
		if len(body.Items) != len(tt.want) {
			t.Fatalf("%s: got %d items, want %d", tt.path, len(body.Items), len(tt.want))
		}
		for i, name := range tt.want {
			if body.Items[i].Name != name {
				t.Errorf("%s: item %d = %q, want %q", tt.path, i, body.Items[i].Name, name)
			}
		}
	}
}

func TestAPIErrors(t *testing.T) {
	srv := newTestServer(t)
	c := createRavi(t, srv)
	base := "/api/customers/" + c.ID + "/"

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"create missing name", http.MethodPost, "/api/customers/", `{"village":"V","phone":"1","total_amount":1}`, 422},
		{"create blank phone", http.MethodPost, "/api/customers/", `{"name":"A","village":"V","phone":"  ","total_amount":1}`, 422},
		{"create missing total", http.MethodPost, "/api/customers/", `{"name":"A","village":"V","phone":"1"}`, 422},
		{"create negative total", http.MethodPost, "/api/customers/", `{"name":"A","village":"V","phone":"1","total_amount":-5}`, 422},
		{"create bad amount", http.MethodPost, "/api/customers/", `{"name":"A","village":"V","phone":"1","total_amount":"lots"}`, 422},
		{"create not json", http.MethodPost, "/api/customers/", `name=A`, 400},
		{"create empty body", http.MethodPost, "/api/customers/", ``, 400},
		{"put unknown", http.MethodPut, "/api/customers/nope/", `{"name":"A","village":"V","phone":"1","total_amount":1}`, 404},
		{"put partial", http.MethodPut, base, `{"name":"A"}`, 422},
		{"patch wrong type", http.MethodPatch, base, `{"name":123}`, 400},
		{"patch bad amount", http.MethodPatch, base, `{"totalAmount":"abc"}`, 400},
		{"patch null", http.MethodPatch, base, `{"phone":null}`, 400},
		{"patch unknown", http.MethodPatch, "/api/customers/nope/", `{"name":"A"}`, 404},
		{"payment zero", http.MethodPost, base + "payments/", `{"date":"2024-01-01","amount":0}`, 422},
		{"payment bad date", http.MethodPost, base + "payments/", `{"date":"01/02/2024","amount":10}`, 422},
		{"payment missing date", http.MethodPost, base + "payments/", `{"amount":10}`, 422},
		{"payment unknown customer", http.MethodPost, "/api/customers/nope/payments/", `{"date":"2024-01-01","amount":10}`, 404},
		{"get unknown", http.MethodGet, "/api/customers/nope/", "", 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Fatalf("expected {\"error\": ...}, got %s", rr.Body.String())
			}
		})
	}

	// Nothing above should have touched the existing customer.
	rr := do(t, srv, http.MethodGet, base, "")
	var item struct {
		Item customerJSON `json:"item"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &item)
	if item.Item.Name != "Ravi Kumar" || len(item.Item.Payments) != 0 {
		t.Fatalf("customer changed by rejected requests: %+v", item.Item)
	}
}

func TestPatchEmptyBodyObjectKeepsCustomer(t *testing.T) {
	srv := newTestServer(t)
	c := createRavi(t, srv)
	rr := do(t, srv, http.MethodPatch, "/api/customers/"+c.ID+"/", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decodeCustomer(t, rr); got.Name != c.Name || got.TotalAmount != c.TotalAmount {
		t.Fatalf("empty patch changed customer: %+v", got)
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)
	c := createRavi(t, srv)
	do(t, srv, http.MethodPost, "/api/customers/"+c.ID+"/payments/", `{"date":"2024-01-10","amount":4000}`)
	do(t, srv, http.MethodPost, "/api/customers/", `{"name":"Sita Devi","village":"Bhargavpur","phone":"9876501234","total_amount":8000}`)

	rr := do(t, srv, http.MethodGet, "/api/customers/export/?q=ravi", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, "customers-") {
		t.Fatalf("content disposition = %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, one row and totals, got:\n%s", rr.Body.String())
	}
	if !strings.HasPrefix(lines[0], "ID,Name,Village") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Ravi Kumar") || !strings.Contains(lines[1], "8000.00") {
		t.Fatalf("row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "TOTAL,") {
		t.Fatalf("totals = %q", lines[2])
	}
}

func TestUIFlow(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Customer Ledger") {
		t.Fatalf("index status=%d", rr.Code)
	}

	rr = doForm(t, srv, http.MethodPost, "/ui/customers", url.Values{
		"name": {"Ravi Kumar"}, "village": {"Lakshmipur"}, "phone": {"9876543210"}, "total_amount": {"₹12,000"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("ui create status=%d body=%s", rr.Code, rr.Body.String())
	}
	if trig := rr.Header().Get("HX-Trigger"); !strings.Contains(trig, EventCustomersChanged) {
		t.Fatalf("missing %s trigger: %q", EventCustomersChanged, trig)
	}

	rr = do(t, srv, http.MethodGet, "/ui/customers?q=lakshmi", "")
	body := rr.Body.String()
	if rr.Code != http.StatusOK || !strings.Contains(body, "Ravi Kumar") || !strings.Contains(body, "₹12,000.00") {
		t.Fatalf("table status=%d body=%s", rr.Code, body)
	}

	customers, _ := srv.ledger.List(context.Background(), "")
	id := customers[0].ID

	rr = doForm(t, srv, http.MethodPost, "/ui/customers/"+id+"/payments", url.Values{"date": {"2024-01-10"}, "amount": {"4,000"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "₹8,000.00") {
		t.Fatalf("payment status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doForm(t, srv, http.MethodPost, "/ui/customers/"+id, url.Values{
		"name": {"Ravi Kumar"}, "village": {"Lakshmipur"}, "phone": {"9876543210"}, "total_amount": {"15000"},
	})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "₹11,000.00") {
		t.Fatalf("edit status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/ui/customers/"+id, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "2024-01-10") {
		t.Fatalf("detail status=%d", rr.Code)
	}

	rr = doForm(t, srv, http.MethodPost, "/ui/customers", url.Values{"name": {""}, "village": {"V"}, "phone": {"1"}, "total_amount": {"1"}})
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "name is required") {
		t.Fatalf("invalid create status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doForm(t, srv, http.MethodDelete, "/ui/customers/"+id, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("HX-Trigger"), EventCustomersChanged) {
		t.Fatalf("ui delete status=%d", rr.Code)
	}
	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("decode HX-Trigger: %v", err)
	}
	if got := string(triggers[EventCustomerDeleted]); got != `{"id":"`+id+`"}` {
		t.Fatalf("%s payload = %s", EventCustomerDeleted, got)
	}
	if rr = do(t, srv, http.MethodGet, "/ui/customers/"+id, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("detail after delete status=%d", rr.Code)
	}
}

func TestTableTotalsCoverShownRows(t *testing.T) {
	srv := newTestServer(t)
	createRavi(t, srv)
	do(t, srv, http.MethodPost, "/api/customers/", `{"name":"Sita Devi","village":"Bhargavpur","phone":"9876501234","total_amount":8000}`)

	all := do(t, srv, http.MethodGet, "/ui/customers", "").Body.String()
	if !strings.Contains(all, "₹20,000.00") {
		t.Fatalf("totals for all rows missing:\n%s", all)
	}
	one := do(t, srv, http.MethodGet, "/ui/customers?q=sita", "").Body.String()
	if strings.Contains(one, "₹20,000.00") || strings.Contains(one, "Ravi Kumar") {
		t.Fatalf("filtered table should only total Sita:\n%s", one)
	}
}

func TestMiddlewareAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/customers/", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}

	rr = do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("ledger_http_requests_total")) {
		t.Fatalf("metrics missing http counter:\n%s", rr.Body.String())
	}

	if rr = do(t, srv, http.MethodGet, "/static/app.css", ""); rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if rr = do(t, srv, http.MethodGet, "/does-not-exist", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestWriteRateLimit(t *testing.T) {
	cfg := applog.DefaultConfig()
	cfg.Output = io.Discard
	logger := applog.New(cfg)
	svc := services.NewLedgerService(memory.New(nil), nil, nil, logger)
	srv := NewServer(":0", svc, Options{Logger: logger, WritesPerMinute: 1})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	createRavi(t, srv)

	rr := do(t, srv, http.MethodDelete, "/api/customers/missing", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status=%d, want 429", rr.Code)
	}
	if rr = do(t, srv, http.MethodGet, "/api/customers", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads should not be limited, status=%d", rr.Code)
	}
}
