package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_RecordsAndExposes(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/api/customers/", 200, 15*time.Millisecond)
	m.IncOperation("add_payment", OutcomeOK)
	m.IncOperation("add_payment", OutcomeNotFound)
	m.ObservePayment(4000)
	m.IncPublishFailure("customer.created")

	body := scrape(t, m)
	for _, want := range []string{
		`ledger_http_requests_total{code="200",method="GET",route="/api/customers/"} 1`,
		`ledger_operations_total{operation="add_payment",outcome="ok"} 1`,
		`ledger_operations_total{operation="add_payment",outcome="not_found"} 1`,
		`ledger_payment_amount_rupees_count 1`,
		`ledger_event_publish_failures_total{event_type="customer.created"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP(http.MethodGet, "/", 200, time.Millisecond)
	m.IncOperation("list", OutcomeOK)
	m.ObservePayment(1)
	m.IncPublishFailure("x")
}
