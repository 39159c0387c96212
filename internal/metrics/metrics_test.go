package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	HTTPRequestsTotal.Reset()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/products/{productID}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/products/123", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// The label must be the route pattern, not the concrete URL, or
	// every product ID becomes its own time series.
	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/products/{productID}", "200"))
	if got != 1 {
		t.Errorf("pattern-labeled counter = %v, want 1", got)
	}
	raw := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/products/123", "200"))
	if raw != 0 {
		t.Errorf("raw-path counter = %v, want 0", raw)
	}
}

func TestMiddlewareRecordsErrorStatus(t *testing.T) {
	HTTPRequestsTotal.Reset()

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/wallet/transfer", nil))

	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/wallet/transfer", "500"))
	if got != 1 {
		t.Errorf("500 counter = %v, want 1", got)
	}
}

func TestResponseWriterCapturesStatusAndSize(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	rw.WriteHeader(http.StatusCreated)
	if rw.statusCode != http.StatusCreated {
		t.Errorf("statusCode = %d, want 201", rw.statusCode)
	}

	body := []byte(`{"success":true}`)
	n, err := rw.Write(body)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(body) || rw.size != len(body) {
		t.Errorf("wrote %d, size %d, want both %d", n, rw.size, len(body))
	}
}

func TestPoolGaugesAreLabeled(t *testing.T) {
	setPoolGauges("pgx", 10, 4, 6, 25)
	setPoolGauges("sqlx", 3, 1, 2, 25)

	if got := testutil.ToFloat64(DBConnectionsOpen.WithLabelValues("pgx")); got != 10 {
		t.Errorf("pgx open = %v, want 10", got)
	}
	if got := testutil.ToFloat64(DBConnectionsOpen.WithLabelValues("sqlx")); got != 3 {
		t.Errorf("sqlx open = %v, want 3", got)
	}
	if got := testutil.ToFloat64(DBConnectionsInUse.WithLabelValues("pgx")); got != 4 {
		t.Errorf("pgx in use = %v, want 4", got)
	}
}

func TestHandlerServesDomainFamilies(t *testing.T) {
	// Touch one counter per family so they appear in the scrape.
	LoginAttemptsTotal.WithLabelValues("success").Inc()
	ChatMessagesTotal.WithLabelValues("global").Inc()
	ReportsRejectedTotal.WithLabelValues("duplicate").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}

	body := rec.Body.String()
	for _, family := range []string{
		"market_auth_login_attempts_total",
		"market_chat_messages_total",
		"market_reports_rejected_total",
	} {
		if !strings.Contains(body, family) {
			t.Errorf("scrape output missing %s", family)
		}
	}
}

func TestEveryCollectorDescribesItself(t *testing.T) {
	collectors := map[string]prometheus.Collector{
		"HTTPRequestsTotal":       HTTPRequestsTotal,
		"HTTPRequestDuration":     HTTPRequestDuration,
		"HTTPRequestsInFlight":    HTTPRequestsInFlight,
		"HTTPResponseSize":        HTTPResponseSize,
		"DBConnectionsOpen":       DBConnectionsOpen,
		"DBConnectionsInUse":      DBConnectionsInUse,
		"DBConnectionsIdle":       DBConnectionsIdle,
		"DBConnectionsMaxOpen":    DBConnectionsMaxOpen,
		"DBQueryDuration":         DBQueryDuration,
		"LoginAttemptsTotal":      LoginAttemptsTotal,
		"AccountLockoutsTotal":    AccountLockoutsTotal,
		"ReportsFiledTotal":       ReportsFiledTotal,
		"ReportsRejectedTotal":    ReportsRejectedTotal,
		"WalletTransfersTotal":    WalletTransfersTotal,
		"WalletTransferAmount":    WalletTransferAmount,
		"ChatMessagesTotal":       ChatMessagesTotal,
		"StreamConnectionsActive": StreamConnectionsActive,
		"StreamEventsPublished":   StreamEventsPublished,
	}

	for name, c := range collectors {
		descs := make(chan *prometheus.Desc, 10)
		c.Describe(descs)
		close(descs)
		if len(descs) == 0 {
			t.Errorf("%s has no descriptions", name)
		}
	}
}
