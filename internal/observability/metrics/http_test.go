package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler { return m.Middleware("api", next) })
	router.Get("/api/v1/documents/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/api/v1/documents/{id}", "204"))
	if got != 2 {
		t.Fatalf("expected 2 requests under the route pattern, got %v", got)
	}
}

func TestObserverCountsOperationsAndDecisions(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	obs := m.Observer("api")

	obs.ObserveOperation("create", "ok")
	obs.ObserveDecision("read", false)
	obs.ObserveDecision("read", false)

	if got := testutil.ToFloat64(m.operationsTotal.WithLabelValues("api", "create", "ok")); got != 1 {
		t.Fatalf("expected 1 create, got %v", got)
	}
	if got := testutil.ToFloat64(m.decisionsTotal.WithLabelValues("api", "read", "deny")); got != 2 {
		t.Fatalf("expected 2 denials, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "docgov_policy_decisions_total") {
		t.Fatalf("expected decisions metric in exposition")
	}
}

func TestRecordAuditDropped(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordAuditDropped("api")

	if got := testutil.ToFloat64(m.auditDroppedTotal.WithLabelValues("api")); got != 1 {
		t.Fatalf("expected 1 dropped entry, got %v", got)
	}
}
