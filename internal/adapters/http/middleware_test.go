package httpadapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureAccessLog(t *testing.T, handler http.Handler, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(previous)

	handler.ServeHTTP(httptest.NewRecorder(), req)

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if record["msg"] == "http_request" {
			return record
		}
	}
	t.Fatalf("no http_request line in %q", buf.String())
	return nil
}

func TestAccessLogCarriesActorAndDocument(t *testing.T) {
	handler := newTestHandler(testConfig())
	req := authorized(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-7", nil), "u1", "admin")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	record := captureAccessLog(t, handler, req)
	if record["actor_id"] != "u1" || record["role"] != "admin" {
		t.Fatalf("expected actor in access log, got %v", record)
	}
	if record["document_id"] != "doc-7" {
		t.Fatalf("expected document id in access log, got %v", record)
	}
	if route, _ := record["route"].(string); !strings.Contains(route, "{id}") {
		t.Fatalf("expected route pattern, got %v", record["route"])
	}
	if record["remote_addr"] != "203.0.113.9" {
		t.Fatalf("expected forwarded client ip, got %v", record["remote_addr"])
	}
}

func TestAccessLogOmitsActorForRejectedToken(t *testing.T) {
	handler := newTestHandler(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)

	record := captureAccessLog(t, handler, req)
	if _, ok := record["actor_id"]; ok {
		t.Fatalf("unauthenticated request logged an actor: %v", record)
	}
	if status, _ := record["status"].(float64); int(status) != http.StatusUnauthorized {
		t.Fatalf("expected 401 in access log, got %v", record["status"])
	}
}
