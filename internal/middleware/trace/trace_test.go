package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/log"
)

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if !strings.HasPrefix(a, "req_") || len(a) != len("req_")+16 {
		t.Errorf("unexpected request id %q", a)
	}
	if a == b {
		t.Error("request ids should be unique")
	}
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Format: "json", Level: slog.LevelDebug})
	m := NewMiddleware(logger, func(*http.Request) string { return "203.0.113.7" })

	var seenLogger *log.Logger
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenLogger = log.FromContext(r.Context())
		seenLogger.InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK) // ignored by net/http, must not change the logged status
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions?limit=5", nil))

	seenID := rr.Header().Get(RequestIDHeader)
	if !strings.HasPrefix(seenID, "req_") {
		t.Fatalf("%s = %q", RequestIDHeader, seenID)
	}

	var entries []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var e map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("bad log line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d log lines, want 3: %s", len(entries), buf.String())
	}
	for _, e := range entries {
		if e[log.FieldRequestID] != seenID {
			t.Errorf("log line %v lacks request id", e)
		}
	}
	end := entries[2]
	if end["msg"] != "HTTP request completed" || end["level"] != "WARN" {
		t.Errorf("completion line = %v", end)
	}
	if end[log.FieldStatusCode] != float64(http.StatusNotFound) {
		t.Errorf("status = %v", end[log.FieldStatusCode])
	}
	if end[log.FieldClientIP] != "203.0.113.7" {
		t.Errorf("client ip = %v", end[log.FieldClientIP])
	}

	if got := m.GetMetrics(); got.TotalRequests != 1 || got.ServerErrors != 0 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestMiddleware_CountsServerErrors(t *testing.T) {
	m := NewMiddleware(nil, nil)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := m.GetMetrics().ServerErrors; got != 1 {
		t.Errorf("ServerErrors = %d, want 1", got)
	}
}
