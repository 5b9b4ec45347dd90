package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logger(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/quests", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, rr.Code)
	}
	if got := rr.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("Expected request ID to be echoed, got %q", got)
	}
	out := buf.String()
	for _, want := range []string{"request_id=req-42", "status=418", "path=/v1/quests"} {
		if !strings.Contains(out, want) {
			t.Errorf("Log line missing %q: %s", want, out)
		}
	}
}

func TestLogger_GeneratesRequestID(t *testing.T) {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := Logger(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request ID")
	}
}
