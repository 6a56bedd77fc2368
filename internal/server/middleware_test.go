package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/ragchat-go/internal/logging"
)

func TestRequestLogger_RequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := requestLogger(logging.Discard(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(requestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("issued when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		if id := w.Header().Get(requestIDHeader); len(id) != 36 {
			t.Errorf("issued id = %q, want a UUID", id)
		}
	})

	t.Run("caller id echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		req.Header.Set(requestIDHeader, "trace-42")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if got := w.Header().Get(requestIDHeader); got != "trace-42" {
			t.Errorf("echoed id = %q, want trace-42", got)
		}
		if seen != "trace-42" {
			t.Errorf("handler saw %q", seen)
		}
	})

	t.Run("oversized id replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		req.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if got := w.Header().Get(requestIDHeader); len(got) != 36 {
			t.Errorf("id = %q, want a fresh UUID", got)
		}
	})
}

func TestRequestLogger_LogsStatusWithRequestFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := requestLogger(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/ask", nil))

	out := buf.String()
	for _, want := range []string{`"msg":"inside"`, `"path":"/api/ask"`, `"method":"POST"`, `"status":418`, `"request_id"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestRequestLogger_RecoversPanic(t *testing.T) {
	t.Parallel()

	h := requestLogger(logging.Discard(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"internal_error"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
