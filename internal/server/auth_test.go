package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		apiKey     string
		header     string
		wantStatus int
		challenge  string
	}{
		{"disabled without key", "", "", http.StatusOK, ""},
		{"disabled ignores header", "", "Bearer anything", http.StatusOK, ""},
		{"missing header", "secret", "", http.StatusUnauthorized, `Bearer realm="ragchat"`},
		{"wrong token", "secret", "Bearer nope", http.StatusUnauthorized, `error="invalid_token"`},
		{"basic scheme", "secret", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, `Bearer realm="ragchat"`},
		{"correct token", "secret", "Bearer secret", http.StatusOK, ""},
		{"scheme is case insensitive", "secret", "bEaReR secret", http.StatusOK, ""},
		{"token prefix is not enough", "secret", "Bearer secre", http.StatusUnauthorized, `error="invalid_token"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			authMiddleware(tc.apiKey, okHandler).ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if tc.challenge == "" {
				return
			}
			if got := w.Header().Get("WWW-Authenticate"); !strings.Contains(got, tc.challenge) {
				t.Errorf("WWW-Authenticate = %q, want it to contain %q", got, tc.challenge)
			}
			if !strings.Contains(w.Body.String(), `"code":"unauthorized"`) {
				t.Errorf("body = %s, want unauthorized code", w.Body.String())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	for header, want := range map[string]string{
		"Bearer mytoken":     "mytoken",
		"BEARER mytoken":     "mytoken",
		"Bearer  spaced ":    "spaced",
		"Basic dXNlcjpwYXNz": "",
		"":                   "",
		"Bearer":             "",
		"token only":         "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
