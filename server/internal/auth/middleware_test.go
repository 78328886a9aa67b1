package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// okHandler answers 200 "ok".
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func call(t *testing.T, mw func(http.Handler) http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	mw(okHandler).ServeHTTP(rec, req)
	return rec
}

func TestAPIKey_ModeNone_PassesThrough(t *testing.T) {
	rec := call(t, APIKey("none", "x-api-key", "secret"), "x-api-key", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPIKey_EmptyKey_PassesThrough(t *testing.T) {
	// key="" means auth is not configured → allow all.
	rec := call(t, APIKey("apikey", "x-api-key", ""), "x-api-key", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		key      string
		wantCode int
		wantBody string
	}{
		{"correct key", "x-api-key", "supersecret", http.StatusOK, "ok"},
		{"header name is case-insensitive", "X-Api-Key", "supersecret", http.StatusOK, "ok"},
		{"wrong key", "x-api-key", "wrong", http.StatusUnauthorized, "invalid api key"},
		{"missing header", "x-api-key", "", http.StatusUnauthorized, "missing api key"},
		{"key in other header", "authorization", "supersecret", http.StatusUnauthorized, "missing api key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, APIKey("apikey", "x-api-key", "supersecret"), tc.header, tc.key)
			if rec.Code != tc.wantCode {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tc.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tc.wantBody)
			}
		})
	}
}
