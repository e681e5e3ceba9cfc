package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/lanecalc/pkg/logger"
)

func TestRequestIDKeepsWellFormedHeader(t *testing.T) {
	var seen string
	h := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lanes/lane-1/transaction", nil)
	req.Header.Set(requestIDHeader, "pos-7f3a")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "pos-7f3a" || rec.Header().Get(requestIDHeader) != "pos-7f3a" {
		t.Fatalf("expected caller id to be kept, ctx=%q header=%q", seen, rec.Header().Get(requestIDHeader))
	}
}

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	for _, bad := range []string{"has space", strings.Repeat("x", maxRequestIDLen+1), "tab\tid"} {
		h := RequestID(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, bad)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		if got == bad || got == "" {
			t.Fatalf("expected a minted id for %q, got %q", bad, got)
		}
	}
}

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil snapshot")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/lanes/lane-1/transaction/scans", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Fatalf("expected internal error code, got %s", rec.Body.String())
	}
}
