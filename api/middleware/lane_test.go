package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func laneRouter(seen *string) http.Handler {
	r := chi.NewRouter()
	r.Route("/lanes/{laneID}", func(r chi.Router) {
		r.Use(Lane(nil))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			*seen = LaneIDFromContext(r.Context())
		})
	})
	return r
}

func TestLaneInjectsLaneID(t *testing.T) {
	var seen string
	resp := httptest.NewRecorder()
	laneRouter(&seen).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/lanes/lane-07/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if seen != "lane-07" {
		t.Fatalf("expected lane-07 in context, got %q", seen)
	}
}

func TestLaneRejectsMalformedID(t *testing.T) {
	var seen string
	resp := httptest.NewRecorder()
	laneRouter(&seen).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/lanes/lane%2407/", nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if seen != "" {
		t.Fatalf("handler should not run")
	}
}
