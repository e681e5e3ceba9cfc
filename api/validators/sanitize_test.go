package validators

import (
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{in: "  012345678905\r\n", want: "012345678905"},
		{in: "price\x00 check", want: "price check"},
		{in: "café au lait", maxLen: 4, want: "caf"},
		{in: "manager", maxLen: 3, want: "man"},
	}
	for _, tt := range tests {
		if got := SanitizeString(tt.in, tt.maxLen); got != tt.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestQueryInt(t *testing.T) {
	bounds := IntRange{Default: 25, Min: 1, Max: 100}
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 25},
		{query: "?limit=40", want: 40},
		{query: "?limit=0", wantErr: true},
		{query: "?limit=ten", wantErr: true},
	}
	for _, tt := range tests {
		got, err := QueryInt(httptest.NewRequest("GET", "/transactions"+tt.query, nil), "limit", bounds)
		if tt.wantErr {
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("%q: expected validation error, got %v", tt.query, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: got %d err=%v, want %d", tt.query, got, err, tt.want)
		}
	}
}
