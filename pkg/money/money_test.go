package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundIsHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "0.245", want: "0.25"},
		{in: "0.4921", want: "0.49"},
		{in: "0.24605", want: "0.25"},
		{in: "0.85025", want: "0.85"},
		{in: "1.005", want: "1.01"},
		{in: "4.92765", want: "4.93"},
	}
	for _, tt := range tests {
		got := Round(MustParse(tt.in))
		if !got.Equal(MustParse(tt.want)) {
			t.Fatalf("Round(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRoundDownTruncates(t *testing.T) {
	if got := RoundDown(MustParse("0.0199")); !got.Equal(MustParse("0.01")) {
		t.Fatalf("expected 0.01, got %s", got)
	}
}

func TestRoundPercent(t *testing.T) {
	got := RoundPercent(MustParse("3.43").Div(MustParse("3.50")).Mul(Hundred))
	if !got.Equal(MustParse("98.000")) {
		t.Fatalf("expected 98.000, got %s", got)
	}
}

func TestShareHandlesZeroWhole(t *testing.T) {
	if got := Share(MustParse("1"), MustParse("1"), decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero share, got %s", got)
	}
}

func TestCentsRoundTrip(t *testing.T) {
	if got := ToCents(MustParse("20.005")); got != 2001 {
		t.Fatalf("expected 2001 cents, got %d", got)
	}
	if got := FromCents(2001); !got.Equal(MustParse("20.01")) {
		t.Fatalf("expected 20.01, got %s", got)
	}
}
