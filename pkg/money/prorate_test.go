package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProrateAssignsRemainder(t *testing.T) {
	weights := []decimal.Decimal{
		MustParse("0.99"), MustParse("0.99"), MustParse("0.99"),
		MustParse("1.29"), MustParse("1.29"),
	}
	shares := Prorate(MustParse("0.55"), weights, 0)

	want := []string{"0.09", "0.10", "0.10", "0.13", "0.13"}
	for i, w := range want {
		if !shares[i].Equal(MustParse(w)) {
			t.Fatalf("share %d = %s, want %s", i, shares[i], w)
		}
	}
	if got := Sum(shares...); !got.Equal(MustParse("0.55")) {
		t.Fatalf("shares sum to %s", got)
	}
}

func TestProrateThirds(t *testing.T) {
	shares := Prorate(MustParse("10.00"), []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1)}, 2)
	if !shares[2].Equal(MustParse("3.34")) || !shares[0].Equal(MustParse("3.33")) {
		t.Fatalf("unexpected shares %v", shares)
	}
}

func TestLargestIndex(t *testing.T) {
	if got := LargestIndex(nil); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
	values := []decimal.Decimal{MustParse("1"), MustParse("5"), MustParse("5")}
	if got := LargestIndex(values); got != 1 {
		t.Fatalf("expected first largest at 1, got %d", got)
	}
}
