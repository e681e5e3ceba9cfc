package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lanecalc/pkg/enums"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

func basicGroceryCatalog() []txn.Product {
	return []txn.Product{
		{ID: "bread", Description: "Bread", RetailPrice: d("3.49"), SNAPEligible: true},
		{ID: "soda", Description: "Soda", RetailPrice: d("2.49"), DepositRate: d("0.10"), TaxComponents: taxed("9.5"), SNAPEligible: true},
		{ID: "deli", Description: "Deli tray", RetailPrice: d("6.00"), TaxComponents: taxed("9.5")},
		{ID: "milk", Description: "Milk", RetailPrice: d("4.28"), SNAPEligible: true, WICEligible: true, WICCategory: "milk"},
	}
}

func TestScenarioBasicTaxAndDeposit(t *testing.T) {
	h := newHarness(t, Options{}, basicGroceryCatalog()...)

	tx := h.scan(t, emptyTx(), "bread", "1")
	tx = h.scan(t, tx, "soda", "2")
	tx = h.scan(t, tx, "deli", "1")
	tx = h.scan(t, tx, "milk", "1")

	_, soda := lineResult(t, tx, "soda")
	assert.True(t, soda.FinalPrice.Equal(d("2.59")), "soda final price %s", soda.FinalPrice)
	assert.True(t, soda.TaxPerUnit.Equal(d("0.25")), "soda tax per unit %s", soda.TaxPerUnit)
	assert.True(t, money.Round(soda.SubTotal).Add(soda.TaxTotal).Equal(d("5.67")), "soda line total")

	totals := tx.Totals()
	assert.True(t, totals.Subtotal.Equal(d("18.95")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.TaxTotal.Equal(d("1.06")), "tax %s", totals.TaxTotal)
	assert.True(t, totals.GrandTotal.Equal(d("20.01")), "grand total %s", totals.GrandTotal)
	assert.True(t, totals.DepositTotal.Equal(d("0.20")), "deposit %s", totals.DepositTotal)
	assert.Equal(t, enums.TransactionStatusInProgress, tx.Status)
	assert.Equal(t, 4, tx.Version)
}

func TestScenarioMixAndMatch(t *testing.T) {
	products := []txn.Product{
		{ID: "yogurt-vanilla", Category: "yogurt", RetailPrice: d("0.99")},
		{ID: "yogurt-strawberry", Category: "yogurt", RetailPrice: d("1.29")},
		{ID: "yogurt-blueberry", Category: "yogurt", RetailPrice: d("1.49")},
	}
	h := newHarness(t, Options{}, products...)
	h.catalog.promotions = []txn.Promotion{{
		ID:         "yogurt-5-for-5",
		Rule:       txn.MixAndMatch{Size: 5, Price: d("5.00")},
		Categories: []string{"yogurt"},
	}}

	tx := h.scan(t, emptyTx(), "yogurt-blueberry", "2")
	tx = h.scan(t, tx, "yogurt-vanilla", "3")
	tx = h.scan(t, tx, "yogurt-strawberry", "2")

	_, vanilla := lineResult(t, tx, "yogurt-vanilla")
	_, strawberry := lineResult(t, tx, "yogurt-strawberry")
	_, blueberry := lineResult(t, tx, "yogurt-blueberry")

	assert.True(t, vanilla.PromoDiscount.Equal(d("0.29")), "vanilla %s", vanilla.PromoDiscount)
	assert.True(t, strawberry.PromoDiscount.Equal(d("0.26")), "strawberry %s", strawberry.PromoDiscount)
	assert.True(t, blueberry.PromoDiscount.IsZero(), "blueberry %s", blueberry.PromoDiscount)
	assert.Equal(t, []string{"yogurt-5-for-5"}, vanilla.PromotionIDs)
	// 2.97 + 2.58 + 2.98 - 0.55
	assert.True(t, tx.Totals().Subtotal.Equal(d("7.98")), "subtotal %s", tx.Totals().Subtotal)
	assert.True(t, tx.Totals().SavingsTotal.Equal(d("0.55")), "savings %s", tx.Totals().SavingsTotal)
}

func TestScenarioSNAPSplitPayment(t *testing.T) {
	products := []txn.Product{
		{ID: "chips", RetailPrice: d("5.99"), TaxComponents: taxed("9.5"), SNAPEligible: true},
		{ID: "soda-pack", RetailPrice: d("2.29"), TaxComponents: taxed("9.5"), SNAPEligible: true},
		{ID: "apples", RetailPrice: d("3.50"), SNAPEligible: true},
		{ID: "soap", RetailPrice: d("8.95"), TaxComponents: taxed("9.5")},
	}
	h := newHarness(t, Options{}, products...)

	tx := h.scan(t, emptyTx(), "apples", "1")
	tx = h.scan(t, tx, "chips", "1")
	tx = h.scan(t, tx, "soda-pack", "2")
	tx = h.scan(t, tx, "soap", "1")
	require.True(t, tx.Totals().TaxTotal.Equal(d("1.86")), "tax before SNAP %s", tx.Totals().TaxTotal)

	tx, err := h.svc.ApplyPayment(context.Background(), tx, PaymentRequest{Kind: enums.TenderSNAPFood, Amount: d("14.00")})
	require.NoError(t, err)

	_, apples := lineResult(t, tx, "apples")
	_, chips := lineResult(t, tx, "chips")
	_, sodaPack := lineResult(t, tx, "soda-pack")
	assert.True(t, chips.TaxTotal.IsZero())
	assert.True(t, sodaPack.TaxTotal.IsZero())
	assert.True(t, apples.SNAPPaidAmount.Equal(d("3.43")), "apples SNAP %s", apples.SNAPPaidAmount)
	assert.True(t, apples.SNAPPaidPercent.Equal(d("98.000")), "apples SNAP percent %s", apples.SNAPPaidPercent)
	assert.True(t, tx.Totals().TaxTotal.Equal(d("0.85")), "tax after SNAP %s", tx.Totals().TaxTotal)
	assert.True(t, tx.Totals().Remaining.Equal(d("9.87")), "remaining %s", tx.Totals().Remaining)
	assert.Equal(t, enums.TransactionStatusInProgress, tx.Status)

	tx, err = h.svc.ApplyPayment(context.Background(), tx, PaymentRequest{Kind: enums.TenderCash, Amount: d("20.00")})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, tx.Status)
	assert.True(t, tx.Totals().ChangeDue.Equal(d("10.13")), "change %s", tx.Totals().ChangeDue)
	assert.True(t, tx.Totals().Remaining.IsZero())
	require.NotNil(t, tx.CompletedAt)
}

func TestScenarioMultiBuyRemainder(t *testing.T) {
	h := newHarness(t, Options{}, txn.Product{ID: "cereal", RetailPrice: d("3.99")})
	h.catalog.promotions = []txn.Promotion{{
		ID:         "cereal-3-for-10",
		Rule:       txn.BundlePrice{Size: 3, Price: d("10.00")},
		ProductIDs: []string{"cereal"},
	}}

	tx := h.scan(t, emptyTx(), "cereal", "7")
	_, cereal := lineResult(t, tx, "cereal")
	assert.True(t, cereal.PromoDiscount.Equal(d("3.94")), "discount %s", cereal.PromoDiscount)
	assert.True(t, tx.Totals().Subtotal.Equal(d("23.99")), "subtotal %s", tx.Totals().Subtotal)
}

func TestCalculateIsIdempotent(t *testing.T) {
	h := newHarness(t, Options{}, basicGroceryCatalog()...)
	tx := h.scan(t, emptyTx(), "soda", "3")
	tx = h.scan(t, tx, "deli", "2")
	tx, err := h.svc.ApplyDiscount(context.Background(), tx, DiscountRequest{
		Scope:    InvoiceScope{},
		Discount: txn.Discount{Value: txn.PercentOff{Percent: d("7.5")}},
	})
	require.NoError(t, err)

	promos := h.catalog.promotions
	opts := CalcOptions{At: tx.CreatedAt}
	first, err := Calculate(tx, promos, opts)
	require.NoError(t, err)
	second, err := Calculate(tx, promos, opts)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	stored, err := json.Marshal(tx.Calculation)
	require.NoError(t, err)
	assert.JSONEq(t, string(stored), string(a))
}

func TestConservationAcrossMixedBasket(t *testing.T) {
	products := []txn.Product{
		{ID: "apples", RetailPrice: d("1.99"), Weighed: true, Produce: true, SNAPEligible: true},
		{ID: "wine", RetailPrice: d("12.99"), TaxComponents: []txn.TaxComponent{{TaxID: "state", Rate: d("6.25")}, {TaxID: "city", Rate: d("2.5")}}},
		{ID: "soup", RetailPrice: d("1.33"), Category: "soup", TaxComponents: taxed("7.375")},
		{ID: "water", RetailPrice: d("0.89"), DepositRate: d("0.05"), TaxComponents: taxed("7.375")},
	}
	h := newHarness(t, Options{ServiceFee: d("0.25")}, products...)
	h.catalog.promotions = []txn.Promotion{{ID: "soup-4", Rule: txn.MultiBuyPercent{Size: 4, Percent: d("15")}, Categories: []string{"soup"}}}

	tx := h.scan(t, emptyTx(), "apples", "2.37")
	tx = h.scan(t, tx, "wine", "1")
	tx = h.scan(t, tx, "soup", "9")
	tx = h.scan(t, tx, "water", "11")
	tx, err := h.svc.ApplyDiscount(context.Background(), tx, DiscountRequest{
		Scope:    InvoiceScope{},
		Discount: txn.Discount{Value: txn.AmountOff{Amount: d("3.00")}},
	})
	require.NoError(t, err)

	sum := d("0")
	for _, l := range tx.Lines {
		r, ok := tx.Calculation.Line(l.ID)
		require.True(t, ok)
		sum = sum.Add(r.FinalPrice.Mul(l.Quantity))
		breakdown := d("0")
		for _, c := range r.TaxBreakdown {
			breakdown = breakdown.Add(c.Amount)
		}
		if len(r.TaxBreakdown) > 0 {
			assert.True(t, breakdown.Equal(r.TaxTotal), "breakdown for %s", l.ProductID)
		}
	}
	totals := tx.Totals()
	assert.True(t, money.Round(sum).Equal(totals.Subtotal), "subtotal %s vs %s", totals.Subtotal, sum)
	assert.True(t, totals.GrandTotal.Equal(totals.Subtotal.Add(totals.TaxTotal).Add(d("0.25"))))
	assert.True(t, tx.Calculation.Totals.Fee.Equal(d("0.25")))
}
