package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/internal/benefits"
	"github.com/angelmondragon/lanecalc/internal/discounts"
	"github.com/angelmondragon/lanecalc/internal/payments"
	"github.com/angelmondragon/lanecalc/internal/pricing"
	"github.com/angelmondragon/lanecalc/internal/promotions"
	"github.com/angelmondragon/lanecalc/internal/tax"
	"github.com/angelmondragon/lanecalc/internal/totals"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// CalcOptions are the snapshot independent inputs to Calculate.
type CalcOptions struct {
	// At selects prices and promotions. Operations pass the transaction's
	// creation time so recomputation never depends on the wall clock.
	At  time.Time
	Fee decimal.Decimal
}

// pass is one full run of the pipeline.
type pass struct {
	calc      txn.Calculation
	discounts discounts.Result
	promos    promotions.Result
}

// Calculate runs every component over the snapshot and returns the derived
// figures. It is a pure function: identical inputs give identical output.
// A broken invariant is reported as INCONSISTENT_TOTALS.
func Calculate(tx txn.Transaction, promos []txn.Promotion, opts CalcOptions) (txn.Calculation, error) {
	p, err := run(tx, promos, opts)
	if err != nil {
		return txn.Calculation{}, err
	}
	return p.calc, nil
}

func run(tx txn.Transaction, promos []txn.Promotion, opts CalcOptions) (pass, error) {
	var active []txn.LineItem
	for _, l := range tx.Lines {
		if l.Active() {
			active = append(active, l)
		}
	}

	prices := make([]pricing.Resolution, len(active))
	promoLines := make([]promotions.Line, len(active))
	for i, l := range active {
		res, err := pricing.Resolve(l, tx.CustomerGroup, opts.At)
		if err != nil {
			return pass{}, err
		}
		prices[i] = res
		promoLines[i] = promotions.Line{
			ID:        l.ID,
			ProductID: l.ProductID,
			Category:  l.Category,
			Quantity:  l.Quantity,
			Weighed:   l.Weighed,
			UnitPrice: res.PriceUsed,
		}
	}
	promoRes := promotions.Evaluate(promoLines, promos, opts.At)

	discLines := make([]discounts.Line, len(active))
	for i, l := range active {
		extended := prices[i].PriceUsed.Mul(l.Quantity)
		discLines[i] = discounts.Line{
			ID:         l.ID,
			Quantity:   l.Quantity,
			Net:        extended.Sub(promoRes.LineDiscount(l.ID)),
			FloorPrice: l.FloorPrice,
			Discount:   l.Discount,
		}
	}
	discRes := discounts.Resolve(discLines, tx.InvoiceDiscount)

	results := make([]txn.LineResult, len(active))
	benefitLines := make([]benefits.Line, len(active))
	for i, l := range active {
		dr := discRes.Lines[i]
		promo := promoRes.LineDiscount(l.ID)
		deposit := l.DepositRate.Mul(l.Quantity)
		subTotal := money.NonNegative(dr.Net).Add(deposit)
		final := pricing.FinalPrice(
			prices[i].PriceUsed.Sub(promo.Div(l.Quantity)),
			dr.LineDiscount.Div(l.Quantity),
			dr.InvoiceDiscount.Div(l.Quantity),
			l.DepositRate,
		)
		lt := tax.Line(subTotal, final, l.TaxComponents)
		results[i] = txn.LineResult{
			LineID:          l.ID,
			PriceUsed:       prices[i].PriceUsed,
			PriceSource:     string(prices[i].Source),
			ExtendedPrice:   prices[i].PriceUsed.Mul(l.Quantity),
			PromoDiscount:   promo,
			PromotionIDs:    promoRes.PromotionIDs(l.ID),
			LineDiscount:    dr.LineDiscount,
			InvoiceDiscount: dr.InvoiceDiscount,
			DepositTotal:    deposit,
			SubTotal:        subTotal,
			FinalPrice:      final,
			TaxPerUnit:      lt.PerUnit,
			OriginalTax:     lt.Combined,
			TaxTotal:        lt.Combined,
			TaxBreakdown:    lt.Components,
		}
		benefitLines[i] = benefits.Line{
			ID:           l.ID,
			SubTotal:     money.Round(subTotal),
			Quantity:     l.Quantity,
			TaxRate:      lt.Rate,
			OriginalTax:  lt.Combined,
			SNAPEligible: l.SNAPEligible,
			WICEligible:  l.WICEligible,
			WICCategory:  l.WICCategory,
			Produce:      l.Produce,
		}
	}

	var tenders []txn.BenefitTender
	for _, p := range tx.Payments {
		if !p.Kind.IsBenefit() {
			continue
		}
		tenders = append(tenders, txn.BenefitTender{
			PaymentID:   p.ID,
			Kind:        p.Kind,
			Available:   p.Approved,
			Requested:   p.Requested,
			WICCategory: p.WICCategory,
			WICUnits:    p.WICUnits,
		})
	}
	benefitRes := benefits.Allocate(benefitLines, tenders)

	totalLines := make([]totals.Line, len(active))
	for i, l := range active {
		alloc := benefitRes.Lines[i]
		r := &results[i]
		r.SNAPPaidAmount = alloc.SNAPPaid
		r.SNAPPaidPercent = alloc.SNAPPercent
		r.WICPaidAmount = alloc.WICPaid
		r.ExemptPercent = alloc.ExemptPercent
		r.TaxTotal = alloc.Tax
		if !alloc.Tax.Equal(r.OriginalTax) {
			r.TaxBreakdown = tax.Apportion(alloc.Tax, l.TaxComponents)
		}
		totalLines[i] = totals.Line{
			Quantity:    l.Quantity,
			RetailPrice: l.RetailPrice,
			DepositRate: l.DepositRate,
			SubTotal:    r.SubTotal,
			Tax:         r.TaxTotal,
			TaxDetail:   r.TaxBreakdown,
		}
		r.SavingsTotal = money.Round(totalLines[i].Savings())
	}
	sums := totals.Aggregate(totalLines, opts.Fee)

	payTenders := make([]payments.Tender, len(tx.Payments))
	for i, p := range tx.Payments {
		approved := p.Approved
		if p.Kind.IsBenefit() {
			approved = benefitRes.Allocated(p.ID)
		}
		payTenders[i] = payments.Tender{PaymentID: p.ID, Kind: p.Kind, Tendered: p.Tendered, Approved: approved}
	}
	payRes := payments.Allocate(sums.GrandTotal, payTenders)
	sums.Paid = payRes.Paid
	sums.Remaining = payRes.Remaining
	sums.ChangeDue = payRes.ChangeDue

	out := pass{
		calc: txn.Calculation{
			Lines:    results,
			Totals:   sums,
			Benefits: benefitRes.Remainders,
			Payments: payRes.Applications,
		},
		discounts: discRes,
		promos:    promoRes,
	}
	if err := verify(active, out); err != nil {
		return pass{}, err
	}
	return out, nil
}

// conservationTolerance absorbs the division used to derive per-unit prices.
var conservationTolerance = decimal.New(1, -9)

func verify(active []txn.LineItem, p pass) error {
	c := p.calc
	exact, viaFinal := decimal.Zero, decimal.Zero
	for i, r := range c.Lines {
		exact = exact.Add(r.SubTotal)
		viaFinal = viaFinal.Add(r.FinalPrice.Mul(active[i].Quantity))

		if r.SNAPPaidAmount.GreaterThan(money.Round(r.SubTotal)) {
			return inconsistent("snap paid exceeds line subtotal", r.LineID.String())
		}
		bound := money.Percent(r.OriginalTax, money.Hundred.Sub(r.SNAPPaidPercent))
		if r.TaxTotal.GreaterThan(bound) || r.TaxTotal.IsNegative() {
			return inconsistent("line tax exceeds exemption bound", r.LineID.String())
		}
		if !money.Sum(taxAmounts(r.TaxBreakdown)...).Equal(r.TaxTotal) && len(r.TaxBreakdown) > 0 {
			return inconsistent("tax breakdown does not sum to line tax", r.LineID.String())
		}
	}
	if exact.Sub(viaFinal).Abs().GreaterThan(conservationTolerance) || !money.Round(exact).Equal(c.Totals.Subtotal) {
		return inconsistent("subtotal does not equal sum of final prices", "")
	}

	perPromo := map[string]decimal.Decimal{}
	for _, a := range p.promos.Allocations {
		perPromo[a.PromotionID] = perPromo[a.PromotionID].Add(a.Discount)
	}
	for id, allocated := range perPromo {
		if !allocated.Equal(p.promos.PromotionDiscount(id)) {
			return inconsistent("promotion allocation does not match set discount", id)
		}
	}

	t := c.Totals
	for name, v := range map[string]decimal.Decimal{
		"remaining": t.Remaining,
		"changeDue": t.ChangeDue,
		"savings":   t.SavingsTotal,
		"tax":       t.TaxTotal,
	} {
		if v.IsNegative() {
			return inconsistent("negative "+name, "")
		}
	}
	if !t.GrandTotal.Equal(t.Subtotal.Add(t.TaxTotal).Add(t.Fee)) {
		return inconsistent("grand total does not match its parts", "")
	}
	return nil
}

func taxAmounts(list []txn.TaxAmount) []decimal.Decimal {
	out := make([]decimal.Decimal, len(list))
	for i, a := range list {
		out[i] = a.Amount
	}
	return out
}

func inconsistent(msg, ref string) error {
	err := pkgerrors.New(pkgerrors.CodeInconsistentTotals, msg)
	if ref != "" {
		err = err.WithDetails(map[string]any{"ref": ref})
	}
	return err
}
