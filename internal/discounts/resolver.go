// Package discounts stacks manual line and invoice discounts on top of
// promotion pricing.
package discounts

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// MaxPercent is the largest percentage discount accepted.
var MaxPercent = decimal.NewFromInt(99)

// Scope says which discount pushed a line below its floor.
type Scope string

const (
	ScopeLine    Scope = "line"
	ScopeInvoice Scope = "invoice"
)

// Line is an active line after promotion pricing. Net is the extended amount
// after promotions and before deposit.
type Line struct {
	ID         uuid.UUID
	Quantity   decimal.Decimal
	Net        decimal.Decimal
	FloorPrice decimal.Decimal
	Discount   *txn.Discount
}

// LineResult holds the cent-exact discounts taken from one line.
type LineResult struct {
	LineID          uuid.UUID
	LineDiscount    decimal.Decimal
	InvoiceDiscount decimal.Decimal
	Net             decimal.Decimal
}

// Violation marks a line whose discounted unit price is below its floor.
type Violation struct {
	LineID   uuid.UUID
	Scope    Scope
	Approved bool
}

// Result is the discount stack for a snapshot.
type Result struct {
	Lines        []LineResult
	InvoiceTotal decimal.Decimal
	Violations   []Violation
}

// Unapproved returns the violations no manager has authorized.
func (r Result) Unapproved() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if !v.Approved {
			out = append(out, v)
		}
	}
	return out
}

// Line returns the result for a line ID.
func (r Result) Line(id uuid.UUID) (LineResult, bool) {
	for _, l := range r.Lines {
		if l.LineID == id {
			return l, true
		}
	}
	return LineResult{}, false
}

// Validate checks the discount amount bounds.
func Validate(d txn.Discount) error {
	switch v := d.Value.(type) {
	case txn.PercentOff:
		if v.Percent.IsNegative() || v.Percent.GreaterThan(MaxPercent) {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be between 0 and 99").WithDetails(map[string]any{
				"percent": v.Percent.String(),
			})
		}
	case txn.AmountOff:
		if !v.Amount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount amount must be positive").WithDetails(map[string]any{
				"amount": v.Amount.String(),
			})
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "discount value is required")
	}
	return nil
}

// Resolve applies line discounts, then the invoice discount to every line that
// carries no line discount. A percentage invoice discount is taken from each
// eligible line independently; a fixed one is prorated by line net with the
// rounding remainder on the largest line.
func Resolve(lines []Line, invoice *txn.Discount) Result {
	res := Result{Lines: make([]LineResult, len(lines)), InvoiceTotal: decimal.Zero}

	var eligible []int
	for i, l := range lines {
		net := money.NonNegative(l.Net)
		lineDisc := decimal.Zero
		if l.Discount != nil {
			lineDisc = discountOn(net, l.Discount.Value)
		} else if net.IsPositive() {
			eligible = append(eligible, i)
		}
		res.Lines[i] = LineResult{
			LineID:          l.ID,
			LineDiscount:    lineDisc,
			InvoiceDiscount: decimal.Zero,
			Net:             net.Sub(lineDisc),
		}
	}

	if invoice != nil && len(eligible) > 0 {
		switch v := invoice.Value.(type) {
		case txn.PercentOff:
			for _, i := range eligible {
				res.Lines[i].InvoiceDiscount = money.Round(money.Percent(res.Lines[i].Net, v.Percent))
			}
		case txn.AmountOff:
			nets := make([]decimal.Decimal, len(eligible))
			for k, i := range eligible {
				nets[k] = res.Lines[i].Net
			}
			amount := money.Min(money.Round(v.Amount), money.Sum(nets...))
			shares := money.Prorate(amount, nets, money.LargestIndex(nets))
			for k, i := range eligible {
				res.Lines[i].InvoiceDiscount = shares[k]
			}
		}
		for _, i := range eligible {
			res.Lines[i].Net = res.Lines[i].Net.Sub(res.Lines[i].InvoiceDiscount)
			res.InvoiceTotal = res.InvoiceTotal.Add(res.Lines[i].InvoiceDiscount)
		}
	}

	for i, l := range lines {
		r := res.Lines[i]
		if !l.FloorPrice.IsPositive() || (r.LineDiscount.IsZero() && r.InvoiceDiscount.IsZero()) {
			continue
		}
		if !r.Net.LessThan(l.FloorPrice.Mul(l.Quantity)) {
			continue
		}
		v := Violation{LineID: l.ID, Scope: ScopeInvoice}
		if l.Discount != nil {
			v.Scope = ScopeLine
			v.Approved = l.Discount.Approval.Approved()
		} else if invoice != nil {
			v.Approved = invoice.Approval.Approved()
		}
		res.Violations = append(res.Violations, v)
	}
	return res
}

func discountOn(net decimal.Decimal, value txn.DiscountValue) decimal.Decimal {
	switch v := value.(type) {
	case txn.PercentOff:
		return money.Round(money.Percent(net, v.Percent))
	case txn.AmountOff:
		return money.Min(money.Round(v.Amount), net)
	default:
		return decimal.Zero
	}
}
