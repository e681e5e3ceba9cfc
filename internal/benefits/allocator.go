// Package benefits allocates SNAP and WIC tenders across eligible lines and
// recomputes the tax left on each line.
package benefits

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/internal/tax"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Line is an active line as seen by the allocator. SubTotal is the cent
// rounded line amount including deposit.
type Line struct {
	ID           uuid.UUID
	SubTotal     decimal.Decimal
	Quantity     decimal.Decimal
	TaxRate      decimal.Decimal
	OriginalTax  decimal.Decimal
	SNAPEligible bool
	WICEligible  bool
	WICCategory  string
	Produce      bool
}

// LineAllocation is the benefit coverage and resulting tax for one line.
type LineAllocation struct {
	LineID        uuid.UUID
	SNAPPaid      decimal.Decimal
	SNAPPercent   decimal.Decimal
	WICPaid       decimal.Decimal
	ExemptPercent decimal.Decimal
	Tax           decimal.Decimal
}

// Result lists allocations in input line order and one remainder per tender.
type Result struct {
	Lines      []LineAllocation
	Remainders []txn.BenefitRemainder
}

// Allocated returns the amount applied from one benefit payment.
func (r Result) Allocated(paymentID uuid.UUID) decimal.Decimal {
	for _, rem := range r.Remainders {
		if rem.PaymentID == paymentID {
			return rem.Allocated
		}
	}
	return decimal.Zero
}

// Line returns the allocation for a line ID.
func (r Result) Line(id uuid.UUID) (LineAllocation, bool) {
	for _, l := range r.Lines {
		if l.LineID == id {
			return l, true
		}
	}
	return LineAllocation{}, false
}

type state struct {
	lines     []Line
	snap      []decimal.Decimal
	wic       []decimal.Decimal
	wicUnits  []int
	remainder []txn.BenefitRemainder
}

func (s *state) uncovered(i int) decimal.Decimal {
	return money.NonNegative(s.lines[i].SubTotal.Sub(s.snap[i]).Sub(s.wic[i]))
}

// Allocate applies WIC category tenders, then WIC cash-value tenders, then
// SNAP food tenders. Other tender kinds are ignored. SNAP goes to taxed lines
// first, higher combined rate first, fully covering one line before the next.
// Unused benefit is reported and never carried forward.
func Allocate(lines []Line, tenders []txn.BenefitTender) Result {
	s := &state{
		lines:    lines,
		snap:     zeros(len(lines)),
		wic:      zeros(len(lines)),
		wicUnits: make([]int, len(lines)),
	}

	for _, kind := range []enums.TenderKind{enums.TenderWICCategory, enums.TenderWICCVB, enums.TenderSNAPFood} {
		for _, t := range tenders {
			if t.Kind != kind {
				continue
			}
			switch kind {
			case enums.TenderWICCategory:
				s.applyWICCategory(t)
			case enums.TenderWICCVB:
				s.applyPool(t, s.cvbOrder(), s.wic)
			case enums.TenderSNAPFood:
				s.applyPool(t, s.snapOrder(), s.snap)
			}
		}
	}

	res := Result{Lines: make([]LineAllocation, len(lines)), Remainders: s.remainder}
	for i, l := range lines {
		alloc := LineAllocation{
			LineID:        l.ID,
			SNAPPaid:      s.snap[i],
			SNAPPercent:   decimal.Zero,
			WICPaid:       s.wic[i],
			ExemptPercent: decimal.Zero,
			Tax:           l.OriginalTax,
		}
		if l.SubTotal.IsPositive() {
			alloc.SNAPPercent = money.RoundPercent(s.snap[i].Div(l.SubTotal).Mul(money.Hundred))
			covered := money.Min(s.snap[i].Add(s.wic[i]), l.SubTotal)
			alloc.ExemptPercent = money.RoundPercent(covered.Div(l.SubTotal).Mul(money.Hundred))
			alloc.Tax = tax.Exempt(l.OriginalTax, alloc.ExemptPercent)
		}
		res.Lines[i] = alloc
	}
	return res
}

// applyWICCategory covers whole units of matching lines, limited by the unit
// allowance and the approved dollar amount.
func (s *state) applyWICCategory(t txn.BenefitTender) {
	pool := money.NonNegative(t.Available)
	units := t.WICUnits
	allocated := decimal.Zero
	for i, l := range s.lines {
		if units <= 0 || !pool.IsPositive() {
			break
		}
		if !l.WICEligible || l.WICCategory == "" || l.WICCategory != t.WICCategory || !l.Quantity.IsPositive() {
			continue
		}
		open := int(l.Quantity.IntPart()) - s.wicUnits[i]
		if open <= 0 {
			continue
		}
		n := min(open, units)
		unitPrice := l.SubTotal.Div(l.Quantity)
		cover := money.Min(money.Round(unitPrice.Mul(decimal.NewFromInt(int64(n)))), money.Min(s.uncovered(i), pool))
		if !cover.IsPositive() {
			continue
		}
		s.wic[i] = s.wic[i].Add(cover)
		s.wicUnits[i] += n
		units -= n
		pool = pool.Sub(cover)
		allocated = allocated.Add(cover)
	}
	s.remainder = append(s.remainder, txn.BenefitRemainder{
		PaymentID:   t.PaymentID,
		Kind:        t.Kind,
		WICCategory: t.WICCategory,
		Available:   t.Available,
		Allocated:   allocated,
		Unallocated: money.NonNegative(t.Available.Sub(allocated)),
		UnitsUnused: units,
	})
}

// applyPool spends a dollar benefit across lines in order, accumulating into
// paid.
func (s *state) applyPool(t txn.BenefitTender, order []int, paid []decimal.Decimal) {
	pool := money.NonNegative(t.Available)
	allocated := decimal.Zero
	for _, i := range order {
		if !pool.IsPositive() {
			break
		}
		cover := money.Min(pool, s.uncovered(i))
		if !cover.IsPositive() {
			continue
		}
		paid[i] = paid[i].Add(cover)
		pool = pool.Sub(cover)
		allocated = allocated.Add(cover)
	}
	s.remainder = append(s.remainder, txn.BenefitRemainder{
		PaymentID:   t.PaymentID,
		Kind:        t.Kind,
		Available:   t.Available,
		Allocated:   allocated,
		Unallocated: money.NonNegative(t.Available.Sub(allocated)),
	})
}

func (s *state) cvbOrder() []int {
	var order []int
	for i, l := range s.lines {
		if l.WICEligible && l.Produce {
			order = append(order, i)
		}
	}
	return order
}

func (s *state) snapOrder() []int {
	var order []int
	for i, l := range s.lines {
		if l.SNAPEligible {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.lines[order[a]].TaxRate.GreaterThan(s.lines[order[b]].TaxRate)
	})
	return order
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}
