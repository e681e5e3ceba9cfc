// Package promotions groups qualifying units into bundle, mix-and-match and
// multi-buy sets and spreads each set discount across its units.
package promotions

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Line is an active line offered to the evaluator. UnitPrice is the resolved
// price before any discount.
type Line struct {
	ID        uuid.UUID
	ProductID string
	Category  string
	Quantity  decimal.Decimal
	Weighed   bool
	UnitPrice decimal.Decimal
}

// Allocation is the discount one promotion gives one line.
type Allocation struct {
	PromotionID string
	LineID      uuid.UUID
	Units       int
	Discount    decimal.Decimal
}

// Set is one complete set formed by a promotion.
type Set struct {
	PromotionID string
	Regular     decimal.Decimal
	Discount    decimal.Decimal
}

// Result lists allocations in promotion order, then line order.
type Result struct {
	Allocations []Allocation
	Sets        []Set
}

// LineDiscount sums every promotion discount allocated to a line.
func (r Result) LineDiscount(lineID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		if a.LineID == lineID {
			total = total.Add(a.Discount)
		}
	}
	return total
}

// PromotionIDs lists the promotions that discounted a line.
func (r Result) PromotionIDs(lineID uuid.UUID) []string {
	var ids []string
	for _, a := range r.Allocations {
		if a.LineID == lineID {
			ids = append(ids, a.PromotionID)
		}
	}
	return ids
}

// PromotionDiscount sums the discount given by one promotion.
func (r Result) PromotionDiscount(promotionID string) decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Sets {
		if s.PromotionID == promotionID {
			total = total.Add(s.Discount)
		}
	}
	return total
}

type unit struct {
	line  int
	price decimal.Decimal
}

type allocationKey struct {
	rank        int
	promotionID string
	line        int
}

// Evaluate applies the active promotions in the order given. A unit placed in
// a set is not offered to later promotions. Only whole units of lines sold by
// the unit take part; weighed lines never do. Within a pool the cheapest units
// are grouped first and units left over after the last complete set keep their
// regular price.
func Evaluate(lines []Line, promos []txn.Promotion, at time.Time) Result {
	available := make([]int, len(lines))
	for i, l := range lines {
		if l.Weighed || !l.Quantity.IsPositive() {
			continue
		}
		available[i] = int(l.Quantity.IntPart())
	}

	var (
		res   Result
		order []allocationKey
		byKey = map[allocationKey]*Allocation{}
	)
	for rank, p := range promos {
		if p.Rule == nil || p.Rule.SetSize() < 1 || !p.ActiveAt(at) {
			continue
		}
		size := p.Rule.SetSize()
		for _, pool := range partition(p, lines, available) {
			units := expand(pool, lines, available)
			sort.SliceStable(units, func(a, b int) bool {
				return units[a].price.LessThan(units[b].price)
			})
			for start := 0; start+size <= len(units); start += size {
				set := units[start : start+size]
				prices := make([]decimal.Decimal, len(set))
				for k, u := range set {
					prices[k] = u.price
				}
				regular := money.Sum(prices...)
				discount := setDiscount(p.Rule, regular)
				if !discount.IsPositive() {
					continue
				}
				// set is sorted ascending, so index 0 is the cheapest unit
				shares := money.Prorate(discount, prices, 0)
				for k, u := range set {
					available[u.line]--
					key := allocationKey{rank: rank, promotionID: p.ID, line: u.line}
					alloc, ok := byKey[key]
					if !ok {
						alloc = &Allocation{PromotionID: p.ID, LineID: lines[u.line].ID, Discount: decimal.Zero}
						byKey[key] = alloc
						order = append(order, key)
					}
					alloc.Units++
					alloc.Discount = alloc.Discount.Add(shares[k])
				}
				res.Sets = append(res.Sets, Set{PromotionID: p.ID, Regular: regular, Discount: discount})
			}
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		if order[a].rank != order[b].rank {
			return order[a].rank < order[b].rank
		}
		return order[a].line < order[b].line
	})
	for _, key := range order {
		res.Allocations = append(res.Allocations, *byKey[key])
	}
	return res
}

// partition returns the pools of line indexes sets are drawn from. Bundle
// pricing forms sets per product; the other rules pool every match.
func partition(p txn.Promotion, lines []Line, available []int) [][]int {
	_, perProduct := p.Rule.(txn.BundlePrice)
	var (
		pools   [][]int
		poolFor = map[string]int{}
	)
	for i, l := range lines {
		if available[i] == 0 || !p.Matches(l.ProductID, l.Category) {
			continue
		}
		key := ""
		if perProduct {
			key = l.ProductID
		}
		idx, ok := poolFor[key]
		if !ok {
			idx = len(pools)
			poolFor[key] = idx
			pools = append(pools, nil)
		}
		pools[idx] = append(pools[idx], i)
	}
	return pools
}

func expand(pool []int, lines []Line, available []int) []unit {
	var units []unit
	for _, idx := range pool {
		for n := 0; n < available[idx]; n++ {
			units = append(units, unit{line: idx, price: lines[idx].UnitPrice})
		}
	}
	return units
}

func setDiscount(rule txn.PromotionRule, regular decimal.Decimal) decimal.Decimal {
	switch r := rule.(type) {
	case txn.BundlePrice:
		return money.Round(money.NonNegative(regular.Sub(r.Price)))
	case txn.MixAndMatch:
		return money.Round(money.NonNegative(regular.Sub(r.Price)))
	case txn.MultiBuyPercent:
		return money.Round(money.Percent(regular, r.Percent))
	default:
		return decimal.Zero
	}
}
