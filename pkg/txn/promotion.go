package txn

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PromotionRule is one of BundlePrice, MixAndMatch or MultiBuyPercent.
type PromotionRule interface {
	SetSize() int
	isPromotionRule()
}

// BundlePrice prices Size units of the same product at Price ("3 for $10").
type BundlePrice struct {
	Size  int
	Price decimal.Decimal
}

// MixAndMatch prices any Size qualifying units at Price ("pick 5 for $5").
type MixAndMatch struct {
	Size  int
	Price decimal.Decimal
}

// MultiBuyPercent takes Percent off every complete set of Size qualifying units.
type MultiBuyPercent struct {
	Size    int
	Percent decimal.Decimal
}

func (r BundlePrice) SetSize() int     { return r.Size }
func (r MixAndMatch) SetSize() int     { return r.Size }
func (r MultiBuyPercent) SetSize() int { return r.Size }

func (BundlePrice) isPromotionRule()     {}
func (MixAndMatch) isPromotionRule()     {}
func (MultiBuyPercent) isPromotionRule() {}

// Promotion is immutable catalog data. A line qualifies when its product ID or
// category is listed.
type Promotion struct {
	ID         string
	Name       string
	Rule       PromotionRule
	ProductIDs []string
	Categories []string
	StartsAt   time.Time
	EndsAt     time.Time
}

// ActiveAt reports whether the promotion window covers t. Zero bounds are open.
func (p Promotion) ActiveAt(t time.Time) bool {
	if !p.StartsAt.IsZero() && t.Before(p.StartsAt) {
		return false
	}
	if !p.EndsAt.IsZero() && !t.Before(p.EndsAt) {
		return false
	}
	return true
}

// Matches reports whether a product qualifies for the promotion.
func (p Promotion) Matches(productID, category string) bool {
	if productID != "" && slices.Contains(p.ProductIDs, productID) {
		return true
	}
	return category != "" && slices.Contains(p.Categories, category)
}

const (
	PromotionKindBundle   = "bundle"
	PromotionKindMixMatch = "mix_and_match"
	PromotionKindMultiBuy = "multi_buy_percent"
)

// Kind returns the stored discriminator for the rule.
func (p Promotion) Kind() string {
	switch p.Rule.(type) {
	case BundlePrice:
		return PromotionKindBundle
	case MixAndMatch:
		return PromotionKindMixMatch
	case MultiBuyPercent:
		return PromotionKindMultiBuy
	default:
		return ""
	}
}

// NewPromotionRule builds a rule from its stored discriminator.
func NewPromotionRule(kind string, size int, price, percent decimal.Decimal) (PromotionRule, error) {
	if size < 1 {
		return nil, fmt.Errorf("promotion set size must be positive, got %d", size)
	}
	switch kind {
	case PromotionKindBundle:
		return BundlePrice{Size: size, Price: price}, nil
	case PromotionKindMixMatch:
		return MixAndMatch{Size: size, Price: price}, nil
	case PromotionKindMultiBuy:
		return MultiBuyPercent{Size: size, Percent: percent}, nil
	default:
		return nil, fmt.Errorf("unknown promotion kind %q", kind)
	}
}

type promotionWire struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Size       int             `json:"size"`
	Price      decimal.Decimal `json:"price"`
	Percent    decimal.Decimal `json:"percent"`
	ProductIDs []string        `json:"productIds,omitempty"`
	Categories []string        `json:"categories,omitempty"`
	StartsAt   time.Time       `json:"startsAt,omitempty"`
	EndsAt     time.Time       `json:"endsAt,omitempty"`
}

func (p Promotion) MarshalJSON() ([]byte, error) {
	wire := promotionWire{
		ID:         p.ID,
		Name:       p.Name,
		Kind:       p.Kind(),
		ProductIDs: p.ProductIDs,
		Categories: p.Categories,
		StartsAt:   p.StartsAt,
		EndsAt:     p.EndsAt,
	}
	switch r := p.Rule.(type) {
	case BundlePrice:
		wire.Size, wire.Price = r.Size, r.Price
	case MixAndMatch:
		wire.Size, wire.Price = r.Size, r.Price
	case MultiBuyPercent:
		wire.Size, wire.Percent = r.Size, r.Percent
	default:
		return nil, fmt.Errorf("unsupported promotion rule %T", p.Rule)
	}
	return json.Marshal(wire)
}

func (p *Promotion) UnmarshalJSON(data []byte) error {
	var wire promotionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	rule, err := NewPromotionRule(wire.Kind, wire.Size, wire.Price, wire.Percent)
	if err != nil {
		return err
	}
	*p = Promotion{
		ID:         wire.ID,
		Name:       wire.Name,
		Rule:       rule,
		ProductIDs: wire.ProductIDs,
		Categories: wire.Categories,
		StartsAt:   wire.StartsAt,
		EndsAt:     wire.EndsAt,
	}
	return nil
}
