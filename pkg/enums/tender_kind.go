package enums

import "slices"

// TenderKind identifies how a payment was made.
type TenderKind string

const (
	TenderSNAPFood    TenderKind = "snap_food"
	TenderEBTCash     TenderKind = "ebt_cash"
	TenderCredit      TenderKind = "credit"
	TenderDebit       TenderKind = "debit"
	TenderCash        TenderKind = "cash"
	TenderWICCategory TenderKind = "wic_category"
	TenderWICCVB      TenderKind = "wic_cvb"
	TenderOther       TenderKind = "other"
)

var validTenderKinds = []TenderKind{
	TenderSNAPFood,
	TenderEBTCash,
	TenderCredit,
	TenderDebit,
	TenderCash,
	TenderWICCategory,
	TenderWICCVB,
	TenderOther,
}

// String implements fmt.Stringer.
func (k TenderKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known TenderKind.
func (k TenderKind) IsValid() bool {
	return slices.Contains(validTenderKinds, k)
}

// IsBenefit reports whether the tender is a government benefit allocated per line.
func (k TenderKind) IsBenefit() bool {
	switch k {
	case TenderSNAPFood, TenderWICCategory, TenderWICCVB:
		return true
	}
	return false
}

// IsWIC reports whether the tender is one of the WIC benefit kinds.
func (k TenderKind) IsWIC() bool {
	return k == TenderWICCategory || k == TenderWICCVB
}

// RequiresTerminal reports whether the tender must be authorized by the payment terminal.
func (k TenderKind) RequiresTerminal() bool {
	return k != TenderCash && k != TenderOther
}

// RefundsToOriginal reports whether refunds must route back to this tender kind.
func (k TenderKind) RefundsToOriginal() bool {
	switch k {
	case TenderSNAPFood, TenderEBTCash, TenderWICCategory, TenderWICCVB:
		return true
	}
	return false
}

// Precedence orders tenders for automatic application; lower applies first.
func (k TenderKind) Precedence() int {
	switch k {
	case TenderWICCategory:
		return 0
	case TenderWICCVB:
		return 1
	case TenderSNAPFood:
		return 2
	case TenderEBTCash:
		return 3
	case TenderCredit, TenderDebit:
		return 4
	case TenderCash:
		return 5
	default:
		return 6
	}
}

// ParseTenderKind converts raw input into a TenderKind.
func ParseTenderKind(value string) (TenderKind, error) {
	return parseEnum(validTenderKinds, "tender kind", value)
}
