package txn

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
)

// DiscountValue is either PercentOff or AmountOff.
type DiscountValue interface {
	isDiscountValue()
}

// PercentOff takes a percentage (0-99) off the discounted amount.
type PercentOff struct {
	Percent decimal.Decimal
}

// AmountOff takes a fixed dollar amount off.
type AmountOff struct {
	Amount decimal.Decimal
}

func (PercentOff) isDiscountValue() {}
func (AmountOff) isDiscountValue()  {}

// Approval is the three-state authorization carried by discounts and voids.
type Approval struct {
	State      enums.ApprovalState `json:"state"`
	ApproverID string              `json:"approverId,omitempty"`
}

// Approved reports whether a manager has authorized the action.
func (a Approval) Approved() bool {
	return a.State == enums.ApprovalApproved
}

// Discount is a manual discount attached to a line or to the whole transaction.
type Discount struct {
	Value    DiscountValue
	Approval Approval
	Reason   string
}

type discountWire struct {
	Kind     string           `json:"kind"`
	Percent  *decimal.Decimal `json:"percent,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Approval Approval         `json:"approval"`
	Reason   string           `json:"reason,omitempty"`
}

const (
	discountKindPercent = "percent"
	discountKindAmount  = "amount"
)

func (d Discount) MarshalJSON() ([]byte, error) {
	wire := discountWire{Approval: d.Approval, Reason: d.Reason}
	switch v := d.Value.(type) {
	case PercentOff:
		wire.Kind = discountKindPercent
		wire.Percent = &v.Percent
	case AmountOff:
		wire.Kind = discountKindAmount
		wire.Amount = &v.Amount
	default:
		return nil, fmt.Errorf("unsupported discount value %T", d.Value)
	}
	return json.Marshal(wire)
}

func (d *Discount) UnmarshalJSON(data []byte) error {
	var wire discountWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case discountKindPercent:
		if wire.Percent == nil {
			return fmt.Errorf("percent discount missing percent")
		}
		d.Value = PercentOff{Percent: *wire.Percent}
	case discountKindAmount:
		if wire.Amount == nil {
			return fmt.Errorf("amount discount missing amount")
		}
		d.Value = AmountOff{Amount: *wire.Amount}
	default:
		return fmt.Errorf("unknown discount kind %q", wire.Kind)
	}
	d.Approval = wire.Approval
	d.Reason = wire.Reason
	return nil
}
