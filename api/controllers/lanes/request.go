package lanes

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/api/validators"
	"github.com/angelmondragon/lanecalc/internal/engine"
	"github.com/angelmondragon/lanecalc/internal/returns"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

const maxReasonLength = 200

// ApprovalRequest is the authorization the cashier already holds for an action.
type ApprovalRequest struct {
	State      string `json:"state" validate:"required,oneof=none_required pending approved denied"`
	ApproverID string `json:"approverId" validate:"required_if=State approved"`
}

func (a *ApprovalRequest) toApproval() txn.Approval {
	if a == nil {
		return txn.Approval{State: enums.ApprovalNoneRequired}
	}
	return txn.Approval{
		State:      enums.ApprovalState(a.State),
		ApproverID: validators.SanitizeString(a.ApproverID, 64),
	}
}

// ScanRequest adds a product, changes a line quantity or removes a line.
type ScanRequest struct {
	Kind          string           `json:"kind" validate:"omitempty,oneof=add set_quantity remove"`
	ProductID     string           `json:"productId"`
	Barcode       string           `json:"barcode"`
	LineID        string           `json:"lineId" validate:"required_if=Kind set_quantity,required_if=Kind remove,omitempty,uuid"`
	Quantity      decimal.Decimal  `json:"quantity"`
	PromptedPrice *decimal.Decimal `json:"promptedPrice" validate:"omitempty,gte=0,cents"`
	PriceOverride *ApprovalRequest `json:"priceOverride"`
	AgeVerified   bool             `json:"ageVerified"`
}

func (r ScanRequest) toEngine() engine.ScanRequest {
	kind := enums.ScanKind(r.Kind)
	if kind == "" {
		kind = enums.ScanKindAdd
	}
	out := engine.ScanRequest{
		Kind:          kind,
		ProductID:     validators.SanitizeString(r.ProductID, 64),
		Barcode:       validators.SanitizeString(r.Barcode, 64),
		Quantity:      r.Quantity,
		PromptedPrice: r.PromptedPrice,
		PriceOverride: r.PriceOverride.toApproval(),
		AgeVerified:   r.AgeVerified,
	}
	if r.LineID != "" {
		out.LineID = uuid.MustParse(r.LineID)
	}
	return out
}

// DiscountRequest sets or clears a manual line or invoice discount.
type DiscountRequest struct {
	Scope    string           `json:"scope" validate:"required,oneof=line invoice"`
	LineID   string           `json:"lineId" validate:"required_if=Scope line,omitempty,uuid"`
	Clear    bool             `json:"clear"`
	Kind     string           `json:"kind" validate:"required_if=Clear false,omitempty,oneof=percent amount"`
	Percent  decimal.Decimal  `json:"percent"`
	Amount   decimal.Decimal  `json:"amount"`
	Approval *ApprovalRequest `json:"approval"`
	Reason   string           `json:"reason"`
}

func (r DiscountRequest) toEngine() (engine.DiscountRequest, error) {
	out := engine.DiscountRequest{Clear: r.Clear}
	if r.Scope == "line" {
		out.Scope = engine.LineScope{LineID: uuid.MustParse(r.LineID)}
	} else {
		out.Scope = engine.InvoiceScope{}
	}
	if r.Clear {
		return out, nil
	}
	var value txn.DiscountValue
	switch r.Kind {
	case "percent":
		value = txn.PercentOff{Percent: r.Percent}
	case "amount":
		value = txn.AmountOff{Amount: r.Amount}
	default:
		return engine.DiscountRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown discount kind").WithDetails(map[string]any{"kind": r.Kind})
	}
	out.Discount = txn.Discount{
		Value:    value,
		Approval: r.Approval.toApproval(),
		Reason:   validators.SanitizeString(r.Reason, maxReasonLength),
	}
	return out, nil
}

// CustomerRequest assigns the customer group used for group pricing.
type CustomerRequest struct {
	Group string `json:"group" validate:"max=64"`
}

// PaymentRequest tenders an amount of one kind.
type PaymentRequest struct {
	Kind        string          `json:"kind" validate:"required,oneof=snap_food ebt_cash credit debit cash wic_category wic_cvb other"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,cents"`
	WICCategory string          `json:"wicCategory" validate:"required_if=Kind wic_category"`
	WICUnits    int             `json:"wicUnits" validate:"gte=0"`
}

func (r PaymentRequest) toEngine() engine.PaymentRequest {
	return engine.PaymentRequest{
		Kind:        enums.TenderKind(r.Kind),
		Amount:      r.Amount,
		WICCategory: validators.SanitizeString(r.WICCategory, 64),
		WICUnits:    r.WICUnits,
	}
}

// VoidRequest cancels a transaction.
type VoidRequest struct {
	Approval *ApprovalRequest `json:"approval"`
	Reason   string           `json:"reason"`
}

func (r VoidRequest) toEngine() engine.VoidRequest {
	return engine.VoidRequest{
		Approval: r.Approval.toApproval(),
		Reason:   validators.SanitizeString(r.Reason, maxReasonLength),
	}
}

// ReturnLine asks for quantity units of one original line back.
type ReturnLine struct {
	LineID   string          `json:"lineId" validate:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// ReturnRequest returns lines of a completed transaction.
type ReturnRequest struct {
	Lines  []ReturnLine `json:"lines" validate:"required,min=1,dive"`
	Policy string       `json:"policy" validate:"omitempty,oneof=cash original"`
}

func (r ReturnRequest) toEngine() engine.ReturnRequest {
	lines := make([]returns.Request, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, returns.Request{
			LineID:   uuid.MustParse(line.LineID),
			Quantity: line.Quantity,
		})
	}
	return engine.ReturnRequest{
		Lines:  lines,
		Policy: enums.RefundPolicy(r.Policy),
	}
}
