package enums

import "slices"

// ApprovalState is the authorization state carried by a discount, override or void request.
type ApprovalState string

const (
	ApprovalNoneRequired ApprovalState = "none_required"
	ApprovalPending      ApprovalState = "pending"
	ApprovalApproved     ApprovalState = "approved"
	ApprovalDenied       ApprovalState = "denied"
)

var validApprovalStates = []ApprovalState{
	ApprovalNoneRequired,
	ApprovalPending,
	ApprovalApproved,
	ApprovalDenied,
}

// String implements fmt.Stringer.
func (a ApprovalState) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ApprovalState.
func (a ApprovalState) IsValid() bool {
	return slices.Contains(validApprovalStates, a)
}

// ParseApprovalState converts raw input into an ApprovalState.
func ParseApprovalState(value string) (ApprovalState, error) {
	return parseEnum(validApprovalStates, "approval state", value)
}

// ApprovalAction names the action a manager is asked to authorize.
type ApprovalAction string

const (
	ApprovalActionPriceOverride   ApprovalAction = "price_override"
	ApprovalActionLineDiscount    ApprovalAction = "line_discount"
	ApprovalActionInvoiceDiscount ApprovalAction = "invoice_discount"
	ApprovalActionVoid            ApprovalAction = "void_transaction"
)

var validApprovalActions = []ApprovalAction{
	ApprovalActionPriceOverride,
	ApprovalActionLineDiscount,
	ApprovalActionInvoiceDiscount,
	ApprovalActionVoid,
}

// String implements fmt.Stringer.
func (a ApprovalAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ApprovalAction.
func (a ApprovalAction) IsValid() bool {
	return slices.Contains(validApprovalActions, a)
}
