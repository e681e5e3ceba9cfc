package enums

import "slices"

// RefundPolicy decides where non-benefit refunds are sent.
type RefundPolicy string

const (
	RefundPolicyCash           RefundPolicy = "cash"
	RefundPolicyOriginalTender RefundPolicy = "original"
)

var validRefundPolicies = []RefundPolicy{
	RefundPolicyCash,
	RefundPolicyOriginalTender,
}

// String implements fmt.Stringer.
func (p RefundPolicy) String() string {
	return string(p)
}

// IsValid reports whether the value is a known RefundPolicy.
func (p RefundPolicy) IsValid() bool {
	return slices.Contains(validRefundPolicies, p)
}

// ParseRefundPolicy converts raw input into a RefundPolicy.
func ParseRefundPolicy(value string) (RefundPolicy, error) {
	return parseEnum(validRefundPolicies, "refund policy", value)
}
