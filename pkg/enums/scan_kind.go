package enums

import "slices"

// ScanKind distinguishes the cart mutations carried by a scan request.
type ScanKind string

const (
	ScanKindAdd         ScanKind = "add"
	ScanKindSetQuantity ScanKind = "set_quantity"
	ScanKindRemove      ScanKind = "remove"
)

var validScanKinds = []ScanKind{
	ScanKindAdd,
	ScanKindSetQuantity,
	ScanKindRemove,
}

// String implements fmt.Stringer.
func (k ScanKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known ScanKind.
func (k ScanKind) IsValid() bool {
	return slices.Contains(validScanKinds, k)
}

// ParseScanKind converts raw input into a ScanKind.
func ParseScanKind(value string) (ScanKind, error) {
	return parseEnum(validScanKinds, "scan kind", value)
}
