package enums

import "slices"

// TransactionStatus tracks the lifecycle of a register transaction.
type TransactionStatus string

const (
	TransactionStatusInProgress TransactionStatus = "in_progress"
	TransactionStatusOnHold     TransactionStatus = "on_hold"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusVoided     TransactionStatus = "voided"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusInProgress,
	TransactionStatusOnHold,
	TransactionStatusCompleted,
	TransactionStatusVoided,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	return slices.Contains(validTransactionStatuses, s)
}

// IsFinal reports whether the transaction can no longer be mutated.
func (s TransactionStatus) IsFinal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusVoided
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	return parseEnum(validTransactionStatuses, "transaction status", value)
}
