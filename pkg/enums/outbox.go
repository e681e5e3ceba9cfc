package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateTransaction OutboxAggregateType = "transaction"
	AggregateRefund      OutboxAggregateType = "refund"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateTransaction,
	AggregateRefund,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseEnum(validAggregateTypes, "aggregate type", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventTransactionCompleted OutboxEventType = "transaction_completed"
	EventTransactionVoided    OutboxEventType = "transaction_voided"
	EventRefundProcessed      OutboxEventType = "refund_processed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTransactionCompleted,
	EventTransactionVoided,
	EventRefundProcessed,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseEnum(validOutboxEventTypes, "event type", value)
}
