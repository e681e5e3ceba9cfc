package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Subject is implemented by every sync payload. SubjectID is the aggregate
// the payload describes and must match the outbox row.
type Subject interface {
	SubjectID() uuid.UUID
}

// TransactionFinalizedEvent carries the final snapshot of a completed or
// voided transaction to the store systems.
type TransactionFinalizedEvent struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	LaneID        string                  `json:"lane_id"`
	Status        enums.TransactionStatus `json:"status"`
	GrandTotal    decimal.Decimal         `json:"grand_total"`
	Snapshot      txn.Transaction         `json:"snapshot"`
}

// RefundProcessedEvent is emitted when a return is recorded against a
// completed transaction.
type RefundProcessedEvent struct {
	TransactionID uuid.UUID  `json:"transaction_id"`
	LaneID        string     `json:"lane_id"`
	Refund        txn.Refund `json:"refund"`
}

func (e *TransactionFinalizedEvent) SubjectID() uuid.UUID { return e.TransactionID }

func (e *RefundProcessedEvent) SubjectID() uuid.UUID { return e.Refund.ID }
