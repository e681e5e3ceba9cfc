package register

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Sink receives finalized snapshots and refunds and serves completed
// transactions back for returns. SaveRefund fails with CONFLICT when the
// stored original is not older than the snapshot it is given.
type Sink interface {
	SaveFinalized(ctx context.Context, t txn.Transaction) error
	SaveRefund(ctx context.Context, original txn.Transaction, refund txn.Refund) error
	Get(ctx context.Context, id uuid.UUID) (txn.Transaction, error)
}
