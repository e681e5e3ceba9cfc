package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/internal/pricing"
	"github.com/angelmondragon/lanecalc/pkg/enums"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/money"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// ReasonAgeVerification is reported in error details when an age restricted
// item is scanned without verification.
const ReasonAgeVerification = "AGE_VERIFICATION_REQUIRED"

// ScanRequest adds a product, changes a line quantity or removes a line.
type ScanRequest struct {
	Kind          enums.ScanKind
	ProductID     string
	Barcode       string
	LineID        uuid.UUID
	Quantity      decimal.Decimal
	PromptedPrice *decimal.Decimal
	PriceOverride txn.Approval
	AgeVerified   bool
}

// ApplyScan applies a cart mutation. A zero-value snapshot starts a new
// transaction on the snapshot's lane.
func (s *service) ApplyScan(ctx context.Context, tx txn.Transaction, req ScanRequest) (txn.Transaction, error) {
	next := tx.Clone()
	if next.ID == uuid.Nil {
		fresh := txn.New(tx.LaneID, s.now())
		fresh.CustomerGroup = tx.CustomerGroup
		next = fresh
	}
	if err := requireStatus(next, enums.TransactionStatusInProgress); err != nil {
		return txn.Transaction{}, err
	}

	switch req.Kind {
	case enums.ScanKindAdd, "":
		line, err := s.newLine(ctx, next, req)
		if err != nil {
			return txn.Transaction{}, err
		}
		next.Lines = append(next.Lines, line)
	case enums.ScanKindSetQuantity:
		idx, err := activeLine(next, req.LineID)
		if err != nil {
			return txn.Transaction{}, err
		}
		if err := s.opts.Limits.ValidateQuantity(req.Quantity, next.Lines[idx].Weighed); err != nil {
			return txn.Transaction{}, err
		}
		next.Lines[idx].Quantity = req.Quantity
	case enums.ScanKindRemove:
		idx, err := activeLine(next, req.LineID)
		if err != nil {
			return txn.Transaction{}, err
		}
		next.Lines[idx].IsRemoved = true
	default:
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown scan kind").WithDetails(map[string]any{
			"kind": req.Kind,
		})
	}

	p, err := s.recalc(ctx, &next)
	if err != nil {
		return txn.Transaction{}, err
	}
	if err := requireBalanceDue(next); err != nil {
		return txn.Transaction{}, err
	}
	// A new or resized line can fall under a standing discount and below its
	// floor.
	approved, err := s.approveFloorViolations(ctx, &next, p)
	if err != nil {
		return txn.Transaction{}, err
	}
	if approved {
		if _, err := s.recalc(ctx, &next); err != nil {
			return txn.Transaction{}, err
		}
	}
	s.commit(&next)
	return next, nil
}

func (s *service) newLine(ctx context.Context, tx txn.Transaction, req ScanRequest) (txn.LineItem, error) {
	product, err := s.lookup(ctx, req)
	if err != nil {
		return txn.LineItem{}, err
	}
	qty := req.Quantity
	if qty.IsZero() && !product.Weighed {
		qty = decimal.NewFromInt(1)
	}
	if err := s.opts.Limits.ValidateQuantity(qty, product.Weighed); err != nil {
		return txn.LineItem{}, err
	}
	if product.AgeRestricted && !req.AgeVerified {
		return txn.LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "age verification required").WithDetails(map[string]any{
			"reason":    ReasonAgeVerification,
			"productId": product.ID,
		})
	}
	if product.OpenPrice && req.PromptedPrice == nil {
		return txn.LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "open price item requires a prompted price").WithDetails(map[string]any{
			"productId": product.ID,
		})
	}

	line := txn.NewLineItem(product, qty)
	if req.PromptedPrice != nil {
		price := *req.PromptedPrice
		line.PromptedPrice = &price
		line.PriceOverride = req.PriceOverride
		belowFloor := pricing.CheckFloor(line, price) != nil
		asked := req.PriceOverride.State == enums.ApprovalPending || req.PriceOverride.State == enums.ApprovalDenied
		if belowFloor && asked {
			id := line.ID
			approval, err := s.approve(ctx, req.PriceOverride, ApprovalRequest{
				Action:        enums.ApprovalActionPriceOverride,
				Amount:        money.Round(line.FloorPrice.Sub(price).Mul(qty)),
				TransactionID: tx.ID,
				LaneID:        tx.LaneID,
				LineID:        &id,
				Reason:        "prompted price below floor",
			})
			if err != nil {
				return txn.LineItem{}, err
			}
			line.PriceOverride = approval
		}
	}
	return line, nil
}

func (s *service) lookup(ctx context.Context, req ScanRequest) (txn.Product, error) {
	var (
		product txn.Product
		err     error
	)
	switch {
	case req.Barcode != "":
		product, err = s.catalog.ProductByBarcode(ctx, req.Barcode)
	case req.ProductID != "":
		product, err = s.catalog.ProductByID(ctx, req.ProductID)
	default:
		return txn.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "barcode or product id required")
	}
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return txn.Product{}, err
		}
		return txn.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog lookup")
	}
	return product, nil
}

func activeLine(tx txn.Transaction, id uuid.UUID) (int, error) {
	idx := tx.LineIndex(id)
	if idx < 0 || tx.Lines[idx].IsRemoved {
		return -1, pkgerrors.New(pkgerrors.CodeNotFound, "line not found").WithDetails(map[string]any{
			"lineId": id,
		})
	}
	return idx, nil
}
