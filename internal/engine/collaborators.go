package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/pkg/enums"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Catalog is the read-only product and promotion source.
type Catalog interface {
	ProductByID(ctx context.Context, id string) (txn.Product, error)
	ProductByBarcode(ctx context.Context, barcode string) (txn.Product, error)
	ActivePromotions(ctx context.Context, at time.Time) ([]txn.Promotion, error)
}

// ApprovalRequest asks a manager to authorize an action.
type ApprovalRequest struct {
	Action        enums.ApprovalAction
	Amount        decimal.Decimal
	TransactionID uuid.UUID
	LaneID        string
	LineID        *uuid.UUID
	Reason        string
}

// ApprovalDecision is Approved with an approver, or denied.
type ApprovalDecision struct {
	Approved   bool
	ApproverID string
	Reason     string
}

// ApprovalService is consulted when an action needs manager authorization.
// Blocking is expected; the context carries cancellation.
type ApprovalService interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error)
}

// ApprovalFunc adapts a function to ApprovalService.
type ApprovalFunc func(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error)

func (fn ApprovalFunc) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error) {
	return fn(ctx, req)
}

// AuthorizationRequest is sent to the payment terminal.
type AuthorizationRequest struct {
	TransactionID uuid.UUID
	LaneID        string
	Kind          enums.TenderKind
	Amount        decimal.Decimal
	WICCategory   string
	WICUnits      int
}

// AuthorizationResult is one of AuthApproved, AuthDeclined, AuthFailed or
// AuthCancelled.
type AuthorizationResult interface {
	isAuthorizationResult()
}

// AuthApproved may carry less than the requested amount on partial approval.
type AuthApproved struct {
	Amount    decimal.Decimal
	Reference string
}

// AuthDeclined is a business decline.
type AuthDeclined struct {
	Reason string
}

// AuthFailed is a terminal or network failure. Timeouts surface here.
type AuthFailed struct {
	Message string
}

// AuthCancelled means the customer or cashier aborted on the device.
type AuthCancelled struct{}

func (AuthApproved) isAuthorizationResult()  {}
func (AuthDeclined) isAuthorizationResult()  {}
func (AuthFailed) isAuthorizationResult()    {}
func (AuthCancelled) isAuthorizationResult() {}

// Terminal authorizes card and benefit tenders.
type Terminal interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (AuthorizationResult, error)
}

// TerminalFunc adapts a function to Terminal.
type TerminalFunc func(ctx context.Context, req AuthorizationRequest) (AuthorizationResult, error)

func (fn TerminalFunc) Authorize(ctx context.Context, req AuthorizationRequest) (AuthorizationResult, error) {
	return fn(ctx, req)
}
