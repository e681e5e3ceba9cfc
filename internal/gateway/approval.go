package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/internal/engine"
	"github.com/angelmondragon/lanecalc/pkg/enums"
)

// ReasonApprovalTimeout is reported when no manager answered in time.
const ReasonApprovalTimeout = "approval timed out"

// ApprovalClient asks the store approval service for manager authorization.
type ApprovalClient struct {
	*client
}

// NewApprovalClient builds the approval service client.
func NewApprovalClient(baseURL string, opts ...Option) (*ApprovalClient, error) {
	c, err := newClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &ApprovalClient{client: c}, nil
}

type approvalRequest struct {
	Action        enums.ApprovalAction `json:"action"`
	Amount        decimal.Decimal      `json:"amount"`
	TransactionID string               `json:"transactionId"`
	LaneID        string               `json:"laneId"`
	LineID        string               `json:"lineId,omitempty"`
	Reason        string               `json:"reason,omitempty"`
}

type approvalResponse struct {
	Approved   bool   `json:"approved"`
	ApproverID string `json:"approverId"`
	Reason     string `json:"reason"`
}

// RequestApproval blocks until a manager answers, the request times out (a
// denial) or ctx is cancelled (an error).
func (c *ApprovalClient) RequestApproval(ctx context.Context, req engine.ApprovalRequest) (engine.ApprovalDecision, error) {
	payload := approvalRequest{
		Action:        req.Action,
		Amount:        req.Amount,
		TransactionID: req.TransactionID.String(),
		LaneID:        req.LaneID,
		Reason:        req.Reason,
	}
	if req.LineID != nil {
		payload.LineID = req.LineID.String()
	}

	var resp approvalResponse
	err := c.postJSON(ctx, "approvals", map[string]string{headerLaneID: req.LaneID}, payload, &resp)
	if err != nil {
		if timedOut(ctx, err) {
			return engine.ApprovalDecision{Approved: false, Reason: ReasonApprovalTimeout}, nil
		}
		return engine.ApprovalDecision{}, err
	}
	if resp.Approved && resp.ApproverID == "" {
		return engine.ApprovalDecision{}, errors.New("approval service approved without an approver id")
	}
	return engine.ApprovalDecision{Approved: resp.Approved, ApproverID: resp.ApproverID, Reason: resp.Reason}, nil
}
