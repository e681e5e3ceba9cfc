package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lanecalc/internal/engine"
	"github.com/angelmondragon/lanecalc/pkg/enums"
)

// Terminal result statuses on the wire.
const (
	terminalApproved  = "approved"
	terminalDeclined  = "declined"
	terminalError     = "error"
	terminalCancelled = "cancelled"
)

// TerminalClient drives the lane payment terminal.
type TerminalClient struct {
	*client
}

// NewTerminalClient builds the payment terminal client.
func NewTerminalClient(baseURL string, opts ...Option) (*TerminalClient, error) {
	c, err := newClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &TerminalClient{client: c}, nil
}

type authorizationRequest struct {
	TransactionID string           `json:"transactionId"`
	LaneID        string           `json:"laneId"`
	Kind          enums.TenderKind `json:"kind"`
	Amount        decimal.Decimal  `json:"amount"`
	WICCategory   string           `json:"wicCategory,omitempty"`
	WICUnits      int              `json:"wicUnits,omitempty"`
}

type authorizationResponse struct {
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Reason    string          `json:"reason"`
	Message   string          `json:"message"`
}

// Authorize asks the terminal to take req.Amount. A timeout or a failed
// terminal call surfaces as AuthFailed; cancellation of ctx is returned as an
// error so the caller reverts.
func (c *TerminalClient) Authorize(ctx context.Context, req engine.AuthorizationRequest) (engine.AuthorizationResult, error) {
	payload := authorizationRequest{
		TransactionID: req.TransactionID.String(),
		LaneID:        req.LaneID,
		Kind:          req.Kind,
		Amount:        req.Amount,
		WICCategory:   req.WICCategory,
		WICUnits:      req.WICUnits,
	}
	headers := map[string]string{headerLaneID: req.LaneID}

	var resp authorizationResponse
	err := c.postJSON(ctx, "authorizations", headers, payload, &resp)
	if err != nil {
		if timedOut(ctx, err) {
			return engine.AuthFailed{Message: "terminal timed out"}, nil
		}
		var status *statusError
		if errors.As(err, &status) {
			return engine.AuthFailed{Message: status.Error()}, nil
		}
		return nil, err
	}

	switch resp.Status {
	case terminalApproved:
		return engine.AuthApproved{Amount: resp.Amount, Reference: resp.Reference}, nil
	case terminalDeclined:
		return engine.AuthDeclined{Reason: resp.Reason}, nil
	case terminalError:
		return engine.AuthFailed{Message: resp.Message}, nil
	case terminalCancelled:
		return engine.AuthCancelled{}, nil
	default:
		return engine.AuthFailed{Message: fmt.Sprintf("unknown terminal status %q", resp.Status)}, nil
	}
}
