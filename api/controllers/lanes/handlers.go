package lanes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/lanecalc/api/middleware"
	"github.com/angelmondragon/lanecalc/api/responses"
	"github.com/angelmondragon/lanecalc/api/validators"
	"github.com/angelmondragon/lanecalc/internal/register"
	"github.com/angelmondragon/lanecalc/internal/transactions"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/logger"
)

var historyLimit = validators.IntRange{Default: 25, Min: 1, Max: 100}

// Sessions resolves the register session of a lane.
type Sessions interface {
	Session(laneID string) (*register.Session, error)
}

// History lists finalized transactions of a lane.
type History interface {
	ListByLane(ctx context.Context, laneID string, limit int) ([]transactions.Summary, error)
}

func session(w http.ResponseWriter, r *http.Request, sessions Sessions, logg *logger.Logger) (*register.Session, bool) {
	if sessions == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "register unavailable"))
		return nil, false
	}
	s, err := sessions.Session(middleware.LaneIDFromContext(r.Context()))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return s, true
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid id").WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

// Current returns the lane's working transaction.
func Current(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, s.Current())
	}
}

// Scan applies a cart mutation to the working transaction.
func Scan(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		var body ScanRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := s.Scan(r.Context(), body.toEngine())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// Discount sets or clears a manual discount.
func Discount(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		var body DiscountRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := body.toEngine()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := s.Discount(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// AssignCustomer sets the customer group and reprices the transaction.
func AssignCustomer(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		var body CustomerRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := s.AssignCustomer(r.Context(), validators.SanitizeString(body.Group, 64))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// Pay tenders a payment against the working transaction.
func Pay(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		var body PaymentRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := s.Pay(r.Context(), body.toEngine())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

// Hold parks the working transaction.
func Hold(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		out, err := s.Hold(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// Void cancels the working transaction.
func Void(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		var body VoidRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := s.Void(r.Context(), body.toEngine())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// Held lists the lane's parked transactions, oldest first.
func Held(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		out, err := s.Held(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// Recall resumes a parked transaction.
func Recall(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		id, err := pathUUID(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := s.Recall(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// VoidHeld cancels a parked transaction without recalling it.
func VoidHeld(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		id, err := pathUUID(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body VoidRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := s.VoidHeld(r.Context(), id, body.toEngine())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// Return refunds lines of a completed transaction at this lane.
func Return(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(w, r, sessions, logg)
		if !ok {
			return
		}
		id, err := pathUUID(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body ReturnRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refund, err := s.Return(r.Context(), id, body.toEngine())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refund)
	}
}

// Transactions lists the lane's recently finalized transactions.
func Transactions(history History, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction history unavailable"))
			return
		}
		limit, err := validators.QueryInt(r, "limit", historyLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := history.ListByLane(r.Context(), middleware.LaneIDFromContext(r.Context()), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
