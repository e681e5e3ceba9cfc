package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/lanecalc/api/responses"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/logger"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// TransactionReader loads finalized transaction snapshots.
type TransactionReader interface {
	Get(ctx context.Context, id uuid.UUID) (txn.Transaction, error)
}

// TransactionGet returns a finalized transaction, including its refunds.
func TransactionGet(reader TransactionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction store unavailable"))
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "transactionID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction id"))
			return
		}
		out, err := reader.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
