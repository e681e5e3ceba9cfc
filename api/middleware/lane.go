package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/lanecalc/api/responses"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/logger"
)

type contextKey string

const ctxLaneID contextKey = "lane_id"

var laneIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// LaneIDFromContext returns the lane resolved by Lane.
func LaneIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxLaneID).(string); ok {
		return v
	}
	return ""
}

// WithLaneID injects the lane identifier into the context.
func WithLaneID(ctx context.Context, laneID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxLaneID, laneID)
}

// Lane validates the {laneID} path parameter and tags the request context
// and its logs with it.
func Lane(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			laneID := chi.URLParam(r, "laneID")
			if !laneIDPattern.MatchString(laneID) {
				err := pkgerrors.New(pkgerrors.CodeValidation, "invalid lane id").WithDetails(map[string]any{"laneId": laneID})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithLaneID(r.Context(), laneID)
			if logg != nil {
				ctx = logg.WithLaneID(ctx, laneID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
