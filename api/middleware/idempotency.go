package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/lanecalc/api/responses"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/idempotency"
	"github.com/angelmondragon/lanecalc/pkg/logger"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

// ReplayGuard claims idempotency keys and stores the response of the request
// that owns them.
type ReplayGuard interface {
	Claim(ctx context.Context, scope, key string) (string, bool, error)
	Complete(ctx context.Context, scope, key, response string) error
	Release(ctx context.Context, scope, key string) error
}

var _ ReplayGuard = (*idempotency.Manager)(nil)

// replay is the stored outcome of a guarded request.
type replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

func parseReplay(stored string) (replay, error) {
	var p replay
	err := json.Unmarshal([]byte(stored), &p)
	return p, err
}

func (p replay) encode() (string, error) {
	raw, err := json.Marshal(p)
	return string(raw), err
}

func (p replay) writeTo(w http.ResponseWriter) {
	if p.ContentType != "" {
		w.Header().Set("Content-Type", p.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(p.Status)
	_, _ = w.Write(p.Body)
}

// Idempotent guards one route whose effects outlive the lane session. The
// request must carry an Idempotency-Key. A retry with the same body replays
// the first response; a retry with another body is rejected. A 409 or 5xx
// outcome releases the key.
func Idempotent(guard ReplayGuard, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if guard == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if !validRequestID(key) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "a printable Idempotency-Key header of at most 64 characters is required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := fingerprintOf(body)
			scope := replayScope(r)

			stored, done, err := guard.Claim(ctx, scope, key)
			if errors.Is(err, idempotency.ErrInFlight) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
				return
			}
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if done {
				prior, err := parseReplay(stored)
				switch {
				case err != nil:
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stored response"))
				case prior.Fingerprint != fingerprint:
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
				default:
					prior.writeTo(w)
				}
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status == http.StatusConflict || status >= http.StatusInternalServerError {
				if err := guard.Release(ctx, scope, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}

			outcome, err := replay{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
				Fingerprint: fingerprint,
			}.encode()
			if err == nil {
				err = guard.Complete(ctx, scope, key, outcome)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "store idempotent response", err)
			}
		})
	}
}

// replayScope keys stored responses by lane and route so two lanes never
// share a key space.
func replayScope(r *http.Request) string {
	return "lane:" + LaneIDFromContext(r.Context()) + "|" + r.Method + " " + r.URL.Path
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
