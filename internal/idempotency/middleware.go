package idempotency

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/httpapi"
)

const maxKeyLength = 255

// ResourceHeader lets a handler name the resource it created so the id is
// stored alongside the response.
const ResourceHeader = "X-Resource-ID"

var errKeyTooLong = apperr.Validation("idempotency key too long",
	apperr.FieldViolation{Field: HeaderKey, Rule: "max"})

var errInProgress = apperr.New(apperr.KindConflict,
	"a request with this idempotency key is still in progress")

// Middleware replays stored responses for requests that carry an
// Idempotency-Key. Keys are scoped to the caller and the route. A key is
// reserved before the handler runs so concurrent duplicates get a conflict
// instead of a second execution. Only 2xx responses are recorded; any other
// outcome releases the key so failed attempts can be retried.
func Middleware(store Store, logger *slog.Logger) httpapi.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(HeaderKey))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(raw) > maxKeyLength {
				httpapi.WriteError(w, r, errKeyTooLong)
				return
			}

			ctx := r.Context()
			key := scopedKey(r, raw)

			stored, err := store.Get(ctx, key)
			if err != nil {
				httpapi.WriteError(w, r, err)
				return
			}
			if stored != nil {
				replay(w, r, stored)
				return
			}

			reserved, err := store.Reserve(ctx, key)
			if err != nil {
				httpapi.WriteError(w, r, err)
				return
			}
			if !reserved {
				// Lost the race to another request with the same key.
				stored, err := store.Get(ctx, key)
				if err != nil {
					httpapi.WriteError(w, r, err)
					return
				}
				if stored == nil {
					stored = &StoredResponse{}
				}
				replay(w, r, stored)
				return
			}

			// The reservation outlives a cancelled request context.
			storeCtx := context.WithoutCancel(ctx)
			saved := false
			defer func() {
				if saved {
					return
				}
				if err := store.Release(storeCtx, key); err != nil {
					logger.WarnContext(ctx, "failed to release idempotency key",
						"route", r.Pattern,
						"error", err,
					)
				}
			}()

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status < 200 || rec.status >= 300 {
				return
			}

			resp := StoredResponse{
				StatusCode: rec.status,
				Body:       rec.body.Bytes(),
				ResourceID: w.Header().Get(ResourceHeader),
			}
			if err := store.Save(storeCtx, key, resp); err != nil {
				logger.WarnContext(ctx, "failed to store idempotent response",
					"route", r.Pattern,
					"error", err,
				)
				return
			}
			saved = true
		})
	}
}

// replay writes a stored response, or a conflict while the key is still
// reserved by another request.
func replay(w http.ResponseWriter, r *http.Request, stored *StoredResponse) {
	if stored.InFlight() {
		httpapi.WriteError(w, r, errInProgress)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(stored.StatusCode)
	_, _ = w.Write(stored.Body)
}

func scopedKey(r *http.Request, key string) string {
	id := auth.FromContext(r.Context())
	owner := "anonymous"
	if id.IsAuthenticated() {
		owner = string(id.Kind) + ":" + id.UserID
	}
	return owner + "|" + r.Pattern + "|" + key
}

// recorder tees the response into a buffer while writing it through.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (rec *recorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(p []byte) (int, error) {
	rec.wroteHeader = true
	rec.body.Write(p)
	return rec.ResponseWriter.Write(p)
}
