package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/utils"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKey    = 255
)

type recorder struct {
	*responseWriter
	body bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.responseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key on the same path. Requests without the header pass through.
func IdempotencyMiddleware(store *stores.IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKey {
				var errs utils.ValidationErrors
				errs.AddField(IdempotencyKeyHeader, "must be at most 255 characters")
				utils.WriteError(w, errs)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				utils.WriteError(w, utils.ErrInvalidRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			path := r.URL.Path
			result, err := store.GetOrCreate(ctx, key, path, body, ttl)
			switch {
			case errors.Is(err, stores.ErrIdempotencyMismatch):
				utils.WriteError(w, utils.ErrIdempotencyKeyReused)
				return
			case errors.Is(err, stores.ErrIdempotencyInProgress):
				utils.WriteError(w, utils.ErrIdempotencyInProgress)
				return
			case err != nil:
				utils.Error(ctx, "idempotency lookup failed", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
				utils.WriteError(w, err)
				return
			}

			if !result.IsNew {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(result.ResponseCode)
				w.Write(result.ResponseBody)
				return
			}

			rec := &recorder{responseWriter: &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= 500 {
				if err := store.Unlock(ctx, key, path); err != nil {
					utils.Warn(ctx, "failed to unlock idempotency key", map[string]interface{}{
						"key":   key,
						"error": err.Error(),
					})
				}
				return
			}
			if err := store.Complete(ctx, key, path, rec.statusCode, rec.body.Bytes()); err != nil {
				utils.Error(ctx, "failed to store idempotent response", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
			}
		})
	}
}
