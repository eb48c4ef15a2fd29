package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/malwarebo/condopay/cache"
	"github.com/malwarebo/condopay/security"
	"github.com/malwarebo/condopay/utils"
)

const maxWebhookBody = 64 << 10

// WebhookSignatureMiddleware rejects bodies whose X-Webhook-Signature does
// not match the shared secret. When a replay guard is set, a delivery id seen
// inside the guard window is answered with 409 without reaching the handler;
// ids of deliveries that did not succeed are released for retry.
func WebhookSignatureMiddleware(secret string, guard cache.ReplayGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
			if err != nil {
				utils.WriteError(w, utils.ErrWebhookInvalidPayload)
				return
			}
			if len(body) > maxWebhookBody {
				utils.WriteError(w, utils.NewAPIError(http.StatusRequestEntityTooLarge, "Request body too large"))
				return
			}

			if !security.VerifySignature(body, secret, r.Header.Get(security.SignatureHeader)) {
				utils.Warn(r.Context(), "webhook signature rejected", map[string]interface{}{
					"remote_addr": clientIP(r),
				})
				utils.WriteError(w, utils.ErrWebhookInvalidSignature)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			deliveryID := r.Header.Get(security.EventIDHeader)
			if guard == nil || deliveryID == "" {
				next.ServeHTTP(w, r)
				return
			}

			claimed, err := guard.Claim(r.Context(), deliveryID)
			if err != nil {
				// Fail open.
				utils.Warn(r.Context(), "webhook replay guard unavailable", map[string]interface{}{
					"error": err.Error(),
				})
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				utils.WriteError(w, utils.ErrWebhookReplayed)
				return
			}

			rw := wrap(w)
			next.ServeHTTP(rw, r)
			if rw.statusCode >= 300 {
				if err := guard.Release(r.Context(), deliveryID); err != nil {
					utils.Warn(r.Context(), "failed to release webhook delivery id", map[string]interface{}{
						"delivery_id": deliveryID,
						"error":       err.Error(),
					})
				}
			}
		})
	}
}
