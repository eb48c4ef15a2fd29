package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/security"
	"github.com/malwarebo/condopay/utils"
)

type principalKey struct{}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   models.Role
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	return utils.WithUserID(ctx, p.UserID)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

type AuthMiddleware struct {
	jwtManager  *security.JWTManager
	rateLimiter *security.TieredRateLimiter
}

func CreateAuthMiddleware(jwtManager *security.JWTManager, rateLimiter *security.TieredRateLimiter) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:  jwtManager,
		rateLimiter: rateLimiter,
	}
}

// Authenticate requires a valid bearer token.
func (am *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			utils.WriteError(w, utils.NewAPIErrorWithDetails(http.StatusUnauthorized, "Unauthorized", "authorization header required"))
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.WriteError(w, utils.NewAPIErrorWithDetails(http.StatusUnauthorized, "Unauthorized", "invalid authorization format"))
			return
		}

		claims, err := am.jwtManager.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				utils.WriteError(w, utils.ErrTokenExpired)
			} else {
				utils.WriteError(w, utils.ErrInvalidToken)
			}
			return
		}

		role := models.Role(claims.Role)
		if claims.UserID == "" || !role.IsValid() {
			utils.WriteError(w, utils.ErrInvalidToken)
			return
		}

		ctx := WithPrincipal(r.Context(), &Principal{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole must run after Authenticate.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				utils.WriteError(w, utils.ErrUnauthorized)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteError(w, utils.ErrForbidden)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

// RateLimit keys authenticated callers by user id and everyone else by
// client address.
func (am *AuthMiddleware) RateLimit(next http.Handler) http.Handler {
	return am.rateLimit(next, "")
}

func (am *AuthMiddleware) WebhookRateLimit(next http.Handler) http.Handler {
	return am.rateLimit(next, security.TierWebhook)
}

func (am *AuthMiddleware) rateLimit(next http.Handler, fixedTier string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if am.rateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key, tier := clientIP(r), security.TierAnonymous
		if p, ok := PrincipalFrom(r.Context()); ok {
			key, tier = p.UserID, string(p.Role)
		}
		if fixedTier != "" {
			tier = fixedTier
		}

		if !am.rateLimiter.Allow(key, tier) {
			utils.WriteError(w, utils.ErrRateLimitExceeded)
			return
		}
		next.ServeHTTP(w, r)
	})
}
