// Package middleware provides the HTTP middleware for the API server.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/velora-dev/velora/internal/app/services/auth"
	apperrors "github.com/velora-dev/velora/internal/errors"
	"github.com/velora-dev/velora/pkg/logger"
)

type contextKey string

const claimsKey contextKey = "claims"

// DecodeFunc verifies a bearer token and returns its claims.
type DecodeFunc func(token string) (auth.Claims, error)

// TouchFunc refreshes a user's activity timestamp.
type TouchFunc func(ctx context.Context, userID int64) error

// AuthMiddleware authenticates requests and stamps user activity.
type AuthMiddleware struct {
	decode    DecodeFunc
	touch     TouchFunc
	log       *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates an authentication middleware. Requests to
// skipPaths pass through anonymously.
func NewAuthMiddleware(decode DecodeFunc, touch TouchFunc, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	return &AuthMiddleware{
		decode:    decode,
		touch:     touch,
		log:       log,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, apperrors.Unauthenticated("missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, apperrors.Unauthenticated("invalid Authorization header format"))
			return
		}

		claims, err := m.decode(parts[1])
		if err != nil {
			m.log.WithError(err).Warn("token validation failed")
			respondError(w, apperrors.Unauthenticated("invalid or expired token"))
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))

		// Activity is stamped after the response; a failed touch never fails
		// the request.
		if m.touch != nil {
			if err := m.touch(ctx, claims.UserID); err != nil {
				m.log.WithError(err).WithField("user_id", claims.UserID).
					Warn("could not update last active")
			}
		}
	})
}

// ClaimsFromContext returns the authenticated claims, if any.
func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

// RequireRoles allows the request through when the caller holds at least one
// of the named roles.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				respondError(w, apperrors.Unauthenticated("authentication required"))
				return
			}
			for _, required := range roles {
				for _, held := range claims.Roles {
					if held == required {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			respondError(w, apperrors.Forbidden("insufficient role"))
		})
	}
}

func respondError(w http.ResponseWriter, err *apperrors.ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Message,
		"code":  err.Code,
	})
}
