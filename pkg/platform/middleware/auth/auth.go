// Package auth provides the administrator authentication middleware.
//
// The registry administration API requires a bearer token whose claims name
// the acting administrator. The actor identity is stored in the request
// context and threaded into every service call as an explicit parameter;
// services never read ambient globals.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "careledger/pkg/domain-errors"
	"careledger/pkg/platform/httputil"
	request "careledger/pkg/platform/middleware/request"
	"careledger/pkg/requestcontext"
)

// AdminClaims is the subset of token claims the middleware needs.
type AdminClaims struct {
	ActorID string
	Role    string
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateAdminToken(tokenString string) (*AdminClaims, error)
}

// RequireAdmin rejects requests without a valid administrator bearer token
// and captures the actor identity for audit attribution.
func RequireAdmin(validator TokenValidator, requiredRole string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "administrator token required"))
				return
			}

			claims, err := validator.ValidateAdminToken(token)
			if err != nil {
				logger.WarnContext(ctx, "admin token rejected",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "administrator token required"))
				return
			}
			if claims.Role != requiredRole {
				logger.WarnContext(ctx, "admin role mismatch",
					"role", claims.Role,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}

			ctx = requestcontext.WithActorID(ctx, claims.ActorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
