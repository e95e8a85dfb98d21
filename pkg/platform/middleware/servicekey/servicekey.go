// Package servicekey authenticates trusted collaborator services (the
// onboarding system) calling internal endpoints. Keys are verified against a
// bcrypt hash held in configuration; the plaintext key is never stored.
package servicekey

import (
	"log/slog"
	"net/http"

	dErrors "careledger/pkg/domain-errors"
	"careledger/pkg/platform/httputil"
	request "careledger/pkg/platform/middleware/request"
	"careledger/pkg/secrets"
)

// Header carries the collaborator service key.
const Header = "X-Service-Key"

// Require rejects requests whose service key does not match the configured hash.
func Require(keyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := r.Header.Get(Header)
			if key == "" || keyHash == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "service key required"))
				return
			}
			if err := secrets.Verify(key, keyHash); err != nil {
				logger.WarnContext(ctx, "service key rejected",
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "service key required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
