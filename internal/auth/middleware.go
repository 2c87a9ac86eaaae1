package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type contextKey string

// UserEmailKey is the context key used to store the resolved user's address.
const UserEmailKey contextKey = "user_email"

// IdentityHeader carries the identity resolved by the fronting reverse proxy.
// Token issuance and validation live entirely in the proxy; this service only
// consumes the result.
const IdentityHeader = "Remote-User"

// RequireIdentity returns middleware that reads the proxy-resolved identity,
// qualifies a bare local-part with the configured mail domain, and stores the
// full address in the request context. Requests without an identity get 401.
func RequireIdentity(mailDomain string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := strings.TrimSpace(r.Header.Get(IdentityHeader))
			if identity == "" {
				log.Debug("auth: no identity header present")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			email := QualifyIdentity(identity, mailDomain)

			ctx := context.WithValue(r.Context(), UserEmailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// QualifyIdentity turns an identity into a full lowercase address. Identities
// without an "@" are treated as local-parts on the configured mail domain.
func QualifyIdentity(identity, mailDomain string) string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return ""
	}

	if !strings.Contains(identity, "@") {
		return identity + "@" + strings.ToLower(mailDomain)
	}

	return identity
}

// GetUserEmailFromContext returns the user email from the context.
func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}
