package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pinforge/pin-server-go/internal/audit"
	"github.com/pinforge/pin-server-go/internal/util"
)

// Authorizer decides whether a request carries a valid administrative
// credential. Keeping it a predicate lets alternative schemes (mTLS,
// signed JWT) replace the bearer check without touching lifecycle logic.
type Authorizer func(r *http.Request) bool

// BearerToken authorizes requests whose Authorization header carries the
// configured secret. Comparison is constant-time.
func BearerToken(secret string) Authorizer {
	return func(r *http.Request) bool {
		token := extractBearer(r)
		if token == "" || secret == "" {
			return false
		}
		return util.ConstantTimeEqual(token, secret)
	}
}

type AdminAuthMiddleware struct {
	authorize Authorizer
}

func NewAdminAuthMiddleware(authorize Authorizer) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{authorize: authorize}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.authorize(r) {
			log.Warn().Str("path", r.URL.Path).Msg("admin auth: rejected request")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAdminAuthFailure})
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"ok":    false,
				"error": "Unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
