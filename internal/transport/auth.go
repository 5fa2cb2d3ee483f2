package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/STS-Engineer/llc-backend/internal/domain/user"
)

type principalKey struct{}

// SessionVerifier turns a bearer token into a principal.
type SessionVerifier interface {
	VerifySession(token string) (*user.Principal, error)
}

// PrincipalFromContext returns the authenticated principal, if present.
func PrincipalFromContext(ctx context.Context) (*user.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*user.Principal)
	return p, ok
}

// AuthMiddleware enforces bearer session authentication. Review links do not
// pass through here; their capability tokens are checked by the services.
func AuthMiddleware(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			tok := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			p, err := verifier.VerifySession(tok)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid session")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
