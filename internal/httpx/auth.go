package httpx

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authenticator decides whether a request carries admin identity.
type Authenticator interface {
	Admin(r *http.Request) bool
}

// TokenAuth accepts "Authorization: Bearer <token>". An empty token rejects everyone.
type TokenAuth struct {
	Token string
}

func (a TokenAuth) Admin(r *http.Request) bool {
	if a.Token == "" {
		return false
	}
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return false
	}
	got := strings.TrimSpace(h[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.Token)) == 1
}

// AdminOnly rejects requests the Authenticator does not accept.
func AdminOnly(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil || !auth.Admin(r) {
				writeJSON(w, http.StatusUnauthorized, errorResp{Success: false, Message: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
