package middleware

import (
	"crypto/subtle"
	"net/http"
)

// TokenHeader is the shared-secret header the transport authenticates on.
const TokenHeader = "X-Token"

// RequireToken rejects requests whose X-Token header does not match the
// configured shared secret. The comparison is constant-time.
func RequireToken(secret string, reject func(w http.ResponseWriter)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				reject(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
