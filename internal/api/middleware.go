package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenHeader carries the API token for protected routes.
const TokenHeader = "X-API-Token"

// TokenAuth returns middleware that requires the API token, presented either in
// the X-API-Token header or as Authorization: Bearer <token>.
// Uses crypto/subtle.ConstantTimeCompare to prevent timing attacks.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided, ok := presentedToken(r)
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or missing access token"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func presentedToken(r *http.Request) (string, bool) {
	if v := r.Header.Get(TokenHeader); v != "" {
		return v, true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer "), true
	}
	return "", false
}
