package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

// BearerAuth rejects requests without the configured bearer token. An empty
// token disables the check.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				respond(w, http.StatusUnauthorized, models.Error("invalid or missing bearer token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
