// Package api implements the Mosaic REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenParam carries the token for clients that cannot set headers,
// such as a browser EventSource.
const tokenParam = "access_token"

// AuthMiddleware rejects requests without the configured bearer token.
// When enabled is false every request passes.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enabled && subtle.ConstantTimeCompare([]byte(requestToken(r)), want) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		got, _ := strings.CutPrefix(h, "Bearer ")
		if got == h {
			return ""
		}
		return got
	}
	return r.URL.Query().Get(tokenParam)
}
