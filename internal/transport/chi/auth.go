package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths bypass authentication so probes and scrapers need no key.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens.
// If apiKeys is empty, authentication is disabled (pass-through).
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys = append(validKeys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				unauthorized(w, "authorization header must use Bearer scheme")
				return
			}

			if !knownKey(validKeys, []byte(auth[len(bearerPrefix):])) {
				unauthorized(w, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// knownKey compares against every key in constant time per key.
func knownKey(keys [][]byte, token []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, token)
	}
	return found == 1
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="vecdesk"`)
	writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
}
