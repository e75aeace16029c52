package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

type Keys struct {
	Public []string
	Admin  []string
}

func (k Keys) enabled() bool { return len(k.Public) > 0 || len(k.Admin) > 0 }

func readAuth(r *http.Request, allowQuery bool) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return strings.TrimSpace(k)
	}
	// Browsers cannot set headers on EventSource or WebSocket requests.
	if allowQuery {
		return strings.TrimSpace(r.URL.Query().Get("api_key"))
	}
	return ""
}

func hasKey(given string, set []string) bool {
	if given == "" {
		return false
	}
	for _, k := range set {
		if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
			return true
		}
	}
	return false
}

func writeJSONError(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// RequireAny allows requests that present either a public or admin key.
// If no keys are configured, it allows all requests (handy for local dev).
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	return requireAny(keys, false)
}

// RequireAnyStream is RequireAny that also accepts an api_key query
// parameter, for stream endpoints.
func RequireAnyStream(keys Keys) func(http.Handler) http.Handler {
	return requireAny(keys, true)
}

func requireAny(keys Keys, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !keys.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r, allowQuery)
			if hasKey(key, keys.Public) || hasKey(key, keys.Admin) {
				next.ServeHTTP(w, r)
				return
			}
			writeJSONError(w, http.StatusUnauthorized, `{"error":"unauthorized"}`)
		})
	}
}

// RequireAdmin only permits requests that present an admin key.
// Missing keys get 401, non-admin keys 403. If no admin keys are configured,
// it allows all requests (dev).
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	enabled := len(keys.Admin) > 0
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r, false)
			switch {
			case hasKey(key, keys.Admin):
				next.ServeHTTP(w, r)
			case key == "":
				writeJSONError(w, http.StatusUnauthorized, `{"error":"unauthorized"}`)
			default:
				writeJSONError(w, http.StatusForbidden, `{"error":"forbidden"}`)
			}
		})
	}
}
