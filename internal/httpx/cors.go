package httpx

import (
	"net/http"
	"slices"
)

// SetAllowOrigin echoes r's Origin header back when it is present in
// allowedOrigins (or sets the literal "*" when allowedOrigins contains "*"),
// the origin-matching rule shared by EnableCORS and any endpoint that
// needs to hand-roll its own preflight response.
func SetAllowOrigin(w http.ResponseWriter, r *http.Request, allowedOrigins []string) {
	origin := r.Header.Get("Origin")
	if slices.Contains(allowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		return
	}
	if origin != "" && slices.Contains(allowedOrigins, origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
	}
}

// EnableCORS wraps next with permissive CORS headers, mirroring the
// teacher's shared.EnableCORS middleware used on every public endpoint.
func EnableCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetAllowOrigin(w, r, allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Range, Content-Type, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Range, Content-Length, Accept-Ranges, X-File-Size, X-Range-Support")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware composes a single middleware into the func(http.HandlerFunc)
// http.HandlerFunc shape the teacher's endpoint packages wire with, so
// mux.HandleFunc("/path", withCors(handler)) reads the same way.
func Middleware(mw func(http.Handler) http.Handler) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		wrapped := mw(h)
		return func(w http.ResponseWriter, r *http.Request) {
			wrapped.ServeHTTP(w, r)
		}
	}
}
