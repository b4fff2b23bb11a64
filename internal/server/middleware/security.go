package middleware

import "net/http"

// SecurityHeaders sets baseline security headers on every response. The API
// serves JSON and raw log text to programmatic clients, so the headers only
// have to stop content sniffing and framing, not lock down a browser app.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}
