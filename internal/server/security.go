// security.go - Security response headers.
//
// Every response is marked non-framable, non-sniffable and non-cacheable,
// with a content security policy that allows nothing to load.
package server

import "net/http"

// securityHeadersMiddleware sets the security headers before the wrapped
// handler runs, so error responses carry them too.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		// JSON API and attachments only; nothing here should render.
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		h.Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
