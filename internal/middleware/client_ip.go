package middleware

import (
	"net/http"

	pkghttp "github.com/johkker/delice/pkg/http"
	pkglogger "github.com/johkker/delice/pkg/logger"
)

// ClientIP stores the request's client address in the context for audit
// records. Must run after chi's RealIP.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := pkglogger.WithClientIP(r.Context(), pkghttp.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
