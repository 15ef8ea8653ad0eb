package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger traces every websocket upgrade attempt. It runs before
// auth, so rejected connects leave a log line too; the user identifier is
// not known yet at this point, only the caller's address.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ip string
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				ip = reqMeta.IP
			}

			logger.Info("Upgrade request",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("ip", ip),
			)
			next.ServeHTTP(w, r)
		})
	}
}
