package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// RequestLogger logs request start and completion with timing.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			reqLogger := logger.With(
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", reqID,
			)
			reqLogger.Info("request started", "remote_ip", r.RemoteAddr)
			next.ServeHTTP(w, r)
			reqLogger.Info("request completed", "duration_ms", time.Since(start).Milliseconds())
		})
	}
}
