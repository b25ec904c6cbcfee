package metrics

import (
	"net/http"
	"time"
)

// HTTPMetricsMiddleware records request metrics labelled by the ServeMux
// pattern that matched the request, e.g. "GET /api/v1/accounts/{address}/summary".
// Wrap the mux itself so the pattern is known once the handler returns.
func HTTPMetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			if m == nil {
				return
			}
			handler := r.Pattern
			if handler == "" {
				handler = "unmatched"
			}
			m.RecordHTTPRequest(handler, r.Method, wrapped.statusCode, time.Since(start).Seconds())
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
