package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/traintrack/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func RequestMetrics(manager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			resp := &responseWriter{respWriter, http.StatusOK}

			defer func(begin time.Time) {
				manager.HistogramRequestDuration.With(
					prometheus.Labels{
						"method":      req.Method,
						"status_code": strconv.Itoa(resp.statusCode),
					},
				).Observe(time.Since(begin).Seconds())
			}(time.Now())

			// handler call
			next.ServeHTTP(resp, req)

			manager.CounterRequests.With(
				prometheus.Labels{
					"method": req.Method,
					"status": strconv.Itoa(resp.statusCode),
				},
			).Inc()
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.statusCode = statusCode
}
