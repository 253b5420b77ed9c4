package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/williamsiker/practicas/internal/observability"
)

// Logger returns a structured logging middleware. When metrics is non-nil
// each request is also counted by its route pattern.
func Logger(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() { //nolint:contextcheck // Logging in defer uses request context captured at start
				duration := time.Since(start)
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				route := ""
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					route = rctx.RoutePattern()
				}
				if metrics != nil {
					metrics.RecordHTTPRequest(route, r.Method, status, duration)
				}

				level := slog.LevelInfo
				if status >= 500 {
					level = slog.LevelError
				} else if status >= 400 {
					level = slog.LevelWarn
				}

				slog.Log(r.Context(), level, "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"route", route,
					"status", status,
					"duration_ms", duration.Milliseconds(),
					"bytes", ww.BytesWritten(),
					"request_id", chimw.GetReqID(r.Context()),
					"remote_addr", r.RemoteAddr,
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
