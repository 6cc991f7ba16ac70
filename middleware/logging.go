// Package middleware holds the chi middleware shared by every route.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"structura/logger"
	"structura/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger puts a request-scoped logger on the context and logs each
// request once it completes. It must run after chi's RequestID.
func RequestLogger(base logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := base.With("request_id", chimiddleware.GetReqID(r.Context()))
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logger.ContextWithLogger(r.Context(), log)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			elapsed := time.Since(start)
			metrics.HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			keyvals := []any{"method", r.Method, "path", r.URL.Path, "status", status, "duration", elapsed}
			switch {
			case status >= 500:
				log.Error("Request failed", keyvals...)
			case status >= 400:
				log.Info("Request rejected", keyvals...)
			default:
				log.Debug("Request handled", keyvals...)
			}
		})
	}
}

// routePattern keeps metric cardinality bounded by using the matched
// pattern instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
