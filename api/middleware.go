package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs every request with zap once the handler returns.
func RequestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []interface{}{
				"status", ww.Status(),
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"bytes", ww.BytesWritten(),
				"latency_ms", time.Since(start).Milliseconds(),
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				fields = append(fields, "request_id", id)
			}

			switch status := ww.Status(); {
			case status >= 500:
				log.Errorw("HTTP_REQUEST_ERROR", fields...)
			case status >= 400:
				log.Warnw("HTTP_REQUEST_WARNING", fields...)
			default:
				log.Infow("HTTP_REQUEST_INFO", fields...)
			}
		})
	}
}
