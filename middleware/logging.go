package middleware

import (
	"net/http"
	"time"

	"github.com/deployservice/deploy-service/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one structured line per request and records its
// duration under the matched route pattern. A request that panics is
// logged with status 500 before the panic continues outward. m may be nil.
func RequestLogger(logger *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				rec := recover()
				status := ww.Status()
				switch {
				case rec != nil && status == 0:
					status = http.StatusInternalServerError
				case status == 0:
					status = http.StatusOK
				}
				logRequest(logger, m, r, ww, status, time.Since(start))
				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func logRequest(logger *zap.Logger, m *metrics.Metrics, r *http.Request, ww chimw.WrapResponseWriter, status int, duration time.Duration) {
	route := "unmatched"
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}
	m.RecordHTTPRequest(r.Method, route, status, duration)

	logger.Info("request completed",
		zap.String("request_id", GetRequestIDFromContext(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Int("bytes", ww.BytesWritten()),
		zap.Duration("duration", duration))
}
