package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/deployservice/deploy-service/metrics"
	"github.com/deployservice/deploy-service/services"
	"github.com/deployservice/deploy-service/utils"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HandlerFunc is an HTTP handler that reports failure by returning an error
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// FailureTranslator converts every failure raised below it into an HTTP
// error response. Domain errors keep their status and message; anything
// else becomes a generic 500 and the detail only goes to the log.
type FailureTranslator struct {
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewFailureTranslator creates a new FailureTranslator. m may be nil.
func NewFailureTranslator(m *metrics.Metrics, logger *zap.Logger) *FailureTranslator {
	return &FailureTranslator{
		metrics: m,
		logger:  logger,
	}
}

// Middleware wraps the rest of the pipeline and turns any panic below it
// into an error response.
func (t *FailureTranslator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			if rec := recover(); rec != nil {
				t.metrics.RecordPanic()
				t.logger.Error("panic recovered",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
				t.translate(ww, r, fmt.Errorf("panic: %v", rec))
			}
		}()

		next.ServeHTTP(ww, r)
	})
}

// Handle adapts an error-returning handler. A returned error is translated
// before the handler chain unwinds, so outer stages see the final status.
func (t *FailureTranslator) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		if err := fn(ww, r); err != nil {
			t.translate(ww, r, err)
		}
	}
}

func (t *FailureTranslator) translate(w chimw.WrapResponseWriter, r *http.Request, err error) {
	requestID := GetRequestIDFromContext(r.Context())

	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Error("failed to translate failure",
				zap.String("request_id", requestID),
				zap.Any("panic", rec))
		}
	}()

	if w.Status() != 0 {
		t.logger.Error("failure after response was committed",
			zap.String("request_id", requestID),
			zap.Int("status", w.Status()),
			zap.Error(err))
		return
	}

	errType := services.GetErrorType(err)
	var writeErr error
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) && domainErr.HTTPStatus() != http.StatusInternalServerError {
		status := domainErr.HTTPStatus()
		t.logger.Info("request failed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.String("error_type", string(errType)),
			zap.Error(err))
		t.metrics.RecordFailure(status, "domain")
		writeErr = utils.WriteError(w, status, domainErr.Message, domainErr.Details)
	} else {
		t.logger.Error("unexpected failure",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("error_type", string(errType)),
			zap.Error(err))
		t.metrics.RecordFailure(http.StatusInternalServerError, "unexpected")
		writeErr = utils.WriteInternalServerError(w)
	}

	if writeErr != nil {
		t.logger.Debug("failed to write error response",
			zap.String("request_id", requestID),
			zap.Error(writeErr))
	}
}
