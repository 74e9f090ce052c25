package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/deployservice/deploy-service/metrics"
	"github.com/deployservice/deploy-service/models"
	"github.com/deployservice/deploy-service/tokens"
	"github.com/deployservice/deploy-service/utils"
	"go.uber.org/zap"
)

// bearerPrefix is matched case-sensitively with exactly one space
const bearerPrefix = "Bearer "

// TokenValidator defines the interface for validating bearer tokens
type TokenValidator interface {
	// Validate checks a raw token and returns exactly one outcome
	Validate(rawToken string) tokens.Outcome
}

// RejectionSink receives one record per rejected request
type RejectionSink interface {
	RecordRejection(ctx context.Context, rejection *models.AuthRejection)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	sink      RejectionSink
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthMiddleware creates a new AuthMiddleware. sink and m may be nil.
func NewAuthMiddleware(validator TokenValidator, sink RejectionSink, m *metrics.Metrics, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		sink:      sink,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// RequireAuth is a middleware that requires a valid bearer token. Rejected
// requests never reach next and always get the same 401 body.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		outcome := m.validator.Validate(extractBearerToken(r))
		if !outcome.Authenticated() {
			m.reject(w, r, outcome)
			return
		}

		principal := outcome.Principal()
		m.metrics.RecordAuthAccepted()
		m.logger.Debug("authentication successful",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("sub", principal.Subject))

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, outcome tokens.Outcome) {
	ctx := r.Context()
	requestID := GetRequestIDFromContext(ctx)

	rejection := models.NewAuthRejection(string(outcome.Reason()), m.now()).
		WithRequest(requestID, r.Method, r.URL.Path, r.RemoteAddr, r.UserAgent())

	m.logger.Warn("authentication rejected",
		zap.String("request_id", requestID),
		zap.String("reason", rejection.Reason),
		zap.String("method", rejection.Method),
		zap.String("path", rejection.Path),
		zap.String("remote_addr", rejection.RemoteAddr),
		zap.Error(outcome.Err()))
	m.metrics.RecordAuthRejected(rejection.Reason)
	if m.sink != nil {
		m.sink.RecordRejection(ctx, rejection)
	}

	if err := utils.WriteUnauthorized(w, ""); err != nil {
		m.logger.Debug("failed to write unauthorized response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// extractBearerToken returns the token after a case-sensitive "Bearer "
// prefix, or "" when the header is absent or uses another scheme.
func extractBearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok {
		return ""
	}
	return token
}
