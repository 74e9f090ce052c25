package handlers

import (
	"net/http"

	"github.com/deployservice/deploy-service/middleware"
	"github.com/deployservice/deploy-service/services"
	"github.com/deployservice/deploy-service/utils"
	"go.uber.org/zap"
)

// WhoAmIResponse describes the authenticated caller
type WhoAmIResponse struct {
	Subject string                 `json:"subject"`
	Claims  map[string]interface{} `json:"claims"`
}

// IdentityHandler reports the principal attached by the authentication stage
type IdentityHandler struct {
	logger *zap.Logger
}

// NewIdentityHandler creates a new IdentityHandler
func NewIdentityHandler(logger *zap.Logger) *IdentityHandler {
	return &IdentityHandler{logger: logger}
}

// WhoAmI handles GET /api/v1/whoami
func (h *IdentityHandler) WhoAmI(w http.ResponseWriter, r *http.Request) error {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		return services.ErrUnauthorized
	}

	h.logger.Debug("whoami",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("sub", principal.Subject))

	return utils.WriteOK(w, WhoAmIResponse{
		Subject: principal.Subject,
		Claims:  principal.Claims,
	})
}
