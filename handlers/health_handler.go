package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/deployservice/deploy-service/repositories"
	"github.com/deployservice/deploy-service/services/audit"
	"github.com/deployservice/deploy-service/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// DatabaseChecker reports database connectivity
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// AuditStatsProvider reports the state of the rejection audit workers
type AuditStatsProvider interface {
	GetStats() audit.Stats
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     DatabaseChecker
	store  repositories.DeploymentSettingsDataStore
	audit  AuditStatsProvider
	logger *zap.Logger
	now    func() time.Time
}

// NewHealthHandler creates a new HealthHandler. db is nil when no
// component uses PostgreSQL.
func NewHealthHandler(db DatabaseChecker, store repositories.DeploymentSettingsDataStore, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithAudit adds the rejection audit workers to the readiness checks
func (h *HealthHandler) WithAudit(a AuditStatsProvider) *HealthHandler {
	h.audit = a
	return h
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Ready once settings are loaded and the database, when used, answers.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			allHealthy = false
		} else {
			checks["database"] = "healthy"
		}
	}

	if h.audit != nil {
		stats := h.audit.GetStats()
		if stats.Started {
			checks["audit"] = "running"
		} else {
			h.logger.Warn("rejection audit is not running",
				zap.Int("pending_events", stats.PendingEvents))
			checks["audit"] = "stopped"
			allHealthy = false
		}
	}

	initialized, err := h.store.Initialized(ctx)
	switch {
	case err != nil:
		h.logger.Warn("settings store check failed", zap.Error(err))
		checks["settings"] = "unhealthy"
		allHealthy = false
	case !initialized:
		checks["settings"] = "not_loaded"
		allHealthy = false
	default:
		checks["settings"] = "loaded"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
