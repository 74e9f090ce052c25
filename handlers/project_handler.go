package handlers

import (
	"net/http"

	"github.com/deployservice/deploy-service/models"
	"github.com/deployservice/deploy-service/repositories"
	"github.com/deployservice/deploy-service/services"
	"github.com/deployservice/deploy-service/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProjectSummary is the list view of a project
type ProjectSummary struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ServiceCount int    `json:"service_count"`
}

// ProjectHandler serves read-only views of the loaded deployment settings.
// Its methods return errors for the failure translator to convert.
type ProjectHandler struct {
	store  repositories.DeploymentSettingsDataStore
	logger *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(store repositories.DeploymentSettingsDataStore, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		store:  store,
		logger: logger,
	}
}

// ListProjects handles GET /api/v1/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) error {
	projects, err := h.store.Projects(r.Context())
	if err != nil {
		return err
	}

	summaries := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		summaries = append(summaries, ProjectSummary{
			Name:         p.Name,
			Description:  p.Description,
			ServiceCount: len(p.Services),
		})
	}
	return utils.WriteOK(w, summaries)
}

// GetProject handles GET /api/v1/projects/{name}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "name")
	if err := utils.ValidateProjectName(name); err != nil {
		return services.ErrInvalidInput.WithDetail("name", err.Error())
	}

	project, err := h.store.Project(r.Context(), name)
	if err != nil {
		return err
	}
	return utils.WriteOK(w, project)
}

// ListServices handles GET /api/v1/projects/{name}/services
func (h *ProjectHandler) ListServices(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "name")
	if err := utils.ValidateProjectName(name); err != nil {
		return services.ErrInvalidInput.WithDetail("name", err.Error())
	}

	project, err := h.store.Project(r.Context(), name)
	if err != nil {
		return err
	}

	svcs := project.Services
	if svcs == nil {
		svcs = []models.ServiceSettings{}
	}
	return utils.WriteOK(w, svcs)
}
