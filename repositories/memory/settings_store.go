// Package memory provides an in-process DeploymentSettingsDataStore.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/deployservice/deploy-service/models"
	"github.com/deployservice/deploy-service/repositories"
	"github.com/deployservice/deploy-service/services"
	"go.uber.org/zap"
)

// SettingsStore keeps the settings document in memory. Returned values
// share nested slices and maps with the store and must not be modified.
type SettingsStore struct {
	mu       sync.RWMutex
	settings *models.GlobalDeploymentSettings
	logger   *zap.Logger
}

var _ repositories.DeploymentSettingsDataStore = (*SettingsStore)(nil)

// NewSettingsStore creates an empty store
func NewSettingsStore(logger *zap.Logger) *SettingsStore {
	return &SettingsStore{logger: logger}
}

// InitializeData stores settings. It can succeed only once.
func (s *SettingsStore) InitializeData(ctx context.Context, settings *models.GlobalDeploymentSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings document is nil", services.ErrInvalidSettings)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings != nil {
		return services.ErrSettingsAlreadyInitialized
	}

	snapshot := *settings
	snapshot.Projects = slices.Clone(settings.Projects)
	s.settings = &snapshot

	s.logger.Info("deployment settings initialized",
		zap.Int("projects", len(snapshot.Projects)))
	return nil
}

// Initialized reports whether InitializeData has succeeded
func (s *SettingsStore) Initialized(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings != nil, nil
}

// Projects returns all configured projects
func (s *SettingsStore) Projects(ctx context.Context) ([]models.ProjectSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, services.ErrSettingsNotInitialized
	}
	return slices.Clone(s.settings.Projects), nil
}

// Project returns one project by name
func (s *SettingsStore) Project(ctx context.Context, name string) (*models.ProjectSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, services.ErrSettingsNotInitialized
	}
	project, ok := s.settings.FindProject(name)
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeNotFound,
			fmt.Sprintf("project %q not found", name), nil)
	}
	found := *project
	return &found, nil
}
