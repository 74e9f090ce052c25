package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/deployservice/deploy-service/models"
	"github.com/deployservice/deploy-service/repositories"
	"github.com/deployservice/deploy-service/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettingsStore implements repositories.DeploymentSettingsDataStore on
// PostgreSQL. Each project is stored as one JSONB document. The tables
// hold the most recent load; a process serves only what it loaded itself.
type SettingsStore struct {
	db     *DB
	txMgr  repositories.TransactionManager
	logger *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

var _ repositories.DeploymentSettingsDataStore = (*SettingsStore)(nil)

// NewSettingsStore creates a new settings store
func NewSettingsStore(db *DB, logger *zap.Logger) *SettingsStore {
	return &SettingsStore{
		db:     db,
		txMgr:  NewTransactionManager(db, logger),
		logger: logger,
	}
}

// InitializeData replaces any earlier load with settings in a single
// transaction. It can succeed only once per store.
func (s *SettingsStore) InitializeData(ctx context.Context, settings *models.GlobalDeploymentSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings document is nil", services.ErrInvalidSettings)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return services.ErrSettingsAlreadyInitialized
	}

	settingsID := uuid.New()
	var replaced int64
	err := s.txMgr.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(ctx, s.db)

		// Projects of earlier loads go with them through ON DELETE CASCADE
		result, err := executor.ExecContext(ctx, `DELETE FROM deployment_settings`)
		if err != nil {
			return fmt.Errorf("failed to clear previous settings: %w", err)
		}
		replaced, _ = result.RowsAffected()

		if _, err := executor.ExecContext(ctx,
			`INSERT INTO deployment_settings (id, project_count) VALUES ($1, $2)`,
			settingsID, len(settings.Projects),
		); err != nil {
			return fmt.Errorf("failed to insert settings load: %w", err)
		}

		for i, project := range settings.Projects {
			document, err := json.Marshal(project)
			if err != nil {
				return fmt.Errorf("failed to encode project %q: %w", project.Name, err)
			}
			if _, err := executor.ExecContext(ctx,
				`INSERT INTO deployment_projects (name, settings_id, position, document) VALUES ($1, $2, $3, $4)`,
				project.Name, settingsID, i, document,
			); err != nil {
				return fmt.Errorf("failed to insert project %q: %w", project.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.loaded = true
	s.logger.Info("deployment settings initialized",
		zap.String("settings_id", settingsID.String()),
		zap.Int("projects", len(settings.Projects)),
		zap.Int64("replaced_loads", replaced))
	return nil
}

// Initialized reports whether this store has completed InitializeData
func (s *SettingsStore) Initialized(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded, nil
}

// Projects returns all projects in document order
func (s *SettingsStore) Projects(ctx context.Context) ([]models.ProjectSettings, error) {
	initialized, err := s.Initialized(ctx)
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, services.ErrSettingsNotInitialized
	}

	rows, err := GetExecutor(ctx, s.db).QueryContext(ctx,
		`SELECT document FROM deployment_projects ORDER BY position`)
	if err != nil {
		return nil, services.WrapInternal("failed to query projects", err)
	}
	defer rows.Close()

	projects := []models.ProjectSettings{}
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, services.WrapInternal("failed to scan project", err)
		}
		var project models.ProjectSettings
		if err := json.Unmarshal(document, &project); err != nil {
			return nil, services.WrapInternal("failed to decode project", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, services.WrapInternal("failed to iterate projects", err)
	}

	return projects, nil
}

// Project returns one project by name
func (s *SettingsStore) Project(ctx context.Context, name string) (*models.ProjectSettings, error) {
	initialized, err := s.Initialized(ctx)
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, services.ErrSettingsNotInitialized
	}

	var document []byte
	err = GetExecutor(ctx, s.db).QueryRowContext(ctx,
		`SELECT document FROM deployment_projects WHERE name = $1`, name).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.NewDomainError(services.ErrorTypeNotFound,
			fmt.Sprintf("project %q not found", name), nil)
	}
	if err != nil {
		return nil, services.WrapInternal("failed to query project", err)
	}

	var project models.ProjectSettings
	if err := json.Unmarshal(document, &project); err != nil {
		return nil, services.WrapInternal("failed to decode project", err)
	}
	return &project, nil
}
