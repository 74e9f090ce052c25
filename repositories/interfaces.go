package repositories

import (
	"context"

	"github.com/deployservice/deploy-service/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// DeploymentSettingsDataStore holds the deployment settings loaded at
// startup. InitializeData is called once, before any request is served;
// the read methods are safe for concurrent use afterwards.
type DeploymentSettingsDataStore interface {
	// InitializeData replaces the store's empty state with settings.
	// A second call fails with services.ErrSettingsAlreadyInitialized.
	InitializeData(ctx context.Context, settings *models.GlobalDeploymentSettings) error

	// Initialized reports whether InitializeData has succeeded
	Initialized(ctx context.Context) (bool, error)

	// Projects returns all configured projects
	Projects(ctx context.Context) ([]models.ProjectSettings, error)

	// Project returns one project by name
	Project(ctx context.Context, name string) (*models.ProjectSettings, error)
}

// RejectionRepository persists authentication rejections
type RejectionRepository interface {
	// Insert inserts a new rejection record
	Insert(ctx context.Context, rejection *models.AuthRejection) error
}
