package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/deployservice/deploy-service/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return Wrap(db, logger), nil
}

// Wrap adopts an existing pool, e.g. one opened by sqlmock in tests
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema creates the settings and rejection tables if they are missing
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- One row per successful settings load
		CREATE TABLE IF NOT EXISTS deployment_settings (
			id UUID PRIMARY KEY,
			project_count INTEGER NOT NULL,
			loaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Projects of the loaded settings, in document order
		CREATE TABLE IF NOT EXISTS deployment_projects (
			name VARCHAR(100) PRIMARY KEY,
			settings_id UUID NOT NULL REFERENCES deployment_settings(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			document JSONB NOT NULL
		);

		-- Authentication rejections (never the token itself)
		CREATE TABLE IF NOT EXISTS auth_rejections (
			id UUID PRIMARY KEY,
			reason VARCHAR(64) NOT NULL,
			request_id VARCHAR(255),
			method VARCHAR(16),
			path VARCHAR(512),
			remote_addr VARCHAR(64),
			user_agent VARCHAR(256),
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_deployment_projects_position ON deployment_projects(position);
		CREATE INDEX IF NOT EXISTS idx_auth_rejections_timestamp ON auth_rejections(timestamp);
		CREATE INDEX IF NOT EXISTS idx_auth_rejections_reason ON auth_rejections(reason);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
