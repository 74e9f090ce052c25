package app

import (
	"context"
	"fmt"
	"time"

	"github.com/deployservice/deploy-service/config"
	"github.com/deployservice/deploy-service/metrics"
	"github.com/deployservice/deploy-service/middleware"
	"github.com/deployservice/deploy-service/repositories"
	"github.com/deployservice/deploy-service/repositories/memory"
	"github.com/deployservice/deploy-service/repositories/postgres"
	"github.com/deployservice/deploy-service/services/audit"
	"github.com/deployservice/deploy-service/services/settings"
	"github.com/deployservice/deploy-service/tokens"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Settings
	Settings       repositories.DeploymentSettingsDataStore
	SettingsLoader *settings.Loader

	// Auth
	TokenValidator *tokens.Validator
	RejectionSink  middleware.RejectionSink
	AuthMiddleware *middleware.AuthMiddleware

	// Failure translation
	FailureTranslator *middleware.FailureTranslator

	rejectionService *audit.RejectionService
}

// NewDependencies creates and wires up all application dependencies.
// The settings file is not read here; call LoadSettings before serving.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.NewMetrics()
	}

	if cfg.UsesDatabase() {
		if err := deps.initDatabase(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	deps.initSettings(cfg)

	if err := deps.initAuth(cfg); err != nil {
		deps.closeDB()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.FailureTranslator = middleware.NewFailureTranslator(deps.Metrics, logger)

	logger.Info("all dependencies initialized successfully",
		zap.String("settings_store", cfg.Settings.Store),
		zap.String("audit_sink", cfg.Audit.Sink),
		zap.Bool("metrics", cfg.Observability.MetricsEnabled))
	return deps, nil
}

// initDatabase opens the PostgreSQL connection and creates the schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(ctx, cfg.Database, d.Logger)
	if err != nil {
		return err
	}

	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.DB = db
	d.Logger.Info("database schema ready")
	return nil
}

// initSettings selects the settings store and builds its loader
func (d *Dependencies) initSettings(cfg *config.Config) {
	switch cfg.Settings.Store {
	case config.StorePostgres:
		d.Settings = postgres.NewSettingsStore(d.DB, d.Logger)
	default:
		d.Settings = memory.NewSettingsStore(d.Logger)
	}
	d.SettingsLoader = settings.NewLoader(d.Settings, d.Metrics, d.Logger)
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	validator, err := tokens.NewValidator(
		tokens.NewSigningSecret(cfg.JWT.SignatureKey),
		tokens.ValidationPolicy{
			ExpectedIssuer:   cfg.JWT.Issuer,
			ExpectedAudience: cfg.JWT.Audience,
			ClockSkew:        cfg.JWT.ClockSkew,
		},
	)
	if err != nil {
		return err
	}
	d.TokenValidator = validator

	policy := validator.Policy()
	d.Logger.Info("token validation policy",
		zap.String("issuer", policy.ExpectedIssuer),
		zap.String("audience", policy.ExpectedAudience),
		zap.Duration("clock_skew", policy.ClockSkew))

	switch cfg.Audit.Sink {
	case config.AuditSinkPostgres:
		service := audit.NewRejectionService(
			postgres.NewRejectionRepository(d.DB, d.Logger),
			d.Metrics,
			d.Logger,
			audit.Config{
				BufferSize:  cfg.Audit.BufferSize,
				WorkerCount: cfg.Audit.WorkerCount,
			},
		)
		if err := service.Start(); err != nil {
			return fmt.Errorf("failed to start rejection audit: %w", err)
		}
		d.rejectionService = service
		d.RejectionSink = service
	default:
		d.RejectionSink = audit.NewLogSink(d.Logger)
	}

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.TokenValidator, d.RejectionSink, d.Metrics, d.Logger)
	return nil
}

// AuditService returns the rejection audit workers, or nil when rejections
// are only logged
func (d *Dependencies) AuditService() *audit.RejectionService {
	return d.rejectionService
}

// LoadSettings reads the settings file and initializes the store.
// Any error must abort startup.
func (d *Dependencies) LoadSettings(ctx context.Context) error {
	return d.SettingsLoader.Load(ctx, d.Config.Settings.Path)
}

func (d *Dependencies) closeDB() {
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain pending rejection records before the database goes away
	if d.rejectionService != nil {
		timeout := d.Config.Server.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		stats := d.rejectionService.GetStats()
		d.Logger.Info("stopping rejection audit",
			zap.Int("pending_events", stats.PendingEvents),
			zap.Int("workers", stats.WorkerCount),
			zap.Duration("timeout", timeout))
		if err := d.rejectionService.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop rejection audit: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
