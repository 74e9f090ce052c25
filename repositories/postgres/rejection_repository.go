package postgres

import (
	"context"
	"fmt"

	"github.com/deployservice/deploy-service/models"
	"github.com/deployservice/deploy-service/repositories"
	"go.uber.org/zap"
)

// RejectionRepository implements repositories.RejectionRepository
type RejectionRepository struct {
	db     *DB
	logger *zap.Logger
}

var _ repositories.RejectionRepository = (*RejectionRepository)(nil)

// NewRejectionRepository creates a new rejection repository
func NewRejectionRepository(db *DB, logger *zap.Logger) *RejectionRepository {
	return &RejectionRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new rejection record
func (r *RejectionRepository) Insert(ctx context.Context, rejection *models.AuthRejection) error {
	query := `
		INSERT INTO auth_rejections (
			id, reason, request_id, method, path, remote_addr, user_agent, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		rejection.ID,
		rejection.Reason,
		rejection.RequestID,
		rejection.Method,
		rejection.Path,
		rejection.RemoteAddr,
		rejection.UserAgent,
		rejection.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth rejection: %w", err)
	}

	r.logger.Debug("auth rejection inserted",
		zap.String("id", rejection.ID.String()),
		zap.String("reason", rejection.Reason))
	return nil
}
