package audit

import (
	"context"
	"time"

	"github.com/deployservice/deploy-service/models"
	"go.uber.org/zap"
)

// LogSink writes authentication rejections to a dedicated audit logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink that writes under the "audit" logger name
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// RecordRejection writes one structured audit line
func (s *LogSink) RecordRejection(_ context.Context, rejection *models.AuthRejection) {
	s.logger.Info("auth rejection",
		zap.String("id", rejection.ID.String()),
		zap.String("reason", rejection.Reason),
		zap.String("request_id", rejection.RequestID),
		zap.String("method", rejection.Method),
		zap.String("path", rejection.Path),
		zap.String("remote_addr", rejection.RemoteAddr),
		zap.String("user_agent", rejection.UserAgent),
		zap.String("timestamp", rejection.Timestamp.Format(time.RFC3339Nano)))
}
