package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deployservice/deploy-service/metrics"
	"github.com/deployservice/deploy-service/models"
	"github.com/deployservice/deploy-service/repositories"
	"go.uber.org/zap"
)

// RejectionService persists authentication rejections asynchronously so
// the request path never waits on storage.
type RejectionService struct {
	repo        repositories.RejectionRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
	eventChan   chan *models.AuthRejection
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

// Config holds configuration for the RejectionService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewRejectionService creates a new RejectionService instance. m may be nil.
func NewRejectionService(repo repositories.RejectionRepository, m *metrics.Metrics, logger *zap.Logger, config Config) *RejectionService {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}

	return &RejectionService{
		repo:        repo,
		metrics:     m,
		logger:      logger,
		eventChan:   make(chan *models.AuthRejection, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (s *RejectionService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting records and waits for queued ones to be written
func (s *RejectionService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	pending := len(s.eventChan)
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// RecordRejection queues a rejection without blocking. When the service
// is not running or the buffer is full the record is dropped with a warning.
func (s *RejectionService) RecordRejection(_ context.Context, rejection *models.AuthRejection) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		s.logger.Warn("audit service not running, dropping rejection",
			zap.String("reason", rejection.Reason),
			zap.String("request_id", rejection.RequestID))
		s.metrics.RecordAuditDropped()
		return
	}

	select {
	case s.eventChan <- rejection:
	default:
		s.logger.Warn("audit event channel full, dropping rejection",
			zap.String("reason", rejection.Reason),
			zap.String("request_id", rejection.RequestID))
		s.metrics.RecordAuditDropped()
	}
}

// worker processes events from the channel
func (s *RejectionService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for rejection := range s.eventChan {
		if err := s.process(rejection); err != nil {
			s.logger.Error("failed to persist auth rejection",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("reason", rejection.Reason),
				zap.String("request_id", rejection.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *RejectionService) process(rejection *models.AuthRejection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.Insert(ctx, rejection); err != nil {
		return fmt.Errorf("failed to insert auth rejection: %w", err)
	}
	return nil
}

// GetStats returns statistics about the audit service
func (s *RejectionService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}
