package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deployservice/deploy-service/metrics"
	"github.com/deployservice/deploy-service/models"
	"github.com/deployservice/deploy-service/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockRejectionRepository is a mock implementation of RejectionRepository
type MockRejectionRepository struct {
	mock.Mock
	mu       sync.Mutex
	inserted []*models.AuthRejection
}

var _ repositories.RejectionRepository = (*MockRejectionRepository)(nil)

func (m *MockRejectionRepository) Insert(ctx context.Context, rejection *models.AuthRejection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	args := m.Called(ctx, rejection)
	m.inserted = append(m.inserted, rejection)
	return args.Error(0)
}

func (m *MockRejectionRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inserted)
}

func newRejection(reason string) *models.AuthRejection {
	return models.NewAuthRejection(reason, time.Now()).
		WithRequest("req-1", "GET", "/api/v1/projects", "10.0.0.1", "curl/8")
}

func TestRejectionService_StartStop(t *testing.T) {
	logger := zap.NewNop()

	t.Run("start twice fails", func(t *testing.T) {
		service := NewRejectionService(new(MockRejectionRepository), nil, logger, DefaultConfig())

		require.NoError(t, service.Start())
		assert.Error(t, service.Start())
		require.NoError(t, service.Stop(time.Second))
	})

	t.Run("stop before start fails", func(t *testing.T) {
		service := NewRejectionService(new(MockRejectionRepository), nil, logger, DefaultConfig())
		assert.Error(t, service.Stop(time.Second))
	})

	t.Run("stop twice fails", func(t *testing.T) {
		service := NewRejectionService(new(MockRejectionRepository), nil, logger, DefaultConfig())
		require.NoError(t, service.Start())
		require.NoError(t, service.Stop(time.Second))
		assert.Error(t, service.Stop(time.Second))
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		service := NewRejectionService(new(MockRejectionRepository), nil, logger, Config{})
		stats := service.GetStats()
		assert.Equal(t, DefaultConfig().BufferSize, stats.BufferSize)
		assert.Equal(t, DefaultConfig().WorkerCount, stats.WorkerCount)
		assert.False(t, stats.Started)
	})
}

func TestRejectionService_RecordRejection(t *testing.T) {
	logger := zap.NewNop()

	t.Run("queued rejections are persisted before stop returns", func(t *testing.T) {
		repo := new(MockRejectionRepository)
		repo.On("Insert", mock.Anything, mock.AnythingOfType("*models.AuthRejection")).Return(nil)

		service := NewRejectionService(repo, nil, logger, Config{BufferSize: 100, WorkerCount: 3})
		require.NoError(t, service.Start())

		for i := 0; i < 25; i++ {
			service.RecordRejection(context.Background(), newRejection("expired"))
		}

		require.NoError(t, service.Stop(5*time.Second))
		assert.Equal(t, 25, repo.count())
	})

	t.Run("repository errors are logged not raised", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		repo := new(MockRejectionRepository)
		repo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

		service := NewRejectionService(repo, nil, zap.New(core), Config{BufferSize: 10, WorkerCount: 1})
		require.NoError(t, service.Start())

		service.RecordRejection(context.Background(), newRejection("bad_signature"))
		require.NoError(t, service.Stop(5*time.Second))

		entries := logs.FilterMessage("failed to persist auth rejection").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "bad_signature", entries[0].ContextMap()["reason"])
	})

	t.Run("full buffer drops and counts", func(t *testing.T) {
		block := make(chan struct{})
		repo := new(MockRejectionRepository)
		repo.On("Insert", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { <-block }).
			Return(nil)

		m := metrics.NewMetrics()
		core, logs := observer.New(zapcore.WarnLevel)
		service := NewRejectionService(repo, m, zap.New(core), Config{BufferSize: 1, WorkerCount: 1})
		require.NoError(t, service.Start())

		// The worker holds the first record; the second fills the buffer.
		service.RecordRejection(context.Background(), newRejection("expired"))
		require.Eventually(t, func() bool { return service.GetStats().PendingEvents == 0 }, time.Second, time.Millisecond)
		service.RecordRejection(context.Background(), newRejection("expired"))
		service.RecordRejection(context.Background(), newRejection("expired"))

		assert.Len(t, logs.FilterMessage("audit event channel full, dropping rejection").All(), 1)

		close(block)
		require.NoError(t, service.Stop(5*time.Second))
	})

	t.Run("record after stop is dropped without panic", func(t *testing.T) {
		service := NewRejectionService(new(MockRejectionRepository), nil, logger, DefaultConfig())
		require.NoError(t, service.Start())
		require.NoError(t, service.Stop(time.Second))

		assert.NotPanics(t, func() {
			service.RecordRejection(context.Background(), newRejection("expired"))
		})
	})
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	rejection := newRejection("wrong_audience")
	sink.RecordRejection(context.Background(), rejection)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "audit", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(t, "wrong_audience", fields["reason"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, rejection.ID.String(), fields["id"])
}
