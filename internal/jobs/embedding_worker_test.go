package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/internal/domain"
)

// MockEmbeddingJobRepository is a mock implementation of EmbeddingJobRepository
type MockEmbeddingJobRepository struct {
	mock.Mock
}

func (m *MockEmbeddingJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmbeddingJob), args.Error(1)
}

func (m *MockEmbeddingJobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockEmbeddingJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// MockBackfiller is a mock implementation of EmbeddingBackfiller
type MockBackfiller struct {
	mock.Mock
}

func (m *MockBackfiller) BackfillEmbedding(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

func TestEmbeddingWorker_ProcessJobs(t *testing.T) {
	ctx := context.Background()

	t.Run("no pending jobs is a no-op", func(t *testing.T) {
		repo := new(MockEmbeddingJobRepository)
		backfiller := new(MockBackfiller)
		repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.EmbeddingJob{}, nil)

		w := NewEmbeddingWorker(repo, backfiller)
		require.NoError(t, w.ProcessJobs(ctx))
		backfiller.AssertNotCalled(t, "BackfillEmbedding")
	})

	t.Run("claim failure surfaces", func(t *testing.T) {
		repo := new(MockEmbeddingJobRepository)
		repo.On("ClaimPending", mock.Anything, 100).Return(nil, errors.New("db down"))

		w := NewEmbeddingWorker(repo, new(MockBackfiller))
		assert.Error(t, w.ProcessJobs(ctx))
	})

	t.Run("successful job is marked completed", func(t *testing.T) {
		repo := new(MockEmbeddingJobRepository)
		backfiller := new(MockBackfiller)
		job := &domain.EmbeddingJob{ID: "job-1", EntryID: "entry-1", Status: domain.EmbeddingJobStatusProcessing}

		repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.EmbeddingJob{job}, nil)
		backfiller.On("BackfillEmbedding", mock.Anything, "entry-1").Return(nil)
		repo.On("UpdateStatus", mock.Anything, "job-1", domain.EmbeddingJobStatusCompleted, "").Return(nil)

		w := NewEmbeddingWorker(repo, backfiller)
		require.NoError(t, w.ProcessJobs(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("one failing job does not stop the batch", func(t *testing.T) {
		repo := new(MockEmbeddingJobRepository)
		backfiller := new(MockBackfiller)
		bad := &domain.EmbeddingJob{ID: "job-1", EntryID: "entry-1"}
		good := &domain.EmbeddingJob{ID: "job-2", EntryID: "entry-2"}

		repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.EmbeddingJob{bad, good}, nil)
		backfiller.On("BackfillEmbedding", mock.Anything, "entry-1").Return(domain.ErrEmbeddingUnavailable)
		repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
		repo.On("UpdateStatus", mock.Anything, "job-1", domain.EmbeddingJobStatusPending, mock.Anything).Return(nil)
		backfiller.On("BackfillEmbedding", mock.Anything, "entry-2").Return(nil)
		repo.On("UpdateStatus", mock.Anything, "job-2", domain.EmbeddingJobStatusCompleted, "").Return(nil)

		w := NewEmbeddingWorker(repo, backfiller)
		require.NoError(t, w.ProcessJobs(ctx))
		repo.AssertExpectations(t)
		backfiller.AssertExpectations(t)
	})

	t.Run("job without entry id is skipped", func(t *testing.T) {
		repo := new(MockEmbeddingJobRepository)
		backfiller := new(MockBackfiller)
		job := &domain.EmbeddingJob{ID: "job-1"}

		repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.EmbeddingJob{job}, nil)

		w := NewEmbeddingWorker(repo, backfiller)
		require.NoError(t, w.ProcessJobs(ctx))
		backfiller.AssertNotCalled(t, "BackfillEmbedding")
	})
}

func TestEmbeddingWorker_RetryBounds(t *testing.T) {
	ctx := context.Background()

	t.Run("first failure resets to pending", func(t *testing.T) {
		repo := new(MockEmbeddingJobRepository)
		backfiller := new(MockBackfiller)
		job := &domain.EmbeddingJob{ID: "job-1", EntryID: "entry-1", Retries: 0}

		repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.EmbeddingJob{job}, nil)
		backfiller.On("BackfillEmbedding", mock.Anything, "entry-1").Return(domain.ErrEmbeddingUnavailable)
		repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
		repo.On("UpdateStatus", mock.Anything, "job-1", domain.EmbeddingJobStatusPending, mock.MatchedBy(func(msg string) bool {
			return msg != ""
		})).Return(nil)

		w := NewEmbeddingWorker(repo, backfiller)
		require.NoError(t, w.ProcessJobs(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("final failure marks job failed", func(t *testing.T) {
		repo := new(MockEmbeddingJobRepository)
		backfiller := new(MockBackfiller)
		job := &domain.EmbeddingJob{ID: "job-1", EntryID: "entry-1", Retries: MaxRetries - 1}

		repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.EmbeddingJob{job}, nil)
		backfiller.On("BackfillEmbedding", mock.Anything, "entry-1").Return(domain.ErrEmbeddingUnavailable)
		repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
		repo.On("UpdateStatus", mock.Anything, "job-1", domain.EmbeddingJobStatusFailed, mock.MatchedBy(func(msg string) bool {
			return msg != ""
		})).Return(nil)

		w := NewEmbeddingWorker(repo, backfiller)
		require.NoError(t, w.ProcessJobs(ctx))
		repo.AssertExpectations(t)
	})
}
