package domain

import (
	"fmt"
	"time"
)

// EmbeddingJobStatus represents the status of an embedding backfill job.
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob records an entry that was persisted without an embedding.
// The backfill worker retries these so a transient provider outage only
// costs fidelity, never data.
type EmbeddingJob struct {
	ID          string
	EntryID     string
	Status      EmbeddingJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewEmbeddingJob creates a pending job for the given entry.
func NewEmbeddingJob(id, entryID string, createdAt time.Time) *EmbeddingJob {
	return &EmbeddingJob{
		ID:        id,
		EntryID:   entryID,
		Status:    EmbeddingJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateEmbeddingJob validates an EmbeddingJob instance.
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}
	if j.EntryID == "" {
		return fmt.Errorf("embedding job EntryID is required")
	}
	if !isValidEmbeddingJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}
	if j.Retries < 0 {
		return fmt.Errorf("embedding job Retries cannot be negative")
	}
	return nil
}

func isValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing,
		EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}
