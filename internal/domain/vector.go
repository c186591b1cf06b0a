package domain

import (
	"fmt"
	"time"
)

// VectorRecord is one row in a per-type vector table, mirroring a durable
// entry. Writes upsert by EntryID.
type VectorRecord struct {
	EntryID   string
	OwnerID   string
	EntityID  string
	Type      KnowledgeType
	Title     string
	Content   string
	Embedding []float32
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileChunkRecord is one row in file_vectors, keyed by position within a
// source document. OwnerID may be empty: file chunks can be shared.
type FileChunkRecord struct {
	ID         string
	OwnerID    string
	EntityID   string
	FileID     string
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   map[string]any
	CreatedAt  time.Time
}

// ValidateEmbeddingDim enforces the deployment-wide dimension invariant.
// A mismatch is a hard validation failure, never truncated or padded.
func ValidateEmbeddingDim(embedding []float32, dim int) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding is empty", ErrDimensionMismatch)
	}
	if len(embedding) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), dim)
	}
	return nil
}
