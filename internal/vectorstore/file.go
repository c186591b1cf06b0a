package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/parchmentlabs/recall/internal/domain"
)

// FileChunkMatch is one positional chunk hit from file_vectors.
type FileChunkMatch struct {
	ID         string
	FileID     string
	EntityID   string
	ChunkIndex int
	Content    string
	Metadata   map[string]any
	Score      float64
}

// FileSearchOptions filter a chunk search. Empty FileIDs means unfiltered
// cross-file search over every stored document.
type FileSearchOptions struct {
	EntityID string
	FileIDs  []string
	TopK     int
	MinScore float64
}

// ReplaceFileChunks swaps the stored chunks for a file: existing
// positional rows are removed, then the new set is inserted. Chunks with
// a wrong-dimension embedding fail the whole call before any SQL runs.
func (s *Store) ReplaceFileChunks(ctx context.Context, fileID string, chunks []domain.FileChunkRecord) error {
	for i := range chunks {
		if err := domain.ValidateEmbeddingDim(chunks[i].Embedding, s.dim); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM file_vectors WHERE file_id = $1 AND entry_id IS NULL`, fileID,
	); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, c := range chunks {
		meta, err := marshalMetadata(c.Metadata)
		if err != nil {
			return err
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO file_vectors (id, owner_id, entity_id, file_id, chunk_index, content, embedding, metadata, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
			id,
			nullableString(c.OwnerID),
			nullableString(c.EntityID),
			fileID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			meta,
			createdAt,
		); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.ChunkIndex, err)
		}
	}
	return nil
}

// SearchFileChunks runs cosine search over positional chunk rows,
// optionally scoped to a set of files and an isolation key.
func (s *Store) SearchFileChunks(ctx context.Context, query []float32, opts FileSearchOptions) ([]FileChunkMatch, error) {
	if err := domain.ValidateEmbeddingDim(query, s.dim); err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	vec := pgvector.NewVector(query)
	sql := `SELECT id, file_id, entity_id, chunk_index, content, metadata,
	               1 - (embedding <=> $1) AS score
	        FROM file_vectors
	        WHERE entry_id IS NULL AND 1 - (embedding <=> $1) >= $2`
	args := []interface{}{vec, opts.MinScore}

	if len(opts.FileIDs) > 0 {
		args = append(args, opts.FileIDs)
		sql += fmt.Sprintf(" AND file_id = ANY($%d)", len(args))
	}
	if opts.EntityID != "" {
		norm := NormalizeEntityID(opts.EntityID)
		args = append(args, []string{norm, strconv.Quote(norm)})
		sql += fmt.Sprintf(" AND entity_id = ANY($%d)", len(args))
	}
	args = append(args, opts.TopK)
	sql += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []FileChunkMatch
	for rows.Next() {
		var m FileChunkMatch
		var fileID, entityID *string
		var meta []byte
		if err := rows.Scan(&m.ID, &fileID, &entityID, &m.ChunkIndex, &m.Content, &meta, &m.Score); err != nil {
			return nil, err
		}
		if fileID != nil {
			m.FileID = *fileID
		}
		if entityID != nil {
			m.EntityID = NormalizeEntityID(*entityID)
		}
		m.Metadata = unmarshalMetadata(meta)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteFileVectors removes every row belonging to a file, both the
// positional chunks and any entry-level mirror.
func (s *Store) DeleteFileVectors(ctx context.Context, fileID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM file_vectors WHERE file_id = $1 OR metadata->>'file_id' = $1`, fileID,
	)
	return err
}
