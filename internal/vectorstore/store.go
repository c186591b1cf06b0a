// Package vectorstore persists embeddings in per-type pgvector tables and
// runs cosine-similarity search over them. Each knowledge type owns its
// own table, so a search never leaks rows across type boundaries.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/parchmentlabs/recall/internal/domain"
)

// Store reads and writes the vector tables. All writes validate the
// embedding dimension before touching SQL.
type Store struct {
	pool *pgxpool.Pool
	dim  int
}

func NewStore(pool *pgxpool.Pool, dim int) *Store {
	return &Store{pool: pool, dim: dim}
}

// Dimension returns the enforced embedding dimension.
func (s *Store) Dimension() int { return s.dim }

// Upsert writes one entry-level vector row, keyed by entry_id. Re-storing
// the same entry overwrites content, embedding and metadata and bumps
// updated_at; it never creates duplicates.
func (s *Store) Upsert(ctx context.Context, rec *domain.VectorRecord) error {
	if err := domain.ValidateEmbeddingDim(rec.Embedding, s.dim); err != nil {
		return err
	}
	table, err := rec.Type.VectorTable()
	if err != nil {
		return err
	}

	meta, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+table+` (entry_id, owner_id, entity_id, title, content, embedding, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (entry_id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			entity_id = EXCLUDED.entity_id,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`,
		rec.EntryID,
		nullableString(rec.OwnerID),
		nullableString(rec.EntityID),
		rec.Title,
		rec.Content,
		pgvector.NewVector(rec.Embedding),
		meta,
		createdAt,
		now,
	)
	return err
}

// Delete removes the entry's vector rows from the given types; with no
// types it sweeps every table. Missing rows are not an error — delete is
// idempotent.
func (s *Store) Delete(ctx context.Context, entryID string, types ...domain.KnowledgeType) error {
	if len(types) == 0 {
		types = domain.AllKnowledgeTypes()
	}
	for _, t := range types {
		table, err := t.VectorTable()
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx,
			`DELETE FROM `+table+` WHERE entry_id = $1`, entryID,
		); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	return nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
