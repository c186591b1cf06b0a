package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/pagination"
	"github.com/parchmentlabs/recall/internal/service"
)

type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx pgx.Tx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

const entryColumns = `id, owner_id, type, title, content, embedding, parent_id, metadata, created_at, updated_at`

func (r *KnowledgeRepository) Create(ctx context.Context, e *domain.Entry) error {
	if err := domain.ValidateEntry(e); err != nil {
		return err
	}
	meta, err := marshalEntryMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO knowledge_entries (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.OwnerID, e.Type, e.Title, e.Content,
		nullableVector(e.Embedding), nullableString(e.ParentID), meta,
		e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (r *KnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *KnowledgeRepository) Update(ctx context.Context, e *domain.Entry) error {
	e.UpdatedAt = time.Now().UTC()
	meta, err := marshalEntryMetadata(e.Metadata)
	if err != nil {
		return err
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_entries
		 SET title = $1, content = $2, embedding = $3, metadata = $4, updated_at = $5
		 WHERE id = $6`,
		e.Title, e.Content, nullableVector(e.Embedding), meta, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func (r *KnowledgeRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_entries SET embedding = $1, updated_at = $2 WHERE id = $3`,
		nullableVector(embedding), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func (r *KnowledgeRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// ListChildren returns an entry's direct children, oldest first. The
// hierarchy is single-level, so this is the complete subtree.
func (r *KnowledgeRepository) ListChildren(ctx context.Context, parentID string) ([]*domain.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries
		 WHERE parent_id = $1 ORDER BY created_at ASC`,
		parentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// FindQAByNormalizedQuestion looks up a QA entry by its normalized
// question, scoped to an owner and optionally an isolation key. Returns
// nil, nil when no duplicate exists.
func (r *KnowledgeRepository) FindQAByNormalizedQuestion(ctx context.Context, ownerID, entityID, questionNorm string) (*domain.Entry, error) {
	sql := `SELECT ` + entryColumns + ` FROM knowledge_entries
	        WHERE owner_id = $1 AND type = $2 AND metadata->>'question_norm' = $3`
	args := []interface{}{ownerID, domain.KnowledgeTypeQAPair, questionNorm}

	if entityID != "" {
		args = append(args, []string{entityID, strconv.Quote(entityID)})
		sql += fmt.Sprintf(" AND metadata->>'entity_id' = ANY($%d)", len(args))
	}
	sql += " LIMIT 1"

	row := r.db.QueryRow(ctx, sql, args...)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// ListByOwnerWithCursor pages an owner's entries newest-updated first.
// An empty typ lists every type.
func (r *KnowledgeRepository) ListByOwnerWithCursor(ctx context.Context, ownerID string, typ domain.KnowledgeType, cursor *pagination.Cursor, limit int) (*service.EntryPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	sql := `SELECT ` + entryColumns + ` FROM knowledge_entries WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if typ != "" {
		args = append(args, typ)
		sql += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		sql += fmt.Sprintf(" AND (updated_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit+1)
	sql += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanEntryRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.UpdatedAt)
	}

	return &service.EntryPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var e domain.Entry
	var emb *pgvector.Vector
	var parentID *string
	var meta []byte
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Type, &e.Title, &e.Content, &emb, &parentID, &meta, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if emb != nil {
		e.Embedding = emb.Slice()
	}
	if parentID != nil {
		e.ParentID = *parentID
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &e.Metadata)
	}
	return &e, nil
}

func scanEntryRows(rows pgx.Rows) ([]*domain.Entry, error) {
	var results []*domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func marshalEntryMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return data, nil
}

func nullableVector(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
