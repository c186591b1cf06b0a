package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/parchmentlabs/recall/internal/domain"
)

// Match is one similarity-search hit. Score is cosine similarity mapped
// to 1 - distance.
type Match struct {
	EntryID  string
	OwnerID  string
	EntityID string
	Type     domain.KnowledgeType
	Title    string
	Content  string
	Metadata map[string]any
	Score    float64
}

// SearchOptions filter a similarity search. An empty Types slice means
// every known type. EntityID, when set, restricts results to rows whose
// isolation key matches exactly after normalization.
type SearchOptions struct {
	OwnerID  string
	EntityID string
	Types    []domain.KnowledgeType
	TopK     int
	MinScore float64
}

// NormalizeEntityID unwraps isolation keys that passed through a quoting
// layer one time too many. `"src-1"` and `src-1` must compare equal.
func NormalizeEntityID(raw string) string {
	s := strings.TrimSpace(raw)
	for len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			break
		}
		s = u
	}
	return s
}

// SearchSimilar runs one cosine search per requested type in parallel and
// merges the hits by score, truncating to TopK globally. Each per-type
// search itself returns at most TopK rows.
func (s *Store) SearchSimilar(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if err := domain.ValidateEmbeddingDim(query, s.dim); err != nil {
		return nil, err
	}
	types := opts.Types
	if len(types) == 0 {
		types = domain.AllKnowledgeTypes()
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	perType := make([][]Match, len(types))
	g, gCtx := errgroup.WithContext(ctx)
	for i, t := range types {
		i, t := i, t
		g.Go(func() error {
			matches, err := s.searchOneType(gCtx, t, query, opts)
			if err != nil {
				return fmt.Errorf("searching %s: %w", t, err)
			}
			perType[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Match
	for _, m := range perType {
		merged = append(merged, m...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > opts.TopK {
		merged = merged[:opts.TopK]
	}
	return merged, nil
}

func (s *Store) searchOneType(ctx context.Context, t domain.KnowledgeType, query []float32, opts SearchOptions) ([]Match, error) {
	table, err := t.VectorTable()
	if err != nil {
		return nil, err
	}

	vec := pgvector.NewVector(query)
	sql := `SELECT entry_id, owner_id, entity_id, title, content, metadata,
	               1 - (embedding <=> $1) AS score
	        FROM ` + table + `
	        WHERE 1 - (embedding <=> $1) >= $2`
	args := []interface{}{vec, opts.MinScore}

	// file_vectors holds both entry-level rows and positional chunk rows;
	// type-scoped search sees only the entry-level ones.
	if table == "file_vectors" {
		sql += " AND entry_id IS NOT NULL"
	}
	if opts.OwnerID != "" {
		args = append(args, opts.OwnerID)
		sql += fmt.Sprintf(" AND owner_id = $%d", len(args))
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

	var matches []Match
	for rows.Next() {
		var m Match
		var ownerID, entityID *string
		var meta []byte
		if err := rows.Scan(&m.EntryID, &ownerID, &entityID, &m.Title, &m.Content, &meta, &m.Score); err != nil {
			return nil, err
		}
		m.Type = t
		if ownerID != nil {
			m.OwnerID = *ownerID
		}
		if entityID != nil {
			m.EntityID = NormalizeEntityID(*entityID)
		}
		m.Metadata = unmarshalMetadata(meta)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
