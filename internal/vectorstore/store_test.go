//go:build integration

package vectorstore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/testutil"
)

const testDim = 768

// unitVec builds a 768-dim unit vector concentrated on one axis, with a
// small shared component so cosine scores are distinct but nonzero.
func unitVec(axis int) []float32 {
	v := make([]float32, testDim)
	for i := range v {
		v[i] = 0.001
	}
	v[axis%testDim] = 1
	norm := float32(0)
	for _, x := range v {
		norm += x * x
	}
	scale := float32(1 / math.Sqrt(float64(norm)))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func newTestStore(ctx context.Context, t *testing.T) (*Store, func()) {
	pc := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	return NewStore(pool, testDim), func() {
		pool.Close()
		pc.Terminate(ctx)
	}
}

func qaRecord(entryID, ownerID, entityID string, emb []float32) *domain.VectorRecord {
	return &domain.VectorRecord{
		EntryID:   entryID,
		OwnerID:   ownerID,
		EntityID:  entityID,
		Type:      domain.KnowledgeTypeQAPair,
		Title:     "What is revenue?",
		Content:   "Total income from sales.",
		Embedding: emb,
	}
}

func TestStore_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	emb := unitVec(0)
	require.NoError(t, store.Upsert(ctx, qaRecord("entry-1", "owner-1", "ds-1", emb)))

	matches, err := store.SearchSimilar(ctx, emb, SearchOptions{
		OwnerID: "owner-1",
		Types:   []domain.KnowledgeType{domain.KnowledgeTypeQAPair},
		TopK:    5,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "entry-1", matches[0].EntryID)
	assert.Equal(t, domain.KnowledgeTypeQAPair, matches[0].Type)
	assert.Equal(t, "ds-1", matches[0].EntityID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.01)
}

func TestStore_UpsertIsIdempotentPerEntry(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	emb := unitVec(0)
	require.NoError(t, store.Upsert(ctx, qaRecord("entry-1", "owner-1", "", emb)))

	updated := qaRecord("entry-1", "owner-1", "", unitVec(1))
	updated.Content = "Rewritten answer."
	require.NoError(t, store.Upsert(ctx, updated))

	matches, err := store.SearchSimilar(ctx, unitVec(1), SearchOptions{
		OwnerID: "owner-1",
		Types:   []domain.KnowledgeType{domain.KnowledgeTypeQAPair},
		TopK:    10,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Rewritten answer.", matches[0].Content)
}

func TestStore_UpsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	rec := qaRecord("entry-1", "owner-1", "", []float32{0.1, 0.2})
	assert.ErrorIs(t, store.Upsert(ctx, rec), domain.ErrDimensionMismatch)

	matches, err := store.SearchSimilar(ctx, unitVec(0), SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_SearchDoesNotCrossTypes(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	emb := unitVec(0)
	require.NoError(t, store.Upsert(ctx, qaRecord("qa-1", "owner-1", "", emb)))
	require.NoError(t, store.Upsert(ctx, &domain.VectorRecord{
		EntryID:   "syn-1",
		OwnerID:   "owner-1",
		Type:      domain.KnowledgeTypeSynonym,
		Title:     "rev",
		Content:   "rev = revenue",
		Embedding: emb,
	}))

	matches, err := store.SearchSimilar(ctx, emb, SearchOptions{
		OwnerID: "owner-1",
		Types:   []domain.KnowledgeType{domain.KnowledgeTypeSynonym},
		TopK:    10,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "syn-1", matches[0].EntryID)
}

func TestStore_SearchFilters(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	emb := unitVec(0)
	require.NoError(t, store.Upsert(ctx, qaRecord("mine", "owner-1", "ds-1", emb)))
	require.NoError(t, store.Upsert(ctx, qaRecord("theirs", "owner-2", "ds-2", emb)))

	t.Run("owner filter", func(t *testing.T) {
		matches, err := store.SearchSimilar(ctx, emb, SearchOptions{OwnerID: "owner-1", TopK: 10})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "mine", matches[0].EntryID)
	})

	t.Run("entity filter", func(t *testing.T) {
		matches, err := store.SearchSimilar(ctx, emb, SearchOptions{EntityID: "ds-2", TopK: 10})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "theirs", matches[0].EntryID)
	})

	t.Run("quoted entity id matches plain", func(t *testing.T) {
		matches, err := store.SearchSimilar(ctx, emb, SearchOptions{EntityID: `"ds-1"`, TopK: 10})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "mine", matches[0].EntryID)
	})

	t.Run("min score filter", func(t *testing.T) {
		far := unitVec(5)
		matches, err := store.SearchSimilar(ctx, far, SearchOptions{OwnerID: "owner-1", TopK: 10, MinScore: 0.9})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestStore_SearchMergesAcrossTypesByScore(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	query := unitVec(0)
	require.NoError(t, store.Upsert(ctx, qaRecord("close", "owner-1", "", unitVec(0))))
	require.NoError(t, store.Upsert(ctx, &domain.VectorRecord{
		EntryID:   "far",
		OwnerID:   "owner-1",
		Type:      domain.KnowledgeTypeBusinessKnowledge,
		Title:     "Fiscal calendar",
		Content:   "The fiscal year starts in February.",
		Embedding: unitVec(3),
	}))

	matches, err := store.SearchSimilar(ctx, query, SearchOptions{OwnerID: "owner-1", TopK: 10})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "close", matches[0].EntryID)
	assert.Equal(t, "far", matches[1].EntryID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestStore_SearchEmptyTablesReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	matches, err := store.SearchSimilar(ctx, unitVec(0), SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	emb := unitVec(0)
	require.NoError(t, store.Upsert(ctx, qaRecord("entry-1", "owner-1", "", emb)))
	require.NoError(t, store.Delete(ctx, "entry-1", domain.KnowledgeTypeQAPair))

	matches, err := store.SearchSimilar(ctx, emb, SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Idempotent.
	require.NoError(t, store.Delete(ctx, "entry-1"))
}
