package service

import (
	"context"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/telemetry"
	"github.com/parchmentlabs/recall/internal/vectorstore"
)

const (
	// Share of the result budget given to knowledge-base hits; the rest
	// goes to document chunks. Each side gets at least one slot.
	kbBudgetShare = 0.7

	// DefaultMinScore filters out weakly related vectors.
	DefaultMinScore = 0.3

	defaultRetrieveTopK = 10
)

// Snippet is one ranked retrieval result, from either the knowledge base
// or a document chunk.
type Snippet struct {
	EntryID    string
	Source     string // "knowledge" or "document"
	Type       domain.KnowledgeType
	Title      string
	Content    string
	FileID     string
	ChunkIndex int
	Score      float64
}

// RetrieveInput scopes a retrieval query.
type RetrieveInput struct {
	OwnerID  string
	EntityID string
	Query    string
	Types    []domain.KnowledgeType
	FileIDs  []string
	TopK     int
	MinScore float64
	Rerank   bool
}

// RetrievalService blends knowledge-base and document-chunk search into
// one ranked list. Branch failures degrade the result, they never fail
// the query: the worst case is an empty list.
type RetrievalService struct {
	vectors  VectorStoreInterface
	embedder Embedder
	reranker *Reranker
	minScore float64
}

func NewRetrievalService(vectors VectorStoreInterface, embedder Embedder, reranker *Reranker) *RetrievalService {
	return &RetrievalService{
		vectors:  vectors,
		embedder: embedder,
		reranker: reranker,
		minScore: DefaultMinScore,
	}
}

// WithMinScore overrides the similarity floor.
func (s *RetrievalService) WithMinScore(min float64) *RetrievalService {
	if min > 0 {
		s.minScore = min
	}
	return s
}

// Retrieve embeds the query and runs knowledge-base and document search
// concurrently. A query that cannot be embedded fails closed with an
// empty result — retrieval never guesses without a vector.
func (s *RetrievalService) Retrieve(ctx context.Context, input RetrieveInput) []Snippet {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		EntityID:  input.EntityID,
		Operation: "retrieve",
	})
	defer span.End()

	if input.Query == "" {
		return []Snippet{}
	}
	topK := input.TopK
	if topK <= 0 {
		topK = defaultRetrieveTopK
	}
	minScore := input.MinScore
	if minScore <= 0 {
		minScore = s.minScore
	}

	queryVec := s.embedder.Embed(ctx, input.Query)
	if queryVec == nil {
		log.Printf("retrieval: query embedding unavailable, returning empty result")
		return []Snippet{}
	}

	kbBudget := int(float64(topK) * kbBudgetShare)
	if kbBudget < 1 {
		kbBudget = 1
	}
	docBudget := topK - kbBudget
	if docBudget < 1 {
		docBudget = 1
	}

	var kbHits []Snippet
	var docHits []Snippet

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kbHits = s.searchKnowledge(gCtx, queryVec, input, kbBudget, minScore)
		return nil
	})
	g.Go(func() error {
		docHits = s.searchDocuments(gCtx, queryVec, input, docBudget, minScore)
		return nil
	})
	_ = g.Wait()

	merged := append(kbHits, docHits...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > topK {
		merged = merged[:topK]
	}

	if input.Rerank && s.reranker != nil && len(merged) > 1 {
		merged = s.reranker.Rerank(ctx, input.Query, merged, topK)
	}
	return merged
}

// searchKnowledge covers the per-type entry vectors. Errors are absorbed:
// a failed branch contributes nothing.
func (s *RetrievalService) searchKnowledge(ctx context.Context, queryVec []float32, input RetrieveInput, budget int, minScore float64) []Snippet {
	matches, err := s.vectors.SearchSimilar(ctx, queryVec, vectorstore.SearchOptions{
		OwnerID:  input.OwnerID,
		EntityID: input.EntityID,
		Types:    input.Types,
		TopK:     budget,
		MinScore: minScore,
	})
	if err != nil {
		log.Printf("retrieval: knowledge search failed: %v", err)
		return nil
	}

	snippets := make([]Snippet, 0, len(matches))
	for _, m := range matches {
		snippets = append(snippets, Snippet{
			EntryID:    m.EntryID,
			Source:     "knowledge",
			Type:       m.Type,
			Title:      m.Title,
			Content:    m.Content,
			ChunkIndex: -1,
			Score:      m.Score,
		})
	}
	return snippets
}

// searchDocuments is two-tier: chunks scoped to the caller's files first;
// when the scoped tier fills less than half the budget, a cross-file
// search tops it up, preferring scoped hits on per-file collisions.
func (s *RetrievalService) searchDocuments(ctx context.Context, queryVec []float32, input RetrieveInput, budget int, minScore float64) []Snippet {
	var scoped []vectorstore.FileChunkMatch
	if len(input.FileIDs) > 0 {
		var err error
		scoped, err = s.vectors.SearchFileChunks(ctx, queryVec, vectorstore.FileSearchOptions{
			EntityID: input.EntityID,
			FileIDs:  input.FileIDs,
			TopK:     budget,
			MinScore: minScore,
		})
		if err != nil {
			log.Printf("retrieval: scoped document search failed: %v", err)
			scoped = nil
		}
		if len(scoped) >= (budget+1)/2 {
			return chunkSnippets(scoped, budget)
		}
	}

	unscoped, err := s.vectors.SearchFileChunks(ctx, queryVec, vectorstore.FileSearchOptions{
		EntityID: input.EntityID,
		TopK:     budget,
		MinScore: minScore,
	})
	if err != nil {
		log.Printf("retrieval: cross-file document search failed: %v", err)
		return chunkSnippets(scoped, budget)
	}

	// De-dup by file: a scoped hit beats any cross-file hit for its file.
	seen := make(map[string]bool, len(scoped))
	combined := make([]vectorstore.FileChunkMatch, 0, len(scoped)+len(unscoped))
	for _, m := range scoped {
		seen[m.FileID] = true
		combined = append(combined, m)
	}
	for _, m := range unscoped {
		if seen[m.FileID] {
			continue
		}
		combined = append(combined, m)
	}
	sort.SliceStable(combined, func(i, j int) bool { return combined[i].Score > combined[j].Score })
	return chunkSnippets(combined, budget)
}

func chunkSnippets(matches []vectorstore.FileChunkMatch, budget int) []Snippet {
	if len(matches) > budget {
		matches = matches[:budget]
	}
	snippets := make([]Snippet, 0, len(matches))
	for _, m := range matches {
		snippets = append(snippets, Snippet{
			Source:     "document",
			Type:       domain.KnowledgeTypeFile,
			Content:    m.Content,
			FileID:     m.FileID,
			ChunkIndex: m.ChunkIndex,
			Score:      m.Score,
		})
	}
	return snippets
}
