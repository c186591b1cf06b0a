package service

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/parchmentlabs/recall/internal/domain"
)

// Scorer rates (query, text) relevance, cross-encoder style: both sides
// go through the model together.
type Scorer interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// RerankMode selects the reranking strategy.
type RerankMode string

const (
	// RerankModeCrossEncoder scores each candidate with the relevance model.
	RerankModeCrossEncoder RerankMode = "cross_encoder"
	// RerankModeEnhanced blends retrieval similarity with type priority
	// and rank decay, no model in the loop.
	RerankModeEnhanced RerankMode = "enhanced"
)

// RerankWeights are the enhanced-mode blend coefficients.
type RerankWeights struct {
	Similarity   float64
	TypePriority float64
	Position     float64
}

// DefaultRerankWeights weight raw similarity heaviest; type priority and
// original rank act as tie-breakers.
func DefaultRerankWeights() RerankWeights {
	return RerankWeights{Similarity: 0.7, TypePriority: 0.2, Position: 0.1}
}

const (
	rerankConcurrency = 3

	// Model outputs that agree within this epsilon carry no ranking
	// signal; the original retrieval order is kept instead.
	degenerateEpsilon = 1e-6
)

// typePriority ranks knowledge types by how directly they answer a
// query. Curated QA pairs beat schema elements beat raw document chunks.
var typePriority = map[domain.KnowledgeType]float64{
	domain.KnowledgeTypeQAPair:            1.0,
	domain.KnowledgeTypeSemanticModel:     0.9,
	domain.KnowledgeTypeBusinessKnowledge: 0.8,
	domain.KnowledgeTypeSynonym:           0.7,
	domain.KnowledgeTypeFile:              0.6,
}

// Reranker re-orders retrieval candidates. Every failure path falls back
// to the retrieval-score order — reranking can only refine a result,
// never lose it.
type Reranker struct {
	scorer  Scorer
	mode    RerankMode
	weights RerankWeights
}

func NewReranker(scorer Scorer, mode RerankMode, weights RerankWeights) *Reranker {
	if mode == "" {
		mode = RerankModeCrossEncoder
	}
	if weights == (RerankWeights{}) {
		weights = DefaultRerankWeights()
	}
	return &Reranker{scorer: scorer, mode: mode, weights: weights}
}

// Rerank returns candidates re-ordered by relevance, truncated to topK.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []Snippet, topK int) []Snippet {
	if len(candidates) == 0 {
		return candidates
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	var ranked []Snippet
	switch r.mode {
	case RerankModeEnhanced:
		ranked = r.rerankEnhanced(candidates)
	default:
		ranked = r.rerankCrossEncoder(ctx, query, candidates)
	}
	return ranked[:topK]
}

// rerankCrossEncoder scores every candidate against the query with
// bounded concurrency. Scorer failure or degenerate output keeps the
// retrieval order.
func (r *Reranker) rerankCrossEncoder(ctx context.Context, query string, candidates []Snippet) []Snippet {
	if r.scorer == nil {
		return sortByRetrievalScore(candidates)
	}

	raw := make([]float64, len(candidates))
	failed := make([]bool, len(candidates))

	var wg sync.WaitGroup
	sem := make(chan struct{}, rerankConcurrency)
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				failed[i] = true
				return
			}
			defer func() { <-sem }()

			score, err := r.scorer.Score(ctx, query, candidates[i].Content)
			if err != nil {
				failed[i] = true
				return
			}
			raw[i] = score
		}(i)
	}
	wg.Wait()

	for _, f := range failed {
		if f {
			log.Printf("rerank: scorer failed for at least one candidate, keeping retrieval order")
			return sortByRetrievalScore(candidates)
		}
	}

	normalized := normalizeScores(raw)
	if isDegenerate(normalized) {
		log.Printf("rerank: model scores carry no signal, keeping retrieval order")
		return sortByRetrievalScore(candidates)
	}

	ranked := make([]Snippet, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Score = normalized[i]
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// rerankEnhanced blends retrieval similarity, type priority and rank
// decay. The incoming order encodes the original rank.
func (r *Reranker) rerankEnhanced(candidates []Snippet) []Snippet {
	n := len(candidates)
	ranked := make([]Snippet, n)
	copy(ranked, candidates)

	for i := range ranked {
		priority, ok := typePriority[ranked[i].Type]
		if !ok {
			priority = 0.5
		}
		decay := 1.0 - float64(i)/float64(n)
		ranked[i].Score = r.weights.Similarity*clamp01(ranked[i].Score) +
			r.weights.TypePriority*priority +
			r.weights.Position*decay
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

func sortByRetrievalScore(candidates []Snippet) []Snippet {
	out := make([]Snippet, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// normalizeScores maps raw model outputs to [0,1]. Logit-shaped outputs
// (anything outside the unit interval) go through a sigmoid; outputs
// already unit-ranged are clamped.
func normalizeScores(raw []float64) []float64 {
	logitShaped := false
	for _, s := range raw {
		if s < 0 || s > 1 {
			logitShaped = true
			break
		}
	}

	out := make([]float64, len(raw))
	for i, s := range raw {
		if logitShaped {
			out[i] = 1.0 / (1.0 + math.Exp(-s))
		} else {
			out[i] = clamp01(s)
		}
	}
	return out
}

func isDegenerate(scores []float64) bool {
	if len(scores) < 2 {
		return true
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return max-min <= degenerateEpsilon
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
