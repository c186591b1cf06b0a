// Package embedding turns text into fixed-dimension vectors through an
// ordered fallback chain: local model first, then a configured remote
// endpoint, then the hosted API. A missing embedding must never prevent
// a knowledge entry from being saved, so the provider absorbs every tier
// failure and reports nil instead of raising.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	internalopenai "github.com/parchmentlabs/recall/internal/openai"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds how many texts are embedded concurrently.
// This is a concurrency cap, not a batched-inference optimization.
const DefaultBatchSize = 10

// Tier is one strategy in the fallback chain.
type Tier interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

type namedTier struct {
	name   string
	client interface {
		Embed(ctx context.Context, text string) ([]float32, error)
	}
}

func (t namedTier) Name() string { return t.name }
func (t namedTier) Embed(ctx context.Context, text string) ([]float32, error) {
	return t.client.Embed(ctx, text)
}

// LocalTier wraps a LocalClient as a chain tier.
func LocalTier(c *LocalClient) Tier { return namedTier{name: "local", client: c} }

// RemoteTier wraps a RemoteClient as a chain tier.
func RemoteTier(c *RemoteClient) Tier { return namedTier{name: "remote", client: c} }

// HostedTier reaches the hosted embeddings API through two independent
// client paths: the validating wrapper first, then a raw SDK call in
// case the wrapper path is unusable.
type HostedTier struct {
	wrapper *internalopenai.Client
	raw     *openai.Client
	model   openai.EmbeddingModel
	dims    int
}

// NewHostedTier builds the hosted tier from one API key.
func NewHostedTier(apiKey string, model openai.EmbeddingModel, dims int) *HostedTier {
	if model == "" {
		model = internalopenai.DefaultEmbeddingModel
	}
	return &HostedTier{
		wrapper: internalopenai.NewClientWithConfig(internalopenai.Config{
			APIKey:              apiKey,
			EmbeddingModel:      model,
			EmbeddingDimensions: dims,
		}),
		raw:   openai.NewClient(apiKey),
		model: model,
		dims:  dims,
	}
}

func (t *HostedTier) Name() string { return "hosted" }

func (t *HostedTier) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, wrapperErr := t.wrapper.GenerateEmbedding(ctx, text)
	if wrapperErr == nil {
		return vec, nil
	}
	log.Printf("embedding: hosted wrapper failed, trying raw client: %v", wrapperErr)

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: t.model,
	}
	if t.dims > 0 {
		req.Dimensions = t.dims
	}
	resp, rawErr := t.raw.CreateEmbeddings(ctx, req)
	if rawErr != nil {
		return nil, errors.Join(wrapperErr, rawErr)
	}
	if len(resp.Data) == 0 {
		return nil, errors.Join(wrapperErr, fmt.Errorf("raw client returned no embedding data"))
	}
	return resp.Data[0].Embedding, nil
}

// Provider walks the tier chain in order and returns the first vector of
// the configured dimension. Tier failures are logged, never surfaced.
type Provider struct {
	tiers     []Tier
	dim       int
	batchSize int
}

// NewProvider creates a Provider over the given tiers. Tiers are tried
// in the order supplied.
func NewProvider(dim int, tiers ...Tier) *Provider {
	return &Provider{
		tiers:     tiers,
		dim:       dim,
		batchSize: DefaultBatchSize,
	}
}

// Dimension returns the configured embedding dimension.
func (p *Provider) Dimension() int { return p.dim }

// Embed vectorizes text. It returns nil when every tier fails; that is
// a degraded state, not an error, and the caller proceeds without an
// embedding.
func (p *Provider) Embed(ctx context.Context, text string) []float32 {
	if text == "" {
		return nil
	}
	for _, tier := range p.tiers {
		vec, err := tier.Embed(ctx, text)
		if err != nil {
			log.Printf("embedding: tier %s failed: %v", tier.Name(), err)
			continue
		}
		if len(vec) != p.dim {
			log.Printf("embedding: tier %s returned dimension %d, want %d; skipping",
				tier.Name(), len(vec), p.dim)
			continue
		}
		return vec
	}
	log.Printf("embedding: all %d tiers failed, continuing without embedding", len(p.tiers))
	return nil
}

// EmbedTexts embeds texts through the single-text path in fixed-size
// concurrent windows, bounding peak resource usage. Slots for failed
// items are nil; a partial batch is a valid result.
func (p *Provider) EmbedTexts(ctx context.Context, texts []string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}
	results := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = p.Embed(gCtx, texts[i])
				return nil
			})
		}
		// Goroutines never return errors; Wait only synchronizes the window.
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			break
		}
	}
	return results
}
