// Package cli wires the daemon and command-line entry points.
package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	openai "github.com/sashabaranov/go-openai"

	"github.com/parchmentlabs/recall/internal/config"
	"github.com/parchmentlabs/recall/internal/database"
	"github.com/parchmentlabs/recall/internal/embedding"
	"github.com/parchmentlabs/recall/internal/repository"
	"github.com/parchmentlabs/recall/internal/service"
	"github.com/parchmentlabs/recall/internal/storage"
	"github.com/parchmentlabs/recall/internal/textproc"
	"github.com/parchmentlabs/recall/internal/vectorstore"
)

// App holds every constructed dependency. All clients are built once at
// startup and injected; nothing is lazily initialized.
type App struct {
	Cfg      *config.Config
	Pool     *pgxpool.Pool
	Store    *vectorstore.Store
	Embedder *embedding.Provider

	KnowledgeRepo *repository.KnowledgeRepository
	JobRepo       *repository.EmbeddingJobRepository

	Knowledge *service.KnowledgeService
	Retrieval *service.RetrievalService
	Ingest    *service.IngestService
}

// BuildApp connects the database and constructs the service graph.
// The returned cleanup closes the pool.
func BuildApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanup := func() { pool.Close() }

	store := vectorstore.NewStore(pool, cfg.EmbeddingDim)
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)

	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, jobRepo, store, embedder).
		WithQADuplicateThreshold(cfg.QADuplicateThreshold)

	var reranker *service.Reranker
	if cfg.RerankEnabled {
		var scorer service.Scorer
		if cfg.HasLocalEmbed() {
			scorer = embedding.NewLocalScorer(cfg.LocalEmbedURL, cfg.LocalScoreModel)
		}
		reranker = service.NewReranker(scorer, service.RerankMode(cfg.RerankMode), service.RerankWeights{
			Similarity:   cfg.RerankSimilarityWeight,
			TypePriority: cfg.RerankTypeWeight,
			Position:     cfg.RerankPositionWeight,
		})
	}

	retrievalSvc := service.NewRetrievalService(store, embedder, reranker).
		WithMinScore(cfg.MinScore)

	var objects service.ObjectStorage
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		objects = s3Client
	}

	ingestSvc := service.NewIngestService(embedder, store, knowledgeSvc, objects).
		WithChunkConfig(textproc.ChunkConfig{
			Size:      cfg.ChunkSize,
			Overlap:   cfg.ChunkOverlap,
			MaxChunks: cfg.MaxChunks,
		})

	return &App{
		Cfg:           cfg,
		Pool:          pool,
		Store:         store,
		Embedder:      embedder,
		KnowledgeRepo: knowledgeRepo,
		JobRepo:       jobRepo,
		Knowledge:     knowledgeSvc,
		Retrieval:     retrievalSvc,
		Ingest:        ingestSvc,
	}, cleanup, nil
}

// buildEmbedder assembles the fallback chain from configuration. Tiers
// are ordered local, remote, hosted; an unconfigured tier is left out.
func buildEmbedder(cfg *config.Config) (*embedding.Provider, error) {
	var tiers []embedding.Tier

	if cfg.HasLocalEmbed() {
		if err := embedding.ValidateLocalURL(cfg.LocalEmbedURL); err != nil {
			return nil, err
		}
		tiers = append(tiers, embedding.LocalTier(embedding.NewLocalClient(cfg.LocalEmbedURL, cfg.LocalEmbedModel)))
	}
	if cfg.HasRemoteEmbed() {
		tiers = append(tiers, embedding.RemoteTier(embedding.NewRemoteClient(cfg.RemoteEmbedURL, cfg.RemoteEmbedModel, cfg.RemoteEmbedKey)))
	}
	if cfg.HasOpenAI() {
		tiers = append(tiers, embedding.NewHostedTier(cfg.OpenAIAPIKey, openai.SmallEmbedding3, cfg.EmbeddingDim))
	}

	if len(tiers) == 0 {
		log.Printf("embedding: no tier configured, entries will be queued for backfill")
	}
	return embedding.NewProvider(cfg.EmbeddingDim, tiers...), nil
}
