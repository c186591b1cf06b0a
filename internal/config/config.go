package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	// Embedding dimension D: every vector table enforces it at write time.
	EmbeddingDim int `envconfig:"EMBEDDING_DIM" default:"768"`

	// Retrieval
	MinScore             float64 `envconfig:"MIN_SCORE" default:"0.3"`
	QADuplicateThreshold float64 `envconfig:"QA_DUPLICATE_THRESHOLD" default:"0.85"`

	// Rerank
	RerankEnabled          bool    `envconfig:"RERANK_ENABLED" default:"true"`
	RerankMode             string  `envconfig:"RERANK_MODE" default:"cross_encoder"`
	RerankSimilarityWeight float64 `envconfig:"RERANK_SIMILARITY_WEIGHT" default:"0.7"`
	RerankTypeWeight       float64 `envconfig:"RERANK_TYPE_WEIGHT" default:"0.2"`
	RerankPositionWeight   float64 `envconfig:"RERANK_POSITION_WEIGHT" default:"0.1"`

	// Embedding tiers, tried in order: local, remote, hosted.
	LocalEmbedURL    string `envconfig:"LOCAL_EMBED_URL"`
	LocalEmbedModel  string `envconfig:"LOCAL_EMBED_MODEL" default:"nomic-embed-text"`
	LocalScoreModel  string `envconfig:"LOCAL_SCORE_MODEL" default:"phi3.5"`
	RemoteEmbedURL   string `envconfig:"REMOTE_EMBED_URL"`
	RemoteEmbedKey   string `envconfig:"REMOTE_EMBED_API_KEY"`
	RemoteEmbedModel string `envconfig:"REMOTE_EMBED_MODEL"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`

	// Chunking
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`
	MaxChunks    int `envconfig:"MAX_CHUNKS" default:"40"`

	// Backfill worker
	JobPollSeconds int `envconfig:"JOB_POLL_SECONDS" default:"30"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"recall-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentrySampleRate  float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RECALL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasLocalEmbed() bool {
	return c.LocalEmbedURL != ""
}

func (c *Config) HasRemoteEmbed() bool {
	return c.RemoteEmbedURL != ""
}
