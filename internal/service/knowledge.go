package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/pagination"
	"github.com/parchmentlabs/recall/internal/telemetry"
	"github.com/parchmentlabs/recall/internal/vectorstore"
)

// KnowledgeRepositoryInterface defines the repository interface for knowledge persistence
type KnowledgeRepositoryInterface interface {
	Create(ctx context.Context, e *domain.Entry) error
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
	Update(ctx context.Context, e *domain.Entry) error
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
	Delete(ctx context.Context, id string) error
	ListChildren(ctx context.Context, parentID string) ([]*domain.Entry, error)
	FindQAByNormalizedQuestion(ctx context.Context, ownerID, entityID, questionNorm string) (*domain.Entry, error)
	ListByOwnerWithCursor(ctx context.Context, ownerID string, typ domain.KnowledgeType, cursor *pagination.Cursor, limit int) (*EntryPageResult, error)
}

type EntryPageResult struct {
	Items      []*domain.Entry
	NextCursor string
	HasMore    bool
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// VectorStoreInterface is the per-type vector store the services mirror into.
type VectorStoreInterface interface {
	Upsert(ctx context.Context, rec *domain.VectorRecord) error
	Delete(ctx context.Context, entryID string, types ...domain.KnowledgeType) error
	SearchSimilar(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.Match, error)
	ReplaceFileChunks(ctx context.Context, fileID string, chunks []domain.FileChunkRecord) error
	SearchFileChunks(ctx context.Context, query []float32, opts vectorstore.FileSearchOptions) ([]vectorstore.FileChunkMatch, error)
	DeleteFileVectors(ctx context.Context, fileID string) error
}

// Embedder produces query/content vectors. A nil vector means every
// embedding tier failed; callers treat that as degraded, not fatal.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	EmbedTexts(ctx context.Context, texts []string) [][]float32
	Dimension() int
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DefaultQADuplicateThreshold is the similarity above which a new QA pair
// is treated as a duplicate of an existing one.
const DefaultQADuplicateThreshold = 0.85

// KnowledgeService handles the create→embed→persist→mirror lifecycle for
// every knowledge type. The durable record always wins: vector-mirror
// failures are logged and absorbed, and a failed embedding enqueues a
// backfill job instead of failing the create.
type KnowledgeService struct {
	repo        KnowledgeRepositoryInterface
	jobRepo     EmbeddingJobRepositoryInterface
	vectors     VectorStoreInterface
	embedder    Embedder
	uuidGen     UUIDGenerator
	qaThreshold float64
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(
	repo KnowledgeRepositoryInterface,
	jobRepo EmbeddingJobRepositoryInterface,
	vectors VectorStoreInterface,
	embedder Embedder,
) *KnowledgeService {
	return &KnowledgeService{
		repo:        repo,
		jobRepo:     jobRepo,
		vectors:     vectors,
		embedder:    embedder,
		uuidGen:     &DefaultUUIDGenerator{},
		qaThreshold: DefaultQADuplicateThreshold,
	}
}

// WithUUIDGenerator swaps the UUID source (for testing).
func (s *KnowledgeService) WithUUIDGenerator(gen UUIDGenerator) *KnowledgeService {
	s.uuidGen = gen
	return s
}

// WithQADuplicateThreshold overrides the similarity dedup threshold.
func (s *KnowledgeService) WithQADuplicateThreshold(t float64) *KnowledgeService {
	if t > 0 {
		s.qaThreshold = t
	}
	return s
}

// CreateKnowledgeInput represents the input for creating a knowledge entry
type CreateKnowledgeInput struct {
	OwnerID  string
	ParentID string
	Payload  domain.Payload
}

type ListKnowledgeInput struct {
	OwnerID string
	Type    domain.KnowledgeType
	Cursor  string
	Limit   int
}

type ListKnowledgeOutput struct {
	Items   []*domain.Entry
	Cursor  string
	HasMore bool
}

// Create persists a knowledge entry from a typed payload. For QA pairs an
// existing duplicate (exact normalized question, or similarity above the
// threshold) is returned instead of creating a second entry.
func (s *KnowledgeService) Create(ctx context.Context, input CreateKnowledgeInput) (*domain.Entry, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Create", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		Operation: "create",
	})
	defer span.End()

	if input.OwnerID == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if input.Payload == nil {
		return nil, domain.ErrMissingRequiredField
	}
	if err := input.Payload.Validate(); err != nil {
		return nil, err
	}

	// Single-level hierarchy: a child may never itself be a parent.
	if input.ParentID != "" {
		parent, err := s.repo.GetByID(ctx, input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.ParentID != "" {
			return nil, domain.ErrChildOfChild
		}
	}

	embedding := s.embedder.Embed(ctx, input.Payload.EmbeddingText())

	if qa, ok := input.Payload.(domain.QAPayload); ok {
		existing, err := s.findDuplicateQA(ctx, input.OwnerID, qa, embedding)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := time.Now().UTC()
	entry := &domain.Entry{
		ID:        s.uuidGen.NewString(),
		OwnerID:   input.OwnerID,
		Type:      input.Payload.Kind(),
		Title:     input.Payload.EntryTitle(),
		Content:   input.Payload.EntryContent(),
		Embedding: embedding,
		ParentID:  input.ParentID,
		Metadata:  input.Payload.Attributes(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	if embedding == nil {
		s.enqueueBackfill(ctx, entry.ID, now)
	} else {
		s.mirrorEntry(ctx, entry)
	}

	return entry, nil
}

// GetByID retrieves a knowledge entry by ID
func (s *KnowledgeService) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.GetByID", telemetry.SpanAttributes{
		EntryID:   id,
		Operation: "get",
	})
	defer span.End()

	return s.repo.GetByID(ctx, id)
}

// UpdateKnowledgeInput carries the replacement payload for an entry.
type UpdateKnowledgeInput struct {
	EntryID string
	Payload domain.Payload
}

// Update replaces an entry's payload, re-embeds it and refreshes the
// vector mirror. The entry's type cannot change.
func (s *KnowledgeService) Update(ctx context.Context, input UpdateKnowledgeInput) (*domain.Entry, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Update", telemetry.SpanAttributes{
		EntryID:   input.EntryID,
		Operation: "update",
	})
	defer span.End()

	if input.Payload == nil {
		return nil, domain.ErrMissingRequiredField
	}
	if err := input.Payload.Validate(); err != nil {
		return nil, err
	}

	entry, err := s.repo.GetByID(ctx, input.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Type != input.Payload.Kind() {
		return nil, domain.ErrInvalidKnowledgeType
	}

	entry.Title = input.Payload.EntryTitle()
	entry.Content = input.Payload.EntryContent()
	for k, v := range input.Payload.Attributes() {
		if entry.Metadata == nil {
			entry.Metadata = make(map[string]any)
		}
		entry.Metadata[k] = v
	}
	entry.Embedding = s.embedder.Embed(ctx, input.Payload.EmbeddingText())

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}

	if entry.Embedding == nil {
		s.enqueueBackfill(ctx, entry.ID, time.Now().UTC())
	} else {
		s.mirrorEntry(ctx, entry)
	}

	return entry, nil
}

// Delete removes an entry, its vector rows, any linked file vectors, and
// — for a parent — every child the same way. Per-child failures are
// logged and the fan-out continues; the parent is removed last.
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Delete", telemetry.SpanAttributes{
		EntryID:   id,
		Operation: "delete",
	})
	defer span.End()

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	children, err := s.repo.ListChildren(ctx, id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.deleteOne(ctx, child); err != nil {
			log.Printf("knowledge: deleting child %s of %s: %v", child.ID, id, err)
		}
	}

	return s.deleteOne(ctx, entry)
}

func (s *KnowledgeService) deleteOne(ctx context.Context, entry *domain.Entry) error {
	if err := s.vectors.Delete(ctx, entry.ID, entry.Type); err != nil {
		log.Printf("knowledge: deleting vectors for %s: %v", entry.ID, err)
	}
	if fileID := entry.FileID(); fileID != "" {
		if err := s.vectors.DeleteFileVectors(ctx, fileID); err != nil {
			log.Printf("knowledge: deleting file vectors for %s: %v", fileID, err)
		}
	}
	return s.repo.Delete(ctx, entry.ID)
}

// List pages an owner's entries, optionally filtered by type.
func (s *KnowledgeService) List(ctx context.Context, input ListKnowledgeInput) (*ListKnowledgeOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.List", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedID, input.Cursor)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.repo.ListByOwnerWithCursor(ctx, input.OwnerID, input.Type, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListKnowledgeOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// BackfillEmbedding regenerates the embedding for an entry persisted
// without one. Called by the jobs worker; returns an error when every
// tier is still down so the job can be retried.
func (s *KnowledgeService) BackfillEmbedding(ctx context.Context, entryID string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.BackfillEmbedding", telemetry.SpanAttributes{
		EntryID:   entryID,
		Operation: "backfill",
	})
	defer span.End()

	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}

	embedding := s.embedder.Embed(ctx, entry.Title+"\n\n"+entry.Content)
	if embedding == nil {
		return domain.ErrEmbeddingUnavailable
	}

	if err := s.repo.UpdateEmbedding(ctx, entry.ID, embedding); err != nil {
		return err
	}
	entry.Embedding = embedding
	s.mirrorEntry(ctx, entry)
	return nil
}

// findDuplicateQA checks exact normalized-question match first, then
// similarity against existing QA vectors. The similarity check is skipped
// when no embedding is available.
func (s *KnowledgeService) findDuplicateQA(ctx context.Context, ownerID string, qa domain.QAPayload, embedding []float32) (*domain.Entry, error) {
	norm := domain.NormalizeQuestion(qa.Question)
	existing, err := s.repo.FindQAByNormalizedQuestion(ctx, ownerID, qa.EntityID, norm)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if embedding == nil {
		return nil, nil
	}

	matches, err := s.vectors.SearchSimilar(ctx, embedding, vectorstore.SearchOptions{
		OwnerID:  ownerID,
		EntityID: qa.EntityID,
		Types:    []domain.KnowledgeType{domain.KnowledgeTypeQAPair},
		TopK:     1,
		MinScore: s.qaThreshold,
	})
	if err != nil {
		log.Printf("knowledge: qa similarity dedup failed, creating anyway: %v", err)
		return nil, nil
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return s.repo.GetByID(ctx, matches[0].EntryID)
}

// enqueueBackfill records that an entry needs its embedding generated
// later. Enqueue failure is logged, not surfaced: the durable record is
// already saved.
func (s *KnowledgeService) enqueueBackfill(ctx context.Context, entryID string, now time.Time) {
	job := domain.NewEmbeddingJob(s.uuidGen.NewString(), entryID, now)
	if err := s.jobRepo.Create(ctx, job); err != nil {
		log.Printf("knowledge: enqueueing embedding job for %s: %v", entryID, err)
	}
}

// mirrorEntry writes the entry's vector row. Best effort: the mirror can
// be rebuilt, the record cannot.
func (s *KnowledgeService) mirrorEntry(ctx context.Context, entry *domain.Entry) {
	rec := &domain.VectorRecord{
		EntryID:   entry.ID,
		OwnerID:   entry.OwnerID,
		EntityID:  entry.EntityID(),
		Type:      entry.Type,
		Title:     entry.Title,
		Content:   entry.Content,
		Embedding: entry.Embedding,
		Metadata:  entry.Metadata,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
	if err := s.vectors.Upsert(ctx, rec); err != nil {
		log.Printf("knowledge: mirroring entry %s to vector store: %v", entry.ID, err)
	}
}
