package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/pagination"
	"github.com/parchmentlabs/recall/internal/vectorstore"
)

// MockKnowledgeRepository is a mock implementation of KnowledgeRepositoryInterface
type MockKnowledgeRepository struct {
	mock.Mock
}

func (m *MockKnowledgeRepository) Create(ctx context.Context, e *domain.Entry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entry), args.Error(1)
}

func (m *MockKnowledgeRepository) Update(ctx context.Context, e *domain.Entry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	args := m.Called(ctx, id, embedding)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) ListChildren(ctx context.Context, parentID string) ([]*domain.Entry, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Entry), args.Error(1)
}

func (m *MockKnowledgeRepository) FindQAByNormalizedQuestion(ctx context.Context, ownerID, entityID, questionNorm string) (*domain.Entry, error) {
	args := m.Called(ctx, ownerID, entityID, questionNorm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entry), args.Error(1)
}

func (m *MockKnowledgeRepository) ListByOwnerWithCursor(ctx context.Context, ownerID string, typ domain.KnowledgeType, cursor *pagination.Cursor, limit int) (*EntryPageResult, error) {
	args := m.Called(ctx, ownerID, typ, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EntryPageResult), args.Error(1)
}

// MockEmbeddingJobRepository is a mock implementation of EmbeddingJobRepositoryInterface
type MockEmbeddingJobRepository struct {
	mock.Mock
}

func (m *MockEmbeddingJobRepository) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockVectorStore is a mock implementation of VectorStoreInterface
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, rec *domain.VectorRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockVectorStore) Delete(ctx context.Context, entryID string, types ...domain.KnowledgeType) error {
	args := m.Called(ctx, entryID, types)
	return args.Error(0)
}

func (m *MockVectorStore) SearchSimilar(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.Match, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.Match), args.Error(1)
}

func (m *MockVectorStore) ReplaceFileChunks(ctx context.Context, fileID string, chunks []domain.FileChunkRecord) error {
	args := m.Called(ctx, fileID, chunks)
	return args.Error(0)
}

func (m *MockVectorStore) SearchFileChunks(ctx context.Context, query []float32, opts vectorstore.FileSearchOptions) ([]vectorstore.FileChunkMatch, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.FileChunkMatch), args.Error(1)
}

func (m *MockVectorStore) DeleteFileVectors(ctx context.Context, fileID string) error {
	args := m.Called(ctx, fileID)
	return args.Error(0)
}

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) []float32 {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]float32)
}

func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) [][]float32 {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([][]float32)
}

func (m *MockEmbedder) Dimension() int {
	args := m.Called()
	return args.Int(0)
}

// MockUUIDGenerator returns a fixed sequence of ids
type MockUUIDGenerator struct {
	ids []string
	pos int
}

func NewMockUUIDGenerator(ids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{ids: ids}
}

func (g *MockUUIDGenerator) NewString() string {
	if g.pos >= len(g.ids) {
		return "uuid-overflow"
	}
	id := g.ids[g.pos]
	g.pos++
	return id
}

// MockScorer is a mock implementation of Scorer
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, query, text string) (float64, error) {
	args := m.Called(ctx, query, text)
	return args.Get(0).(float64), args.Error(1)
}

// MockObjectStorage is a mock implementation of ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func testVector(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}
