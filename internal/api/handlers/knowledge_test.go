package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/service"
)

// MockKnowledgeService is a mock implementation of KnowledgeService
type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) Create(ctx context.Context, input service.CreateKnowledgeInput) (*domain.Entry, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entry), args.Error(1)
}

func (m *MockKnowledgeService) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entry), args.Error(1)
}

func (m *MockKnowledgeService) Update(ctx context.Context, input service.UpdateKnowledgeInput) (*domain.Entry, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Entry), args.Error(1)
}

func (m *MockKnowledgeService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockKnowledgeService) List(ctx context.Context, input service.ListKnowledgeInput) (*service.ListKnowledgeOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListKnowledgeOutput), args.Error(1)
}

func newKnowledgeRouter(svc KnowledgeService) http.Handler {
	h := NewKnowledgeHandler(svc)
	r := chi.NewRouter()
	r.Post("/v1/knowledge", h.Create)
	r.Get("/v1/knowledge", h.List)
	r.Get("/v1/knowledge/{id}", h.Get)
	r.Put("/v1/knowledge/{id}", h.Update)
	r.Delete("/v1/knowledge/{id}", h.Delete)
	return r
}

func testEntry() *domain.Entry {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Entry{
		ID:        "entry-1",
		OwnerID:   "owner-1",
		Type:      domain.KnowledgeTypeQAPair,
		Title:     "What is revenue?",
		Content:   "Total income from sales.",
		Embedding: []float32{0.1, 0.2},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func decodeData(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &envelope))
	return envelope.Data
}

func TestKnowledgeHandler_Create(t *testing.T) {
	t.Run("creates qa pair", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		svc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateKnowledgeInput) bool {
			payload, ok := input.Payload.(domain.QAPayload)
			return ok && input.OwnerID == "owner-1" &&
				payload.Question == "What is revenue?" &&
				payload.EntityID == "ds-1"
		})).Return(testEntry(), nil)

		body := `{"type":"qa_pair","entity_id":"ds-1","qa_pair":{"question":"What is revenue?","answer":"Total income from sales."}}`
		req := httptest.NewRequest(http.MethodPost, "/v1/knowledge", bytes.NewBufferString(body))
		req.Header.Set("X-Owner-ID", "owner-1")
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		data := decodeData(t, rec.Body)
		assert.Equal(t, "entry-1", data["id"])
		assert.Equal(t, true, data["has_embedding"])
		assert.Equal(t, "2026-03-01T12:00:00Z", data["created_at"])
		svc.AssertExpectations(t)
	})

	t.Run("missing owner header", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		req := httptest.NewRequest(http.MethodPost, "/v1/knowledge", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Create")
	})

	t.Run("invalid body", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		req := httptest.NewRequest(http.MethodPost, "/v1/knowledge", bytes.NewBufferString("{not json"))
		req.Header.Set("X-Owner-ID", "owner-1")
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("type without matching payload", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		body := `{"type":"qa_pair","synonym":{"term":"rev","synonyms":["revenue"]}}`
		req := httptest.NewRequest(http.MethodPost, "/v1/knowledge", bytes.NewBufferString(body))
		req.Header.Set("X-Owner-ID", "owner-1")
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Create")
	})

	t.Run("unknown type", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		req := httptest.NewRequest(http.MethodPost, "/v1/knowledge", bytes.NewBufferString(`{"type":"mystery"}`))
		req.Header.Set("X-Owner-ID", "owner-1")
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("file type is not creatable here", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		req := httptest.NewRequest(http.MethodPost, "/v1/knowledge", bytes.NewBufferString(`{"type":"file"}`))
		req.Header.Set("X-Owner-ID", "owner-1")
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Create")
	})

	t.Run("service error maps to status", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		svc.On("Create", mock.Anything, mock.Anything).Return(nil, domain.ErrEntryNotFound)

		body := `{"type":"synonym","synonym":{"term":"rev","synonyms":["revenue"]}}`
		req := httptest.NewRequest(http.MethodPost, "/v1/knowledge", bytes.NewBufferString(body))
		req.Header.Set("X-Owner-ID", "owner-1")
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestKnowledgeHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		svc.On("GetByID", mock.Anything, "entry-1").Return(testEntry(), nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/knowledge/entry-1", nil)
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec.Body)
		assert.Equal(t, "qa_pair", data["type"])
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		svc.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrEntryNotFound)

		req := httptest.NewRequest(http.MethodGet, "/v1/knowledge/missing", nil)
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestKnowledgeHandler_Update(t *testing.T) {
	svc := new(MockKnowledgeService)
	svc.On("Update", mock.Anything, mock.MatchedBy(func(input service.UpdateKnowledgeInput) bool {
		return input.EntryID == "entry-1"
	})).Return(testEntry(), nil)

	body := `{"type":"qa_pair","qa_pair":{"question":"What is revenue?","answer":"Updated."}}`
	req := httptest.NewRequest(http.MethodPut, "/v1/knowledge/entry-1", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	newKnowledgeRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestKnowledgeHandler_Delete(t *testing.T) {
	svc := new(MockKnowledgeService)
	svc.On("Delete", mock.Anything, "entry-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/knowledge/entry-1", nil)
	rec := httptest.NewRecorder()
	newKnowledgeRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec.Body)
	assert.Equal(t, "entry-1", data["deleted"])
}

func TestKnowledgeHandler_List(t *testing.T) {
	t.Run("passes filters through", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		svc.On("List", mock.Anything, service.ListKnowledgeInput{
			OwnerID: "owner-1",
			Type:    domain.KnowledgeTypeSynonym,
			Cursor:  "abc",
			Limit:   5,
		}).Return(&service.ListKnowledgeOutput{
			Items:   []*domain.Entry{testEntry()},
			Cursor:  "next",
			HasMore: true,
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/knowledge?type=synonym&cursor=abc&limit=5", nil)
		req.Header.Set("X-Owner-ID", "owner-1")
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec.Body)
		assert.Equal(t, "next", data["cursor"])
		assert.Equal(t, true, data["has_more"])
		assert.Len(t, data["items"], 1)
		svc.AssertExpectations(t)
	})

	t.Run("invalid type filter", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		req := httptest.NewRequest(http.MethodGet, "/v1/knowledge?type=mystery", nil)
		req.Header.Set("X-Owner-ID", "owner-1")
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "List")
	})

	t.Run("missing owner header", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		req := httptest.NewRequest(http.MethodGet, "/v1/knowledge", nil)
		rec := httptest.NewRecorder()
		newKnowledgeRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
