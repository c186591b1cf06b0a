package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/service"
)

// MockRetrievalService is a mock implementation of RetrievalService
type MockRetrievalService struct {
	mock.Mock
}

func (m *MockRetrievalService) Retrieve(ctx context.Context, input service.RetrieveInput) []service.Snippet {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]service.Snippet)
}

func doSearch(svc RetrievalService, owner, body string) *httptest.ResponseRecorder {
	h := NewSearchHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewBufferString(body))
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	return rec
}

func TestSearchHandler_Search(t *testing.T) {
	t.Run("returns snippets", func(t *testing.T) {
		svc := new(MockRetrievalService)
		svc.On("Retrieve", mock.Anything, service.RetrieveInput{
			OwnerID:  "owner-1",
			EntityID: "ds-1",
			Query:    "monthly revenue",
			Types:    []domain.KnowledgeType{domain.KnowledgeTypeQAPair},
			FileIDs:  []string{"file-1"},
			TopK:     5,
			MinScore: 0.4,
			Rerank:   true,
		}).Return([]service.Snippet{
			{
				EntryID:    "entry-1",
				Source:     "knowledge",
				Type:       domain.KnowledgeTypeQAPair,
				Title:      "What is revenue?",
				Content:    "Total income from sales.",
				ChunkIndex: -1,
				Score:      0.92,
			},
		})

		body := `{"query":"monthly revenue","entity_id":"ds-1","types":["qa_pair"],"file_ids":["file-1"],"top_k":5,"min_score":0.4,"rerank":true}`
		rec := doSearch(svc, "owner-1", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec.Body)
		results, ok := data["results"].([]any)
		require.True(t, ok)
		require.Len(t, results, 1)
		first := results[0].(map[string]any)
		assert.Equal(t, "entry-1", first["entry_id"])
		assert.Equal(t, "qa_pair", first["type"])
		assert.Equal(t, float64(-1), first["chunk_index"])
		svc.AssertExpectations(t)
	})

	t.Run("empty result set stays an array", func(t *testing.T) {
		svc := new(MockRetrievalService)
		svc.On("Retrieve", mock.Anything, mock.Anything).Return(nil)

		rec := doSearch(svc, "owner-1", `{"query":"nothing matches"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec.Body)
		results, ok := data["results"].([]any)
		require.True(t, ok)
		assert.Empty(t, results)
	})

	t.Run("missing owner header", func(t *testing.T) {
		svc := new(MockRetrievalService)
		rec := doSearch(svc, "", `{"query":"q"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Retrieve")
	})

	t.Run("missing query", func(t *testing.T) {
		svc := new(MockRetrievalService)
		rec := doSearch(svc, "owner-1", `{"top_k":5}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Retrieve")
	})

	t.Run("invalid body", func(t *testing.T) {
		svc := new(MockRetrievalService)
		rec := doSearch(svc, "owner-1", "{not json")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid type filter", func(t *testing.T) {
		svc := new(MockRetrievalService)
		rec := doSearch(svc, "owner-1", `{"query":"q","types":["mystery"]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Retrieve")
	})
}
