package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/parchmentlabs/recall/internal/api"
	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/service"
)

type RetrievalService interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) []service.Snippet
}

type SearchHandler struct {
	svc RetrievalService
}

func NewSearchHandler(svc RetrievalService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query    string   `json:"query"`
	EntityID string   `json:"entity_id"`
	Types    []string `json:"types"`
	FileIDs  []string `json:"file_ids"`
	TopK     int      `json:"top_k"`
	MinScore float64  `json:"min_score"`
	Rerank   bool     `json:"rerank"`
}

type SnippetResponse struct {
	EntryID    string  `json:"entry_id,omitempty"`
	Source     string  `json:"source"`
	Type       string  `json:"type"`
	Title      string  `json:"title,omitempty"`
	Content    string  `json:"content"`
	FileID     string  `json:"file_id,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		api.Error(w, http.StatusBadRequest, "X-Owner-ID header is required")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	types := make([]domain.KnowledgeType, 0, len(req.Types))
	for _, t := range req.Types {
		typ := domain.KnowledgeType(t)
		if !typ.Valid() {
			api.Error(w, http.StatusBadRequest, "invalid knowledge type: "+t)
			return
		}
		types = append(types, typ)
	}

	snippets := h.svc.Retrieve(r.Context(), service.RetrieveInput{
		OwnerID:  owner,
		EntityID: req.EntityID,
		Query:    req.Query,
		Types:    types,
		FileIDs:  req.FileIDs,
		TopK:     req.TopK,
		MinScore: req.MinScore,
		Rerank:   req.Rerank,
	})

	results := make([]SnippetResponse, 0, len(snippets))
	for _, s := range snippets {
		results = append(results, SnippetResponse{
			EntryID:    s.EntryID,
			Source:     s.Source,
			Type:       string(s.Type),
			Title:      s.Title,
			Content:    s.Content,
			FileID:     s.FileID,
			ChunkIndex: s.ChunkIndex,
			Score:      s.Score,
		})
	}

	api.Success(w, http.StatusOK, map[string]any{"results": results})
}
