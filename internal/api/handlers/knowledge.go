package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parchmentlabs/recall/internal/api"
	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/service"
)

type KnowledgeService interface {
	Create(ctx context.Context, input service.CreateKnowledgeInput) (*domain.Entry, error)
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
	Update(ctx context.Context, input service.UpdateKnowledgeInput) (*domain.Entry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, input service.ListKnowledgeInput) (*service.ListKnowledgeOutput, error)
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

// KnowledgePayloadRequest carries exactly one typed payload, selected by
// the type field. File entries are created through ingestion, not here.
type KnowledgePayloadRequest struct {
	Type     string `json:"type"`
	EntityID string `json:"entity_id"`
	ParentID string `json:"parent_id"`

	SemanticModel *struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"semantic_model,omitempty"`

	QAPair *struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"qa_pair,omitempty"`

	Synonym *struct {
		Term     string   `json:"term"`
		Synonyms []string `json:"synonyms"`
	} `json:"synonym,omitempty"`

	BusinessKnowledge *struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"business_knowledge,omitempty"`
}

func (req *KnowledgePayloadRequest) toPayload() (domain.Payload, error) {
	switch domain.KnowledgeType(req.Type) {
	case domain.KnowledgeTypeSemanticModel:
		if req.SemanticModel == nil {
			return nil, domain.ErrMissingRequiredField
		}
		return domain.SemanticModelPayload{
			Name:        req.SemanticModel.Name,
			Description: req.SemanticModel.Description,
			EntityID:    req.EntityID,
		}, nil
	case domain.KnowledgeTypeQAPair:
		if req.QAPair == nil {
			return nil, domain.ErrMissingRequiredField
		}
		return domain.QAPayload{
			Question: req.QAPair.Question,
			Answer:   req.QAPair.Answer,
			EntityID: req.EntityID,
		}, nil
	case domain.KnowledgeTypeSynonym:
		if req.Synonym == nil {
			return nil, domain.ErrMissingRequiredField
		}
		return domain.SynonymPayload{
			Term:     req.Synonym.Term,
			Synonyms: req.Synonym.Synonyms,
			EntityID: req.EntityID,
		}, nil
	case domain.KnowledgeTypeBusinessKnowledge:
		if req.BusinessKnowledge == nil {
			return nil, domain.ErrMissingRequiredField
		}
		return domain.BusinessPayload{
			Title:    req.BusinessKnowledge.Title,
			Text:     req.BusinessKnowledge.Text,
			EntityID: req.EntityID,
		}, nil
	}
	return nil, domain.ErrInvalidKnowledgeType
}

type EntryResponse struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id"`
	Type         string         `json:"type"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	ParentID     string         `json:"parent_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	HasEmbedding bool           `json:"has_embedding"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

func entryToResponse(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:           e.ID,
		OwnerID:      e.OwnerID,
		Type:         string(e.Type),
		Title:        e.Title,
		Content:      e.Content,
		ParentID:     e.ParentID,
		Metadata:     e.Metadata,
		HasEmbedding: len(e.Embedding) > 0,
		CreatedAt:    e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    e.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func ownerID(r *http.Request) string {
	return r.Header.Get("X-Owner-ID")
}

func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		api.Error(w, http.StatusBadRequest, "X-Owner-ID header is required")
		return
	}

	var req KnowledgePayloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload, err := req.toPayload()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	entry, err := h.svc.Create(r.Context(), service.CreateKnowledgeInput{
		OwnerID:  owner,
		ParentID: req.ParentID,
		Payload:  payload,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, entryToResponse(entry))
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, entryToResponse(entry))
}

func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req KnowledgePayloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload, err := req.toPayload()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	entry, err := h.svc.Update(r.Context(), service.UpdateKnowledgeInput{
		EntryID: id,
		Payload: payload,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, entryToResponse(entry))
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"deleted": id})
}

type ListEntriesResponse struct {
	Items   []*EntryResponse `json:"items"`
	Cursor  string           `json:"cursor,omitempty"`
	HasMore bool             `json:"has_more"`
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		api.Error(w, http.StatusBadRequest, "X-Owner-ID header is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	typ := domain.KnowledgeType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		api.Error(w, http.StatusBadRequest, "invalid knowledge type")
		return
	}

	out, err := h.svc.List(r.Context(), service.ListKnowledgeInput{
		OwnerID: owner,
		Type:    typ,
		Cursor:  r.URL.Query().Get("cursor"),
		Limit:   limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*EntryResponse, 0, len(out.Items))
	for _, e := range out.Items {
		items = append(items, entryToResponse(e))
	}
	api.Success(w, http.StatusOK, ListEntriesResponse{
		Items:   items,
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	})
}
