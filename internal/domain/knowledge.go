package domain

import (
	"fmt"
	"time"
)

// KnowledgeType identifies one of the closed set of knowledge kinds the
// engine manages. Each type owns its own vector table so similarity search
// never crosses type boundaries.
type KnowledgeType string

const (
	KnowledgeTypeSemanticModel     KnowledgeType = "semantic_model"
	KnowledgeTypeQAPair            KnowledgeType = "qa_pair"
	KnowledgeTypeSynonym           KnowledgeType = "synonym"
	KnowledgeTypeBusinessKnowledge KnowledgeType = "business_knowledge"
	KnowledgeTypeFile              KnowledgeType = "file"
)

// AllKnowledgeTypes lists every valid knowledge type, in search order.
func AllKnowledgeTypes() []KnowledgeType {
	return []KnowledgeType{
		KnowledgeTypeSemanticModel,
		KnowledgeTypeQAPair,
		KnowledgeTypeSynonym,
		KnowledgeTypeBusinessKnowledge,
		KnowledgeTypeFile,
	}
}

// VectorTable returns the vector table owned by this knowledge type.
// This mapping is the single place type names meet table names.
func (t KnowledgeType) VectorTable() (string, error) {
	switch t {
	case KnowledgeTypeSemanticModel:
		return "semantic_model_vectors", nil
	case KnowledgeTypeQAPair:
		return "qa_pair_vectors", nil
	case KnowledgeTypeSynonym:
		return "synonym_vectors", nil
	case KnowledgeTypeBusinessKnowledge:
		return "business_knowledge_vectors", nil
	case KnowledgeTypeFile:
		return "file_vectors", nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKnowledgeType, string(t))
}

// Valid reports whether t is a member of the closed type set.
func (t KnowledgeType) Valid() bool {
	_, err := t.VectorTable()
	return err == nil
}

// Metadata keys shared across components.
const (
	MetaEntityID     = "entity_id"
	MetaFileID       = "file_id"
	MetaQuestionNorm = "question_norm"
	MetaFilename     = "filename"
	MetaChunkCount   = "chunk_count"
	MetaDocClass     = "doc_class"
)

// Entry is the durable knowledge record. The embedding is best-effort:
// a nil Embedding is a legitimate persisted state, and such entries stay
// reachable through exact-match paths.
type Entry struct {
	ID        string
	OwnerID   string
	Type      KnowledgeType
	Title     string
	Content   string
	Embedding []float32
	ParentID  string
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntityID returns the data-source isolation key, if any.
func (e *Entry) EntityID() string {
	if e.Metadata == nil {
		return ""
	}
	v, _ := e.Metadata[MetaEntityID].(string)
	return v
}

// FileID returns the linked file identifier, if any.
func (e *Entry) FileID() string {
	if e.Metadata == nil {
		return ""
	}
	v, _ := e.Metadata[MetaFileID].(string)
	return v
}

// ValidateEntry checks structural invariants of an Entry.
func ValidateEntry(e *Entry) error {
	if e == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if e.ID == "" {
		return fmt.Errorf("entry ID is required")
	}
	if e.OwnerID == "" {
		return fmt.Errorf("entry OwnerID is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("entry Type is invalid: %s", e.Type)
	}
	if e.Title == "" {
		return fmt.Errorf("entry Title is required")
	}
	return nil
}
