package domain

import (
	"fmt"
	"strings"
)

// Payload is the closed union of typed knowledge payloads. Every knowledge
// type carries its own variant; creation flows dispatch through this
// interface instead of switching on type strings.
type Payload interface {
	Kind() KnowledgeType
	EntryTitle() string
	EntryContent() string
	// EmbeddingText is the text the embedding provider vectorizes. It may
	// differ from the stored content (e.g. QA pairs embed question and
	// answer together).
	EmbeddingText() string
	// Attributes returns type-specific metadata merged into the entry's
	// metadata map.
	Attributes() map[string]any
	Validate() error
}

// SemanticModelPayload describes a data-source schema element.
type SemanticModelPayload struct {
	Name        string
	Description string
	EntityID    string
}

func (p SemanticModelPayload) Kind() KnowledgeType { return KnowledgeTypeSemanticModel }
func (p SemanticModelPayload) EntryTitle() string  { return p.Name }
func (p SemanticModelPayload) EntryContent() string {
	return p.Description
}
func (p SemanticModelPayload) EmbeddingText() string {
	return joinNonEmpty(p.Name, p.Description)
}
func (p SemanticModelPayload) Attributes() map[string]any {
	return entityAttributes(p.EntityID, nil)
}
func (p SemanticModelPayload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: semantic model name", ErrMissingRequiredField)
	}
	if strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("%w: semantic model description", ErrMissingRequiredField)
	}
	return nil
}

// QAPayload is a curated question/answer pair.
type QAPayload struct {
	Question string
	Answer   string
	EntityID string
}

func (p QAPayload) Kind() KnowledgeType  { return KnowledgeTypeQAPair }
func (p QAPayload) EntryTitle() string   { return p.Question }
func (p QAPayload) EntryContent() string { return p.Answer }
func (p QAPayload) EmbeddingText() string {
	return joinNonEmpty("Question: "+p.Question, "Answer: "+p.Answer)
}
func (p QAPayload) Attributes() map[string]any {
	return entityAttributes(p.EntityID, map[string]any{
		MetaQuestionNorm: NormalizeQuestion(p.Question),
	})
}
func (p QAPayload) Validate() error {
	if strings.TrimSpace(p.Question) == "" {
		return fmt.Errorf("%w: question", ErrMissingRequiredField)
	}
	if strings.TrimSpace(p.Answer) == "" {
		return fmt.Errorf("%w: answer", ErrMissingRequiredField)
	}
	return nil
}

// SynonymPayload maps a canonical term to its aliases.
type SynonymPayload struct {
	Term     string
	Synonyms []string
	EntityID string
}

func (p SynonymPayload) Kind() KnowledgeType { return KnowledgeTypeSynonym }
func (p SynonymPayload) EntryTitle() string  { return p.Term }
func (p SynonymPayload) EntryContent() string {
	return strings.Join(p.Synonyms, ", ")
}
func (p SynonymPayload) EmbeddingText() string {
	return joinNonEmpty(p.Term, strings.Join(p.Synonyms, ", "))
}
func (p SynonymPayload) Attributes() map[string]any {
	return entityAttributes(p.EntityID, nil)
}
func (p SynonymPayload) Validate() error {
	if strings.TrimSpace(p.Term) == "" {
		return fmt.Errorf("%w: term", ErrMissingRequiredField)
	}
	if len(p.Synonyms) == 0 {
		return fmt.Errorf("%w: synonyms", ErrMissingRequiredField)
	}
	return nil
}

// BusinessPayload is free-text business knowledge.
type BusinessPayload struct {
	Title    string
	Text     string
	EntityID string
}

func (p BusinessPayload) Kind() KnowledgeType  { return KnowledgeTypeBusinessKnowledge }
func (p BusinessPayload) EntryTitle() string   { return p.Title }
func (p BusinessPayload) EntryContent() string { return p.Text }
func (p BusinessPayload) EmbeddingText() string {
	return joinNonEmpty(p.Title, p.Text)
}
func (p BusinessPayload) Attributes() map[string]any {
	return entityAttributes(p.EntityID, nil)
}
func (p BusinessPayload) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title", ErrMissingRequiredField)
	}
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("%w: text", ErrMissingRequiredField)
	}
	return nil
}

// FilePayload records an ingested document. The chunk vectors live in
// file_vectors; the entry itself carries a summary for exact-match paths.
type FilePayload struct {
	Filename   string
	Summary    string
	FileID     string
	ChunkCount int
	DocClass   string
	EntityID   string
}

func (p FilePayload) Kind() KnowledgeType { return KnowledgeTypeFile }
func (p FilePayload) EntryTitle() string  { return p.Filename }
func (p FilePayload) EntryContent() string {
	return p.Summary
}
func (p FilePayload) EmbeddingText() string {
	return joinNonEmpty("File: "+p.Filename, p.Summary)
}
func (p FilePayload) Attributes() map[string]any {
	attrs := map[string]any{
		MetaFileID:     p.FileID,
		MetaFilename:   p.Filename,
		MetaChunkCount: p.ChunkCount,
	}
	if p.DocClass != "" {
		attrs[MetaDocClass] = p.DocClass
	}
	return entityAttributes(p.EntityID, attrs)
}
func (p FilePayload) Validate() error {
	if strings.TrimSpace(p.Filename) == "" {
		return fmt.Errorf("%w: filename", ErrMissingRequiredField)
	}
	if strings.TrimSpace(p.FileID) == "" {
		return fmt.Errorf("%w: file id", ErrMissingRequiredField)
	}
	return nil
}

// NormalizeQuestion canonicalizes question text for exact-match dedup:
// lowercased, whitespace-collapsed, trailing question marks removed.
func NormalizeQuestion(q string) string {
	s := strings.Join(strings.Fields(q), " ")
	s = strings.ToLower(s)
	s = strings.TrimRight(s, "?？ ")
	return s
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func entityAttributes(entityID string, extra map[string]any) map[string]any {
	attrs := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		attrs[k] = v
	}
	if entityID != "" {
		attrs[MetaEntityID] = entityID
	}
	return attrs
}
