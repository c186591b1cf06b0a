package service

import (
	"context"
	"fmt"
	"log"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/extract"
	"github.com/parchmentlabs/recall/internal/telemetry"
	"github.com/parchmentlabs/recall/internal/textproc"
)

const summaryMaxChars = 500

// ObjectStorage keeps the original document bytes. Optional: a nil
// storage skips the step.
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// IngestService turns uploaded documents into searchable file chunks
// plus one file-type knowledge entry describing the document.
type IngestService struct {
	embedder  Embedder
	vectors   VectorStoreInterface
	knowledge *KnowledgeService
	objects   ObjectStorage
	chunkCfg  textproc.ChunkConfig
	uuidGen   UUIDGenerator
}

func NewIngestService(
	embedder Embedder,
	vectors VectorStoreInterface,
	knowledge *KnowledgeService,
	objects ObjectStorage,
) *IngestService {
	return &IngestService{
		embedder:  embedder,
		vectors:   vectors,
		knowledge: knowledge,
		objects:   objects,
		chunkCfg:  textproc.DefaultChunkConfig(),
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// WithChunkConfig overrides the chunking parameters.
func (s *IngestService) WithChunkConfig(cfg textproc.ChunkConfig) *IngestService {
	s.chunkCfg = cfg
	return s
}

// IngestInput is one document to ingest.
type IngestInput struct {
	OwnerID  string
	EntityID string
	Filename string
	Data     []byte
	// FileID is assigned when empty; pass an existing id to re-ingest.
	FileID string
}

// IngestResult reports what was extracted and stored.
type IngestResult struct {
	FileID       string
	EntryID      string
	ChunkCount   int
	StoredChunks int
	Pages        int
	Class        textproc.DocClass
}

// Ingest extracts, chunks, embeds and stores a document. Chunks whose
// embedding failed are skipped and logged; the rest are stored. The
// file-type entry is created even when every chunk embedding failed, so
// the document stays visible and re-ingestable.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		EntityID:  input.EntityID,
		Operation: "ingest",
	})
	defer span.End()

	if input.OwnerID == "" || input.Filename == "" {
		return nil, domain.ErrMissingRequiredField
	}

	doc, err := extract.Extract(ctx, input.Filename, input.Data)
	if err != nil {
		return nil, err
	}

	chunks := textproc.Chunk(doc.Text, s.chunkCfg)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document produced no chunks", domain.ErrMissingRequiredField)
	}

	fileID := input.FileID
	if fileID == "" {
		fileID = s.uuidGen.NewString()
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs := s.embedder.EmbedTexts(ctx, texts)

	now := time.Now().UTC()
	records := make([]domain.FileChunkRecord, 0, len(chunks))
	for i, c := range chunks {
		if vecs[i] == nil {
			log.Printf("ingest: chunk %d of %s has no embedding, skipping", i, input.Filename)
			continue
		}
		records = append(records, domain.FileChunkRecord{
			ID:         s.uuidGen.NewString(),
			OwnerID:    input.OwnerID,
			EntityID:   input.EntityID,
			FileID:     fileID,
			ChunkIndex: c.Metadata.ChunkIndex,
			Content:    c.Text,
			Embedding:  vecs[i],
			Metadata: map[string]any{
				domain.MetaFilename: input.Filename,
				"page_estimate":     c.Metadata.PageEstimate,
			},
			CreatedAt: now,
		})
	}

	if len(records) > 0 {
		if err := s.vectors.ReplaceFileChunks(ctx, fileID, records); err != nil {
			return nil, fmt.Errorf("storing file chunks: %w", err)
		}
	} else {
		log.Printf("ingest: no chunk of %s could be embedded, storing entry only", input.Filename)
	}

	entry, err := s.knowledge.Create(ctx, CreateKnowledgeInput{
		OwnerID: input.OwnerID,
		Payload: domain.FilePayload{
			Filename:   filepath.Base(input.Filename),
			Summary:    makeSummary(doc.Text),
			FileID:     fileID,
			ChunkCount: len(records),
			DocClass:   string(doc.Class),
			EntityID:   input.EntityID,
		},
	})
	if err != nil {
		return nil, err
	}

	if s.objects != nil {
		key := "originals/" + fileID + "/" + filepath.Base(input.Filename)
		if err := s.objects.PutObject(ctx, key, input.Data, contentTypeFor(input.Filename)); err != nil {
			log.Printf("ingest: storing original %s: %v", key, err)
		}
	}

	return &IngestResult{
		FileID:       fileID,
		EntryID:      entry.ID,
		ChunkCount:   len(chunks),
		StoredChunks: len(records),
		Pages:        doc.Pages,
		Class:        doc.Class,
	}, nil
}

func makeSummary(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	if len(clean) <= summaryMaxChars {
		return clean
	}
	// Cut on a rune boundary so the summary stays valid UTF-8.
	cut := summaryMaxChars - 3
	for cut > 0 && !utf8.RuneStart(clean[cut]) {
		cut--
	}
	return clean[:cut] + "..."
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
