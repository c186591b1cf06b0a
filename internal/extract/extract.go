// Package extract converts binary documents into sanitized plain text.
// Each format has a primary and an independent fallback path; extraction
// only fails when both do.
package extract

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/textproc"
)

// Document is the result of extracting one file.
type Document struct {
	Text     string
	Pages    int
	Class    textproc.DocClass
	Metadata map[string]any
}

// Extract converts the given file bytes into cleaned plain text.
// The post-processing order is fixed: sanitize, classify, clean.
// Classification is advisory and never blocks extraction.
func Extract(ctx context.Context, filename string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrUnsupportedFormat)
	}

	var (
		raw   string
		pages int
		err   error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		raw, pages, err = extractPDF(ctx, data)
	case ".docx":
		raw, err = extractDOCX(ctx, data)
	case ".txt", ".md":
		raw = string(data)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	text := textproc.Sanitize(raw)
	class := textproc.Classify(text)
	if class != textproc.DocClassText {
		log.Printf("extract: %s classified as %s (low alphanumeric density)", filename, class)
	}
	text = textproc.Clean(text)

	return &Document{
		Text:  text,
		Pages: pages,
		Class: class,
		Metadata: map[string]any{
			domain.MetaFilename: filepath.Base(filename),
			domain.MetaDocClass: string(class),
			"pages":             pages,
		},
	}, nil
}
