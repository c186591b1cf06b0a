package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"strings"

	godocx "github.com/fumiama/go-docx"
	"github.com/parchmentlabs/recall/internal/domain"
)

// extractDOCX tries the library path first; the fallback walks
// word/document.xml directly so it shares no failure domain with the
// primary.
func extractDOCX(ctx context.Context, data []byte) (string, error) {
	text, primaryErr := docxPrimary(data)
	if primaryErr == nil {
		return text, nil
	}
	log.Printf("extract: primary docx reader failed, trying fallback: %v", primaryErr)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, fallbackErr := docxFallback(data)
	if fallbackErr == nil {
		return text, nil
	}
	return "", fmt.Errorf("%w: primary: %v; fallback: %v",
		domain.ErrExtractorUnavailable, primaryErr, fallbackErr)
}

func docxPrimary(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docx reader panic: %v", r)
		}
	}()

	doc, err := godocx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch o := item.(type) {
		case *godocx.Paragraph:
			sb.WriteString(o.String())
			sb.WriteByte('\n')
		case *godocx.Table:
			sb.WriteString(o.String())
			sb.WriteByte('\n')
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("docx contained no extractable text")
	}
	return sb.String(), nil
}

// documentXML mirrors the parts of word/document.xml the fallback needs.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

func docxFallback(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("opening document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading document.xml: %w", err)
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("parsing document.xml: %w", err)
		}

		var sb strings.Builder
		for i, para := range doc.Body.Paragraphs {
			if i > 0 {
				sb.WriteByte('\n')
			}
			for _, run := range para.Runs {
				for _, t := range run.Text {
					sb.WriteString(t.Content)
				}
			}
		}
		if strings.TrimSpace(sb.String()) == "" {
			return "", fmt.Errorf("docx contained no extractable text")
		}
		return sb.String(), nil
	}

	return "", fmt.Errorf("word/document.xml not found in archive")
}
