package extract

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	ltpdf "github.com/ledongthuc/pdf"
	"github.com/parchmentlabs/recall/internal/domain"
	rscpdf "rsc.io/pdf"
)

// extractPDF tries the primary reader first and falls back to the
// independent second implementation. Both readers panic on some
// malformed inputs, so each path converts panics to errors.
func extractPDF(ctx context.Context, data []byte) (string, int, error) {
	text, pages, primaryErr := pdfPrimary(data)
	if primaryErr == nil {
		return text, pages, nil
	}
	log.Printf("extract: primary pdf reader failed, trying fallback: %v", primaryErr)

	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	text, pages, fallbackErr := pdfFallback(data)
	if fallbackErr == nil {
		return text, pages, nil
	}
	return "", 0, fmt.Errorf("%w: primary: %v; fallback: %v",
		domain.ErrExtractorUnavailable, primaryErr, fallbackErr)
}

func pdfPrimary(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := ltpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	pages = reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			// One unreadable page must not sink the document.
			log.Printf("extract: pdf page %d unreadable: %v", i, pageErr)
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", pages, fmt.Errorf("pdf contained no extractable text")
	}
	return sb.String(), pages, nil
}

func pdfFallback(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf fallback panic: %v", r)
		}
	}()

	reader, err := rscpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	pages = reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		var prevY float64
		for _, t := range content.Text {
			if prevY != 0 && t.Y != prevY {
				sb.WriteByte('\n')
			}
			sb.WriteString(t.S)
			prevY = t.Y
		}
		sb.WriteString("\n\n")
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", pages, fmt.Errorf("pdf contained no extractable text")
	}
	return sb.String(), pages, nil
}
