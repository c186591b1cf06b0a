package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/internal/domain"
	"github.com/parchmentlabs/recall/internal/textproc"
)

func TestExtract_PlainText(t *testing.T) {
	data := []byte("The quarterly report covers revenue.\n\n\n\nIt also covers costs.")

	doc, err := Extract(context.Background(), "report.txt", data)
	require.NoError(t, err)

	assert.Equal(t, "The quarterly report covers revenue.\n\nIt also covers costs.", doc.Text)
	assert.Equal(t, 0, doc.Pages)
	assert.Equal(t, textproc.DocClassText, doc.Class)
	assert.Equal(t, "report.txt", doc.Metadata[domain.MetaFilename])
	assert.Equal(t, string(textproc.DocClassText), doc.Metadata[domain.MetaDocClass])
}

func TestExtract_Markdown(t *testing.T) {
	doc, err := Extract(context.Background(), "notes.md", []byte("# Heading\n\nBody text."))
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Body text.")
}

func TestExtract_SanitizesControlCharacters(t *testing.T) {
	doc, err := Extract(context.Background(), "raw.txt", []byte("clean\x00 text\x01 here"))
	require.NoError(t, err)
	assert.Equal(t, "clean text here", doc.Text)
}

func TestExtract_UsesBaseFilename(t *testing.T) {
	doc, err := Extract(context.Background(), "/tmp/uploads/report.txt", []byte("some text"))
	require.NoError(t, err)
	assert.Equal(t, "report.txt", doc.Metadata[domain.MetaFilename])
}

func TestExtract_EmptyData(t *testing.T) {
	_, err := Extract(context.Background(), "report.txt", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	_, err := Extract(context.Background(), "binary.exe", []byte("MZ"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), ".exe")
}

func TestExtract_ExtensionCaseInsensitive(t *testing.T) {
	doc, err := Extract(context.Background(), "REPORT.TXT", []byte("some text"))
	require.NoError(t, err)
	assert.Equal(t, "some text", doc.Text)
}

func TestExtract_MalformedPDF(t *testing.T) {
	_, err := Extract(context.Background(), "broken.pdf", []byte("not a pdf at all"))
	assert.Error(t, err)
}

func TestExtract_MalformedDOCX(t *testing.T) {
	_, err := Extract(context.Background(), "broken.docx", []byte("not a zip archive"))
	assert.Error(t, err)
}
