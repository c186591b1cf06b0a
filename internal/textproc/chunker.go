package textproc

import (
	"github.com/parchmentlabs/recall/internal/domain"
)

// ChunkConfig controls window sizing for document chunking.
type ChunkConfig struct {
	Size      int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:      1200,
		Overlap:   200,
		MaxChunks: 40,
	}
}

// boundaryFraction is the share of the window in which a preferred
// separator may move the cut backward. Separators earlier than the
// trailing 70% would produce pathologically small chunks, so they are
// ignored and the window falls through to the next separator class.
const boundaryFraction = 0.7

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// Chunk splits text into overlapping windows of at most cfg.Size runes,
// preferring clean breaks: paragraph boundary, sentence-ending
// punctuation, newline, whitespace, then a hard cut. Window N+1 starts
// at end(N) − cfg.Overlap. cfg.MaxChunks is a hard ceiling; when it is
// reached chunking stops and the partial result is returned. Every
// chunk's text is sanitized again before return even though the input
// already was.
func Chunk(text string, cfg ChunkConfig) []domain.DocumentChunk {
	if cfg.Size <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []domain.DocumentChunk
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustBoundary(runes, start, end)
		}
		if end <= start {
			break
		}

		piece := Sanitize(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, domain.DocumentChunk{
				Text:        piece,
				StartOffset: start,
				EndOffset:   end,
				Metadata:    domain.ChunkMetadata{ChunkIndex: len(chunks)},
			})
		}

		if end >= len(runes) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// adjustBoundary moves a non-final window end backward to the nearest
// preferred separator, provided the separator falls within the trailing
// boundaryFraction of the window.
func adjustBoundary(runes []rune, start, end int) int {
	window := end - start
	minCut := end - int(float64(window)*boundaryFraction)
	if minCut <= start {
		minCut = start + 1
	}

	// Paragraph break first.
	for i := end; i > minCut; i-- {
		if i >= start+2 && runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	// Sentence-ending punctuation, either script.
	for i := end; i > minCut; i-- {
		if sentenceEnders[runes[i-1]] {
			return i
		}
	}
	// Any newline.
	for i := end; i > minCut; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	// Whitespace.
	for i := end; i > minCut; i-- {
		if runes[i-1] == ' ' || runes[i-1] == '\t' {
			return i
		}
	}
	// Hard cut.
	return end
}
