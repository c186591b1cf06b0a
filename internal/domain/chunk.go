package domain

// ChunkMetadata describes where a chunk came from.
type ChunkMetadata struct {
	Source       string
	ChunkIndex   int
	PageEstimate int
}

// DocumentChunk is an ephemeral slice of extracted text. Chunks are
// consumed immediately to produce file vectors and are never persisted
// as their own entity.
type DocumentChunk struct {
	Text        string
	StartOffset int
	EndOffset   int
	Metadata    ChunkMetadata
}
