package models

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is one word window cut from a rulebook. SourceOffset is the index of
// the window's first word in the source document.
type Chunk struct {
	Text         string `json:"text"`
	SourceOffset int    `json:"source_offset"`
}

// RuleChunk is a persisted chunk together with its embedding
type RuleChunk struct {
	ID           uuid.UUID `json:"id"`
	RulebookID   uuid.UUID `json:"rulebook_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Text         string    `json:"text"`
	SourceOffset int       `json:"source_offset"`
	Embedding    []float32 `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RetrievedChunk is a search hit. Similarity is 1 - cosine distance, so higher
// is closer.
type RetrievedChunk struct {
	Chunk      string  `json:"chunk"`
	Similarity float64 `json:"similarity"`
}
