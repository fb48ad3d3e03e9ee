package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Rulebook is an uploaded rule document
type Rulebook struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// IngestionStatus represents the status of an ingestion job
type IngestionStatus string

const (
	IngestionPending    IngestionStatus = "pending"
	IngestionInProgress IngestionStatus = "in_progress"
	IngestionCompleted  IngestionStatus = "completed"
	IngestionFailed     IngestionStatus = "failed"
)

// Ingestion step names, in execution order
const (
	StepDownload = "download"
	StepExtract  = "extract"
	StepChunk    = "chunk"
	StepEmbed    = "embed"
	StepStore    = "store"
)

// IngestionStep is the progress record of a single pipeline step
type IngestionStep struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// IngestionSteps is stored as JSONB
type IngestionSteps []IngestionStep

// NewIngestionSteps returns every step in pending state
func NewIngestionSteps() IngestionSteps {
	names := []string{StepDownload, StepExtract, StepChunk, StepEmbed, StepStore}
	steps := make(IngestionSteps, len(names))
	for i, n := range names {
		steps[i] = IngestionStep{Name: n, Status: string(IngestionPending)}
	}
	return steps
}

// Mark sets the status and detail of the named step
func (s IngestionSteps) Mark(name string, status IngestionStatus, detail string) {
	for i := range s {
		if s[i].Name == name {
			s[i].Status = string(status)
			s[i].Detail = detail
			return
		}
	}
}

// Value implements driver.Valuer for JSONB
func (s IngestionSteps) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *IngestionSteps) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	}
	if len(raw) == 0 {
		*s = IngestionSteps{}
		return nil
	}
	return json.Unmarshal(raw, s)
}

// IngestionJob tracks one embed run over a rulebook
type IngestionJob struct {
	ID           uuid.UUID       `json:"id"`
	RulebookID   uuid.UUID       `json:"rulebook_id"`
	Status       IngestionStatus `json:"status"`
	Steps        IngestionSteps  `json:"steps"`
	ChunkCount   int             `json:"chunk_count"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
