package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// Scan represents one invoice document moving through extraction, for data
// transfer between layers.
type Scan struct {
	ID                uuid.UUID            `json:"id"`
	SourcePath        string               `json:"source_path,omitempty"`
	FileExt           string               `json:"file_ext,omitempty"`
	ContentHash       []byte               `json:"-"`
	Status            constants.ScanStatus `json:"extraction_status"`
	RawText           *string              `json:"raw_text,omitempty"`
	ExtractedData     json.RawMessage      `json:"extracted_data,omitempty"`
	OverallConfidence *float64             `json:"overall_confidence,omitempty"`
	ErrorMessage      *string              `json:"error_message,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
	FinishedAt        *time.Time           `json:"finished_at,omitempty"`
}
