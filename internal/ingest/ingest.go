// Package ingest registers invoice files as scans and queues them for
// extraction.
package ingest

import (
	"context"
	"time"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	ScanID       string
	Deduplicated bool
	Queued       bool
	HashHex      string
	FileExt      string
	CreatedAt    time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Queued       uint32
	Failed       uint32
}

// Ingestor is the behavior the servers depend on.
type Ingestor interface {
	// IngestPath registers a single file.
	IngestPath(ctx context.Context, path string, force bool) (IngestionResult, error)
	// IngestDirectory registers all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
