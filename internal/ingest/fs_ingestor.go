package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	Scans  repository.ScanRepository
	Queue  async.Queue // nil: register only
	Logger *slog.Logger
}

func NewFSIngestor(scans repository.ScanRepository, queue async.Queue, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{Scans: scans, Queue: queue, Logger: logger}
}

// IngestPath hashes the file, registers it once per content hash and queues
// new scans. force queues a scan even when its content was seen before.
func (i *FSIngestor) IngestPath(ctx context.Context, path string, force bool) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		metrics.RecordIngest("skipped")
		return out, common.NewAppError("UNSUPPORTED_EXTENSION",
			fmt.Sprintf("unsupported or missing extension: %q", ext), common.ErrInvalidInput)
	}

	sum, err := hashFile(abs)
	if err != nil {
		metrics.RecordIngest("error")
		i.Logger.Error("ingest.hash.failed", "path", abs, "err", err)
		return out, err
	}

	row, dedup, err := i.Scans.UpsertByHash(ctx, repository.CreateScanRequest{
		SourcePath:  abs,
		FileExt:     ext,
		ContentHash: sum,
	})
	if err != nil {
		metrics.RecordIngest("error")
		return out, err
	}

	out = IngestionResult{
		SourcePath:   row.SourcePath,
		ScanID:       row.ID.String(),
		Deduplicated: dedup,
		HashHex:      hex.EncodeToString(sum),
		FileExt:      row.FileExt,
		CreatedAt:    row.CreatedAt,
	}

	if i.Queue != nil && (!dedup || force) {
		job := async.Job{ScanID: row.ID, Force: force, SubmittedAt: time.Now()}
		var err error
		if dedup {
			// the existing row keeps its result when a forced re-run is refused
			if err = i.Queue.Enqueue(ctx, job); err != nil {
				err = fmt.Errorf("enqueue scan %s: %w", row.ID, err)
			}
		} else {
			err = async.EnqueueOrFail(ctx, i.Queue, i.Scans, job)
		}
		if err != nil {
			metrics.RecordIngest("error")
			return out, err
		}
		out.Queued = true
	}

	switch {
	case out.Queued:
		metrics.RecordIngest("queued")
	case dedup:
		metrics.RecordIngest("dedup")
	default:
		metrics.RecordIngest("registered")
	}
	i.Logger.Info("ingest.file.ok", "path", abs, "scan_id", row.ID, "dedup", dedup, "queued", out.Queued)
	return out, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError("VALIDATION_ERROR", "root_path is required", common.ErrInvalidInput)
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path, false)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		if r.Queued {
			stats.Queued++
		}
		return nil
	})

	i.Logger.Info("ingest.dir.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"dedup", stats.Deduplicated,
		"failed", stats.Failed,
	)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return results, stats, fmt.Errorf("walk %s: %w", root, common.ErrNotFound)
		}
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}
	return h.Sum(nil), nil
}
