package server

import (
	"context"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
)

type ingestFileRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

type ingestDirectoryRequest struct {
	Root       string `json:"root"`
	SkipHidden bool   `json:"skip_hidden"`
}

func (s *ExtractionService) IngestFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Ingestor == nil {
		return nil, unimplemented("IngestFile")
	}
	var in ingestFileRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	path := strings.TrimSpace(in.Path)
	if path == "" {
		s.logger.Error("ingest request missing path")
		return nil, common.InvalidArgumentError("path is required")
	}

	s.logger.Info("starting file ingest", "path", path, "force", in.Force)
	r, err := s.deps.Ingestor.IngestPath(ctx, path, in.Force)
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("file ingest succeeded", "scan_id", r.ScanID, "deduplicated", r.Deduplicated)
	return encode(ingestResultJSON(r))
}

func (s *ExtractionService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Ingestor == nil {
		return nil, unimplemented("IngestDirectory")
	}
	var in ingestDirectoryRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	results, stats, err := s.deps.Ingestor.IngestDirectory(ctx, strings.TrimSpace(in.Root), in.SkipHidden)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, ingestResultJSON(r))
	}
	return encode(map[string]any{
		"results": out,
		"stats": map[string]any{
			"scanned":      stats.Scanned,
			"matched":      stats.Matched,
			"succeeded":    stats.Succeeded,
			"deduplicated": stats.Deduplicated,
			"queued":       stats.Queued,
			"failed":       stats.Failed,
		},
	})
}

func ingestResultJSON(r ingest.IngestionResult) map[string]any {
	m := map[string]any{
		"source_path":      r.SourcePath,
		"scan_id":          r.ScanID,
		"deduplicated":     r.Deduplicated,
		"queued":           r.Queued,
		"content_hash_hex": r.HashHex,
		"file_ext":         r.FileExt,
	}
	if r.Err != "" {
		m["error"] = r.Err
	}
	return m
}
