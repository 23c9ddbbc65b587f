package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const maxListLimit = 500

// Deps are the collaborators of ExtractionService. Ingestor, Exporter and
// Queue are optional; the methods needing them report Unimplemented or run
// synchronously.
type Deps struct {
	Processor *pipeline.Processor
	Scans     repository.ScanRepository
	Ingestor  ingest.Ingestor
	Exporter  *export.Service
	Queue     async.Queue
}

type ExtractionService struct {
	deps   Deps
	logger *slog.Logger
}

var _ ExtractionServiceServer = (*ExtractionService)(nil)

func NewExtractionService(deps Deps, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{deps: deps, logger: logger}
}

// ExtractResponse is returned by the stateless extraction call.
type ExtractResponse struct {
	Invoice *extraction.ExtractedInvoice `json:"invoice"`
	Status  constants.ScanStatus         `json:"status"`
}

// Extract runs the engine over a transcript without storing anything.
func (s *ExtractionService) Extract(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var doc extraction.RawDocument
	if err := decode(req, &doc); err != nil {
		return nil, err
	}
	res, err := s.deps.Processor.ExtractDocument(doc)
	if err != nil {
		s.logger.Warn("grpc.extract.failed", "err", err)
		return nil, toStatus(err)
	}
	return encode(ExtractResponse{Invoice: res.Invoice, Status: constants.ScanStatus(res.Outcome)})
}

// SubmitScanRequest registers a document. RawText wins over SourcePath.
type SubmitScanRequest struct {
	RawText    *string `json:"raw_text"`
	SourcePath string  `json:"source_path"`
	Async      bool    `json:"async"`
}

func (s *ExtractionService) SubmitScan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SubmitScanRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	create, err := in.createRequest()
	if err != nil {
		return nil, toStatus(err)
	}

	scan, err := s.submit(ctx, create, in.Async)
	if err != nil {
		s.logger.Error("grpc.submit.failed", "err", err)
		return nil, toStatus(err)
	}
	return encode(scan)
}

func (r SubmitScanRequest) createRequest() (repository.CreateScanRequest, error) {
	if r.RawText == nil && strings.TrimSpace(r.SourcePath) == "" {
		return repository.CreateScanRequest{}, common.NewAppError("VALIDATION_ERROR",
			"raw_text or source_path is required", common.ErrInvalidInput)
	}
	ext := "txt"
	if r.RawText == nil {
		ext = constants.NormalizeExt(extOf(r.SourcePath))
		if constants.MapExtToFormat(ext) == "" {
			return repository.CreateScanRequest{}, common.NewAppError("UNSUPPORTED_EXTENSION",
				"unsupported source extension: "+ext, common.ErrInvalidInput)
		}
	}
	return repository.CreateScanRequest{SourcePath: r.SourcePath, FileExt: ext, RawText: r.RawText}, nil
}

// submit stores a scan and either queues it or processes it inline.
func (s *ExtractionService) submit(ctx context.Context, req repository.CreateScanRequest, queued bool) (*entity.Scan, error) {
	if !queued || s.deps.Queue == nil {
		return s.deps.Processor.Submit(ctx, req)
	}
	scan, err := s.deps.Scans.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := async.EnqueueOrFail(ctx, s.deps.Queue, s.deps.Scans, async.Job{ScanID: scan.ID, SubmittedAt: time.Now()}); err != nil {
		return nil, err
	}
	return scan, nil
}

func (s *ExtractionService) GetScan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := scanID(req)
	if err != nil {
		return nil, err
	}
	scan, err := s.deps.Scans.GetByID(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(scan)
}

// ListScansRequest pages through scans, newest last.
type ListScansRequest struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (s *ExtractionService) ListScans(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in ListScansRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	filter, err := in.filter()
	if err != nil {
		return nil, toStatus(err)
	}
	scans, err := s.deps.Scans.List(ctx, filter)
	if err != nil {
		return nil, toStatus(err)
	}
	if scans == nil {
		scans = []*entity.Scan{}
	}
	return encode(map[string]any{"scans": scans})
}

func (r ListScansRequest) filter() (repository.ListScansFilter, error) {
	v := common.NewValidator().
		Field("status", r.Status, common.OneOf(
			string(constants.ScanStatusQueued),
			string(constants.ScanStatusRunning),
			string(constants.ScanStatusCompleted),
			string(constants.ScanStatusNeedsReview),
			string(constants.ScanStatusFailed),
		))
	if r.Limit < 0 || r.Offset < 0 {
		return repository.ListScansFilter{}, common.NewAppError("VALIDATION_ERROR",
			"limit and offset must be non-negative", common.ErrInvalidInput)
	}
	if err := v.Err(); err != nil {
		return repository.ListScansFilter{}, err
	}
	limit := r.Limit
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return repository.ListScansFilter{Status: constants.ScanStatus(r.Status), Limit: limit, Offset: r.Offset}, nil
}

// ReprocessScanRequest replaces a scan's result with an extraction of RawText.
type ReprocessScanRequest struct {
	ID      string `json:"id"`
	RawText string `json:"raw_text"`
}

func (s *ExtractionService) ReprocessScan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in ReprocessScanRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(in.ID))
	if err != nil {
		return nil, common.InvalidArgumentError("id must be a UUID")
	}
	scan, err := s.deps.Processor.Reprocess(ctx, id, in.RawText)
	scan, err = s.deps.Processor.Settle(ctx, id, scan, err)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(scan)
}

func scanID(req *structpb.Struct) (uuid.UUID, error) {
	raw := strings.TrimSpace(req.GetFields()["id"].GetStringValue())
	v := common.NewValidator().Field("id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || strings.ContainsAny(path[i:], `/\`) {
		return ""
	}
	return path[i:]
}
