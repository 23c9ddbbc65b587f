package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const (
	maxBodyBytes = 8 << 20
	maxListLimit = 500
)

// handleExtract runs the engine over a transcript without storing it. The
// body is either JSON {"raw_text", "blocks"} or plain text.
func (s *Server) handleExtract(c *gin.Context) {
	doc, err := readDocument(c)
	if err != nil {
		handleError(c, err)
		return
	}
	res, err := s.deps.Processor.ExtractDocument(doc)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": res.Invoice, "status": res.Outcome})
}

func readDocument(c *gin.Context) (extraction.RawDocument, error) {
	var doc extraction.RawDocument
	if strings.HasPrefix(c.ContentType(), "text/plain") {
		b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			return doc, common.NewAppError("BAD_REQUEST", "read body", common.ErrInvalidInput)
		}
		doc.Text = string(b)
		return doc, nil
	}
	if err := c.ShouldBindJSON(&doc); err != nil {
		return doc, common.NewAppError("BAD_REQUEST", "invalid request body: "+err.Error(), common.ErrInvalidInput)
	}
	return doc, nil
}

type submitScanRequest struct {
	RawText    *string `json:"raw_text"`
	SourcePath string  `json:"source_path"`
}

// handleSubmitScan stores a document and extracts it, inline by default or
// through the worker queue with ?async=true.
func (s *Server) handleSubmitScan(c *gin.Context) {
	var req submitScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, common.NewAppError("BAD_REQUEST", "invalid request body: "+err.Error(), common.ErrInvalidInput))
		return
	}
	create, err := req.createRequest()
	if err != nil {
		handleError(c, err)
		return
	}

	ctx := c.Request.Context()
	if c.Query("async") == "true" && s.deps.Queue != nil {
		scan, err := s.deps.Scans.Create(ctx, create)
		if err != nil {
			handleError(c, err)
			return
		}
		job := async.Job{ScanID: scan.ID, SubmittedAt: time.Now(), TraceID: common.RequestIDFromContext(ctx)}
		if err := async.EnqueueOrFail(ctx, s.deps.Queue, s.deps.Scans, job); err != nil {
			handleError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, scan)
		return
	}

	scan, err := s.deps.Processor.Submit(ctx, create)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, scan)
}

func (r submitScanRequest) createRequest() (repository.CreateScanRequest, error) {
	v := common.NewValidator()
	if r.RawText == nil {
		v.Field("source_path", r.SourcePath, common.Required, common.MaxLength(4096))
	}
	if err := v.Err(); err != nil {
		return repository.CreateScanRequest{}, err
	}
	ext := "txt"
	if r.RawText == nil {
		ext = constants.NormalizeExt(pathExt(r.SourcePath))
		if constants.MapExtToFormat(ext) == "" {
			return repository.CreateScanRequest{}, common.NewAppError("UNSUPPORTED_EXTENSION",
				"unsupported source extension: "+ext, common.ErrInvalidInput)
		}
	}
	return repository.CreateScanRequest{SourcePath: r.SourcePath, FileExt: ext, RawText: r.RawText}, nil
}

func (s *Server) handleGetScan(c *gin.Context) {
	id, ok := scanID(c)
	if !ok {
		return
	}
	scan, err := s.deps.Scans.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (s *Server) handleListScans(c *gin.Context) {
	status := c.Query("status")
	if status != "" {
		if _, ok := constants.ParseScanStatus(status); !ok {
			handleError(c, common.NewAppError("VALIDATION_ERROR", "unknown status "+strconv.Quote(status), common.ErrInvalidInput))
			return
		}
	}
	limit, err := queryInt(c, "limit", maxListLimit)
	if err != nil {
		handleError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		handleError(c, err)
		return
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	scans, err := s.deps.Scans.List(c.Request.Context(), repository.ListScansFilter{
		Status: constants.ScanStatus(status),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	if scans == nil {
		scans = []*entity.Scan{}
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans})
}

func (s *Server) handleReprocess(c *gin.Context) {
	id, ok := scanID(c)
	if !ok {
		return
	}
	var req struct {
		RawText string `json:"raw_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, common.NewAppError("BAD_REQUEST", "invalid request body: "+err.Error(), common.ErrInvalidInput))
		return
	}
	ctx := common.WithScanID(c.Request.Context(), id.String())
	scan, err := s.deps.Processor.Reprocess(ctx, id, req.RawText)
	scan, err = s.deps.Processor.Settle(ctx, id, scan, err)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (s *Server) handleIngest(c *gin.Context) {
	if s.deps.Ingestor == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "ingestion is not enabled"})
		return
	}
	var req struct {
		Path  string `json:"path"`
		Force bool   `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		handleError(c, common.NewAppError("VALIDATION_ERROR", "path is required", common.ErrInvalidInput))
		return
	}
	r, err := s.deps.Ingestor.IngestPath(c.Request.Context(), strings.TrimSpace(req.Path), req.Force)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scan_id":          r.ScanID,
		"source_path":      r.SourcePath,
		"deduplicated":     r.Deduplicated,
		"queued":           r.Queued,
		"content_hash_hex": r.HashHex,
		"file_ext":         r.FileExt,
	})
}

func (s *Server) handleExport(c *gin.Context) {
	if s.deps.Exporter == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "export is not enabled"})
		return
	}
	raw := c.Query("status")
	status, ok := constants.ParseScanStatus(raw)
	if raw != "" && !ok {
		handleError(c, common.NewAppError("VALIDATION_ERROR", "unknown status "+strconv.Quote(raw), common.ErrInvalidInput))
		return
	}
	b, err := s.deps.Exporter.ExportInvoicesXLSX(c.Request.Context(), status)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", b)
}

func scanID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleError(c, common.NewAppError("VALIDATION_ERROR", "id must be a UUID", common.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, common.NewAppError("VALIDATION_ERROR", key+" must be a non-negative integer", common.ErrInvalidInput)
	}
	return n, nil
}

func pathExt(p string) string {
	i := strings.LastIndexAny(p, `./\`)
	if i < 0 || p[i] != '.' {
		return ""
	}
	return p[i:]
}

func handleError(c *gin.Context, err error) {
	code := common.HTTPStatus(err)
	switch {
	case errors.Is(err, extraction.ErrEmptyInput):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, async.ErrQueueClosed):
		code = http.StatusServiceUnavailable
	}
	msg := err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if code >= http.StatusInternalServerError {
		common.LoggerFrom(c.Request.Context(), nil).Error("http.handler.failed", "err", err)
		msg = http.StatusText(code)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
