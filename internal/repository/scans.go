package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// CreateScanRequest wraps parameters for registering a document.
type CreateScanRequest struct {
	SourcePath  string
	FileExt     string
	ContentHash []byte  // optional; unique when set
	RawText     *string // transcript supplied up front, if any
}

// ExtractionOutcome is what a finished extraction writes back.
type ExtractionOutcome struct {
	RawText       string
	ExtractedData json.RawMessage
	Overall       float64
	Status        constants.ScanStatus
}

// ListScansFilter narrows List; zero values mean no filter.
type ListScansFilter struct {
	Status constants.ScanStatus
	Limit  int
	Offset int
}

type ScanRepository interface {
	Create(ctx context.Context, req CreateScanRequest) (*entity.Scan, error)
	UpsertByHash(ctx context.Context, req CreateScanRequest) (*entity.Scan, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Scan, error)
	List(ctx context.Context, filter ListScansFilter) ([]*entity.Scan, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	FinishExtraction(ctx context.Context, id uuid.UUID, out ExtractionOutcome) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
}

type scanRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewScanRepository(db *DB, logger *slog.Logger) ScanRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &scanRepo{db: db, logger: logger, now: time.Now}
}

const scanColumns = `id, source_path, file_ext, content_hash, extraction_status, raw_text,
	extracted_data, overall_confidence, error_message, created_at, updated_at, finished_at`

func (r *scanRepo) Create(ctx context.Context, req CreateScanRequest) (*entity.Scan, error) {
	now := r.now().UTC()
	s := &entity.Scan{
		ID:          uuid.New(),
		SourcePath:  req.SourcePath,
		FileExt:     req.FileExt,
		ContentHash: req.ContentHash,
		Status:      constants.ScanStatusQueued,
		RawText:     req.RawText,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var hash any
	if len(req.ContentHash) > 0 {
		hash = req.ContentHash
	}
	_, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`INSERT INTO scans
		(id, source_path, file_ext, content_hash, extraction_status, raw_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID.String(), s.SourcePath, s.FileExt, hash, string(s.Status), nullString(s.RawText), now, now)
	if err != nil {
		r.logger.Error("scan create failed", "source_path", req.SourcePath, "err", err)
		return nil, fmt.Errorf("%w: insert scan: %v", common.ErrDatabase, err)
	}
	r.logger.Info("scan created", "scan_id", s.ID, "source_path", s.SourcePath)
	return s, nil
}

// UpsertByHash returns the existing scan with the same content hash, or
// creates one. The bool reports deduplication.
func (r *scanRepo) UpsertByHash(ctx context.Context, req CreateScanRequest) (*entity.Scan, bool, error) {
	if len(req.ContentHash) > 0 {
		row := r.db.SQL.QueryRowContext(ctx,
			r.db.rebind(`SELECT `+scanColumns+` FROM scans WHERE content_hash = ?`), req.ContentHash)
		existing, err := scanRow(row)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.Error("scan lookup by hash failed", "source_path", req.SourcePath, "err", err)
			return nil, false, fmt.Errorf("%w: lookup scan: %v", common.ErrDatabase, err)
		}
	}
	s, err := r.Create(ctx, req)
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

func (r *scanRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Scan, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		r.db.rebind(`SELECT `+scanColumns+` FROM scans WHERE id = ?`), id.String())
	s, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("scan get failed", "scan_id", id, "err", err)
		return nil, fmt.Errorf("%w: get scan: %v", common.ErrDatabase, err)
	}
	return s, nil
}

func (r *scanRepo) List(ctx context.Context, filter ListScansFilter) ([]*entity.Scan, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "extraction_status = ?")
		args = append(args, string(filter.Status))
	}
	q := `SELECT ` + scanColumns + ` FROM scans`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		r.logger.Error("scan list failed", "status", filter.Status, "err", err)
		return nil, fmt.Errorf("%w: list scans: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make([]*entity.Scan, 0)
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: read scan: %v", common.ErrDatabase, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list scans: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *scanRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	err := r.update(ctx, id, `extraction_status = ?, updated_at = ?`,
		string(constants.ScanStatusRunning), r.now().UTC())
	if err != nil {
		r.logger.Error("scan mark running failed", "scan_id", id, "err", err)
		return err
	}
	r.logger.Debug("scan running", "scan_id", id)
	return nil
}

func (r *scanRepo) FinishExtraction(ctx context.Context, id uuid.UUID, out ExtractionOutcome) error {
	if out.Status != constants.ScanStatusCompleted && out.Status != constants.ScanStatusNeedsReview {
		return common.NewAppError("INVALID_STATUS", fmt.Sprintf("cannot finish extraction as %q", out.Status), common.ErrInvalidInput)
	}
	now := r.now().UTC()
	err := r.update(ctx, id,
		`extraction_status = ?, raw_text = ?, extracted_data = ?, overall_confidence = ?,
		error_message = NULL, updated_at = ?, finished_at = ?`,
		string(out.Status), out.RawText, string(out.ExtractedData), out.Overall, now, now)
	if err != nil {
		r.logger.Error("scan finish(extraction) failed", "scan_id", id, "err", err)
		return err
	}
	r.logger.Info("scan finished", "scan_id", id, "status", out.Status, "overall", out.Overall)
	return nil
}

// FinishFailure marks the scan failed; extracted_data becomes {"error": message}.
func (r *scanRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return fmt.Errorf("encode failure: %w", err)
	}
	now := r.now().UTC()
	err = r.update(ctx, id,
		`extraction_status = ?, extracted_data = ?, overall_confidence = NULL, error_message = ?,
		updated_at = ?, finished_at = ?`,
		string(constants.ScanStatusFailed), string(data), message, now, now)
	if err != nil {
		r.logger.Error("scan finish(FAILED) failed", "scan_id", id, "err", err)
		return err
	}
	r.logger.Warn("scan finished (FAILED)", "scan_id", id, "error", message)
	return nil
}

func (r *scanRepo) update(ctx context.Context, id uuid.UUID, set string, args ...any) error {
	args = append(args, id.String())
	res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`UPDATE scans SET `+set+` WHERE id = ?`), args...)
	if err != nil {
		return fmt.Errorf("%w: update scan: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update scan: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("scan %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*entity.Scan, error) {
	var (
		s                     entity.Scan
		id, status            string
		rawText, data, errMsg sql.NullString
		overall               sql.NullFloat64
		created, updated      dbTime
		finished              dbTime
	)
	if err := row.Scan(&id, &s.SourcePath, &s.FileExt, &s.ContentHash, &status, &rawText,
		&data, &overall, &errMsg, &created, &updated, &finished); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("scan id %q: %w", id, err)
	}
	s.ID = parsed
	s.Status = constants.ScanStatus(status)
	if rawText.Valid {
		s.RawText = &rawText.String
	}
	if data.Valid {
		s.ExtractedData = json.RawMessage(data.String)
	}
	if overall.Valid {
		s.OverallConfidence = &overall.Float64
	}
	if errMsg.Valid {
		s.ErrorMessage = &errMsg.String
	}
	s.CreatedAt = created.Time
	s.UpdatedAt = updated.Time
	if finished.Valid {
		t := finished.Time
		s.FinishedAt = &t
	}
	return &s, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// dbTime reads timestamps from either driver: pgx yields time.Time, SQLite
// may hand back text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

var dbTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		*t = dbTime{Time: v.UTC(), Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range dbTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}
