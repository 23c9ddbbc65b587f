package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
)

// Result is one validated extraction ready to persist.
type Result struct {
	Invoice *extraction.ExtractedInvoice
	JSON    json.RawMessage
	Outcome extraction.Outcome
}

func (r Result) clone() Result {
	return Result{Invoice: r.Invoice.Clone(), JSON: bytes.Clone(r.JSON), Outcome: r.Outcome}
}

type cacheEntry struct {
	text   string
	result Result
}

// ExtractStage runs the engine, checks the output contract and decides the
// review outcome. Results are memoized by transcript.
type ExtractStage struct {
	Logger *slog.Logger
	Engine *extraction.Engine

	cache *lru.Cache[uint64, cacheEntry]
}

// NewExtractStage builds the stage; cacheSize <= 0 disables memoization.
func NewExtractStage(logger *slog.Logger, engine *extraction.Engine, cacheSize int) (*ExtractStage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExtractStage{Logger: logger, Engine: engine}
	if cacheSize > 0 {
		c, err := lru.New[uint64, cacheEntry](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create extraction cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// Run extracts doc. The engine is deterministic, so a cached result for the
// same transcript is reused. Callers own the returned Result either way.
func (s *ExtractStage) Run(doc extraction.RawDocument) (Result, error) {
	text := doc.FullText()
	key := xxhash.Sum64String(text)
	if s.cache != nil {
		if e, ok := s.cache.Get(key); ok && e.text == text {
			metrics.RecordCacheHit()
			s.Logger.Debug("extractstage.cache.hit", "key", key)
			return e.result.clone(), nil
		}
		metrics.RecordCacheMiss()
	}

	start := time.Now()
	inv, err := s.Engine.Extract(doc)
	metrics.RecordStageDuration("extract", time.Since(start).Seconds())
	if err != nil {
		return Result{}, err
	}

	data, err := json.Marshal(inv)
	if err != nil {
		return Result{}, fmt.Errorf("marshal extracted invoice: %w", err)
	}
	if err := extraction.ValidateJSON(data); err != nil {
		s.Logger.Error("extractstage.schema.invalid", "err", err)
		return Result{}, err
	}

	res := Result{
		Invoice: inv,
		JSON:    data,
		Outcome: s.Engine.Policy().Decide(inv.ConfidenceScores.Overall),
	}
	recordFields(inv)
	if s.cache != nil {
		s.cache.Add(key, cacheEntry{text: text, result: res.clone()})
	}
	s.Logger.Debug("extractstage.ok",
		"overall", inv.ConfidenceScores.Overall,
		"outcome", res.Outcome,
		"line_items", len(inv.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func recordFields(inv *extraction.ExtractedInvoice) {
	present := map[string]bool{
		"invoice_number":      inv.InvoiceNumber != nil,
		"invoice_date":        inv.InvoiceDate != nil,
		"supplier_name":       inv.SupplierName != nil,
		"supplier_siret":      inv.SupplierSIRET != nil,
		"supplier_vat_number": inv.SupplierVATNumber != nil,
		"subtotal_ht":         inv.SubtotalHT.Valid,
		"vat_amount":          inv.VATAmount.Valid,
		"total_ttc":           inv.TotalTTC.Valid,
		"line_items":          len(inv.LineItems) > 0,
	}
	for field, ok := range present {
		if ok {
			metrics.RecordFieldFound(field)
		}
	}
}
