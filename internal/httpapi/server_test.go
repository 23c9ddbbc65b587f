package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const invoiceText = `Quincaillerie Durand SARL
Facture N° FACT-2024-0012
Date : 15/03/2024
Vis inox 3 10,00 30,00
Chevilles 2 35,00 70,00
TVA 20% 20,00
Total TTC 120,00 €
`

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	srv   *Server
	queue *async.ProcessorQueue
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: repository.SQLite, DSN: filepath.Join(t.TempDir(), "h.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	scans := repository.NewScanRepository(db, nil)
	stage, err := pipeline.NewExtractStage(nil, extraction.NewEngine(extraction.DefaultPolicy(), extraction.WithParallel(true)), 8)
	require.NoError(t, err)
	proc := pipeline.NewProcessor(nil, scans, pipeline.NewTextStage(nil, ocr.NewExtractor(ocr.Config{}, nil)), stage)
	queue := async.NewProcessorQueue(proc, nil, async.WithWorkers(1))
	t.Cleanup(func() { queue.Shutdown(context.Background()) })

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	srv := NewServer(Deps{
		Processor: proc,
		Scans:     scans,
		Ingestor:  ingest.NewFSIngestor(scans, queue, nil),
		Exporter:  export.NewService(scans, nil),
		Queue:     queue,
		DB:        db,
		Gatherer:  reg,
	}, nil)
	return &testEnv{srv: srv, queue: queue}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func jsonBody(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t)
	w := e.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t)
	e.do(t, http.MethodPost, "/v1/extract", "text/plain", invoiceText)
	w := e.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invoices_extraction_fields_found_total")
}

func TestExtractJSON(t *testing.T) {
	e := newTestServer(t)
	w := e.do(t, http.MethodPost, "/v1/extract", "application/json", jsonBody(t, map[string]any{"raw_text": invoiceText}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	m := decodeBody(t, w)
	assert.Equal(t, "completed", m["status"])
	inv := m["invoice"].(map[string]any)
	assert.Equal(t, "FACT-2024-0012", inv["invoice_number"])
	assert.Equal(t, "Quincaillerie Durand SARL", inv["supplier_name"])
	assert.Equal(t, "20.00", inv["vat_amount"])
}

func TestExtractPlainTextAndBlocks(t *testing.T) {
	e := newTestServer(t)
	w := e.do(t, http.MethodPost, "/v1/extract", "text/plain; charset=utf-8", invoiceText)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/v1/extract", "application/json", jsonBody(t, map[string]any{
		"blocks": []any{map[string]any{"lines": strings.Split(strings.TrimSpace(invoiceText), "\n")}},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	inv := decodeBody(t, w)["invoice"].(map[string]any)
	assert.Equal(t, "120.00", inv["total_ttc"])
}

func TestExtractErrors(t *testing.T) {
	e := newTestServer(t)
	w := e.do(t, http.MethodPost, "/v1/extract", "text/plain", "   ")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = e.do(t, http.MethodPost, "/v1/extract", "application/json", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanLifecycle(t *testing.T) {
	e := newTestServer(t)

	w := e.do(t, http.MethodPost, "/v1/scans", "application/json", jsonBody(t, map[string]any{"raw_text": "Bonjour"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	scan := decodeBody(t, w)
	assert.Equal(t, "needs_review", scan["extraction_status"])
	id := scan["id"].(string)

	w = e.do(t, http.MethodPost, "/v1/scans/"+id+"/reprocess", "application/json", jsonBody(t, map[string]any{"raw_text": invoiceText}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decodeBody(t, w)["extraction_status"])

	w = e.do(t, http.MethodGet, "/v1/scans/"+id, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	assert.InDelta(t, 0.85, got["overall_confidence"], 1e-9)
	data := got["extracted_data"].(map[string]any)
	assert.Equal(t, "100.00", data["subtotal_ht"])

	w = e.do(t, http.MethodGet, "/v1/scans?status=completed", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["scans"], 1)
}

func TestSubmitEmptyTextMarksFailed(t *testing.T) {
	e := newTestServer(t)
	w := e.do(t, http.MethodPost, "/v1/scans", "application/json", `{"raw_text": ""}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decodeBody(t, w)
	assert.Equal(t, "failed", m["extraction_status"])
	assert.Equal(t, map[string]any{"error": "no text extracted from document"}, m["extracted_data"])
}

func TestSubmitAsync(t *testing.T) {
	e := newTestServer(t)
	w := e.do(t, http.MethodPost, "/v1/scans?async=true", "application/json", jsonBody(t, map[string]any{"raw_text": invoiceText}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	id := decodeBody(t, w)["id"].(string)

	e.queue.Shutdown(context.Background())
	w = e.do(t, http.MethodGet, "/v1/scans/"+id, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decodeBody(t, w)["extraction_status"])
}

func TestSubmitAsyncQueueClosed(t *testing.T) {
	e := newTestServer(t)
	e.queue.Shutdown(context.Background())

	w := e.do(t, http.MethodPost, "/v1/scans?async=true", "application/json", jsonBody(t, map[string]any{"raw_text": invoiceText}))
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/v1/scans?status=failed", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	scans := decodeBody(t, w)["scans"].([]any)
	require.Len(t, scans, 1)
	assert.Equal(t, "failed", scans[0].(map[string]any)["extraction_status"])
	w = e.do(t, http.MethodGet, "/v1/scans?status=queued", "", "")
	assert.Empty(t, decodeBody(t, w)["scans"])
}

func TestScanErrors(t *testing.T) {
	e := newTestServer(t)
	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"bad id", http.MethodGet, "/v1/scans/nope", "", http.StatusBadRequest},
		{"missing scan", http.MethodGet, "/v1/scans/6f1c1d4e-7a53-4d41-9d35-3c8f0a7f2b10", "", http.StatusNotFound},
		{"bad status", http.MethodGet, "/v1/scans?status=done", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/v1/scans?limit=-1", "", http.StatusBadRequest},
		{"no source", http.MethodPost, "/v1/scans", "{}", http.StatusBadRequest},
		{"bad extension", http.MethodPost, "/v1/scans", `{"source_path": "/in/a.docx"}`, http.StatusBadRequest},
		{"reprocess missing", http.MethodPost, "/v1/scans/6f1c1d4e-7a53-4d41-9d35-3c8f0a7f2b10/reprocess", `{"raw_text": "x"}`, http.StatusNotFound},
		{"ingest without path", http.MethodPost, "/v1/ingest", `{}`, http.StatusBadRequest},
		{"export bad status", http.MethodGet, "/v1/export.xlsx?status=x", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, tc.method, tc.path, "application/json", tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.Contains(t, decodeBody(t, w), "error")
		})
	}
}

func TestIngestAndExport(t *testing.T) {
	e := newTestServer(t)
	p := filepath.Join(t.TempDir(), "durand.txt")
	require.NoError(t, os.WriteFile(p, []byte(invoiceText), 0o644))

	w := e.do(t, http.MethodPost, "/v1/ingest", "application/json", jsonBody(t, map[string]any{"path": p}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decodeBody(t, w)["queued"])

	e.queue.Shutdown(context.Background())

	w = e.do(t, http.MethodGet, "/v1/export.xlsx?status=completed", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "FACT-2024-0012", rows[1][3])
}

func TestPathExt(t *testing.T) {
	assert.Equal(t, ".png", pathExt("/in/a.png"))
	assert.Equal(t, "", pathExt("/in.d/readme"))
}
