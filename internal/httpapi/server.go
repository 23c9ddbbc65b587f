// Package httpapi is the REST surface of the extraction service.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// Pinger reports store health.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the collaborators of Server. Everything but Processor and Scans
// is optional.
type Deps struct {
	Processor *pipeline.Processor
	Scans     repository.ScanRepository
	Ingestor  ingest.Ingestor
	Exporter  *export.Service
	Queue     async.Queue
	DB        Pinger
	Gatherer  prometheus.Gatherer
}

// Server holds the state for the REST API server.
type Server struct {
	deps   Deps
	router *gin.Engine
	logger *slog.Logger
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	s := &Server{deps: deps, router: r, logger: logger}
	s.setupRoutes()
	return s
}

// Handler exposes the router for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/v1")
	v1.POST("/extract", s.handleExtract)
	v1.POST("/scans", s.handleSubmitScan)
	v1.GET("/scans", s.handleListScans)
	v1.GET("/scans/:id", s.handleGetScan)
	v1.POST("/scans/:id/reprocess", s.handleReprocess)
	v1.POST("/ingest", s.handleIngest)
	v1.GET("/export.xlsx", s.handleExport)
}

func (s *Server) healthCheck(c *gin.Context) {
	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger tags each request with an ID and logs its outcome.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))

		c.Next()

		log := common.LoggerFrom(c.Request.Context(), logger)
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("http.request", attrs...)
			return
		}
		log.Debug("http.request", attrs...)
	}
}
