package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/httpapi"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-extractor/internal/repository"
	svc "github.com/joseph-ayodele/invoice-extractor/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	scans := repo.NewScanRepository(db, logger)
	processor, err := pipeline.Build(cfg, scans, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	ingestor := ingest.NewFSIngestor(scans, queue, logger)
	exporter := export.NewService(scans, logger)

	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(svc.LoggingInterceptor(logger)))
		svc.RegisterExtractionServiceServer(grpcServer, svc.NewExtractionService(svc.Deps{
			Processor: processor,
			Scans:     scans,
			Ingestor:  ingestor,
			Exporter:  exporter,
			Queue:     queue,
		}, logger))

		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(svc.ExtractionServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

		logger.Info("invoiced grpc listening", "addr", cfg.Server.GRPCAddr)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
				stop()
			}
		}()
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		api := httpapi.NewServer(httpapi.Deps{
			Processor: processor,
			Scans:     scans,
			Ingestor:  ingestor,
			Exporter:  exporter,
			Queue:     queue,
			DB:        db,
			Gatherer:  prometheus.DefaultGatherer,
		}, logger)
		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("invoiced http listening", "addr", cfg.Server.HTTPAddr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http serve error", "error", err)
				stop()
			}
		}()
	}

	if len(cfg.Ingest.WatchDirs) > 0 {
		go func() {
			err := ingestor.Watch(ctx, ingest.WatchConfig{
				Roots:       cfg.Ingest.WatchDirs,
				InitialScan: true,
				Debounce:    cfg.Ingest.Debounce,
				SkipHidden:  true,
			})
			if err != nil {
				logger.Error("watch folder stopped", "dirs", cfg.Ingest.WatchDirs, "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("invoiced shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	}
	queue.Shutdown(shutdownCtx)
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}
