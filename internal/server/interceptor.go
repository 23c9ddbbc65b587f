package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// LoggingInterceptor tags each call with a request ID, taken from the
// x-request-id metadata when present, and logs the outcome.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, id)

		resp, err := handler(ctx, req)

		log := common.LoggerFrom(ctx, logger)
		code := status.Code(err)
		if err != nil {
			log.Warn("grpc.call", "method", info.FullMethod, "code", code.String(), "elapsed_ms", time.Since(start).Milliseconds(), "err", err)
		} else {
			log.Debug("grpc.call", "method", info.FullMethod, "code", code.String(), "elapsed_ms", time.Since(start).Milliseconds())
		}
		return resp, err
	}
}
