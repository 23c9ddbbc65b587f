package async

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FailureRecorder marks a scan failed.
type FailureRecorder interface {
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
}

const failureWriteTimeout = 10 * time.Second

// EnqueueOrFail queues job. When the queue refuses it, the scan is marked
// failed so it does not stay queued with no worker to pick it up.
func EnqueueOrFail(ctx context.Context, q Queue, scans FailureRecorder, job Job) error {
	err := q.Enqueue(ctx, job)
	if err == nil {
		return nil
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if ferr := scans.FinishFailure(wctx, job.ScanID, "enqueue: "+err.Error()); ferr != nil {
		return fmt.Errorf("enqueue scan %s: %w (marking failed: %v)", job.ScanID, err, ferr)
	}
	return fmt.Errorf("enqueue scan %s: %w", job.ScanID, err)
}
