package async

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failureLog struct {
	mu       sync.Mutex
	messages map[uuid.UUID]string
}

func (f *failureLog) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messages == nil {
		f.messages = map[uuid.UUID]string{}
	}
	f.messages[id] = message
	return nil
}

func TestEnqueueOrFailMarksRefusedScan(t *testing.T) {
	q := NewProcessorQueue(&recordingProcessor{}, nil)
	q.Shutdown(context.Background())
	log := &failureLog{}
	id := uuid.New()

	// a cancelled request must still leave the scan terminal
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := EnqueueOrFail(ctx, q, log, Job{ScanID: id})
	require.ErrorIs(t, err, ErrQueueClosed)
	assert.Equal(t, "enqueue: "+ErrQueueClosed.Error(), log.messages[id])
}

func TestEnqueueOrFailAccepted(t *testing.T) {
	proc := &recordingProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	log := &failureLog{}
	id := uuid.New()

	require.NoError(t, EnqueueOrFail(context.Background(), q, log, Job{ScanID: id}))
	q.Shutdown(context.Background())
	assert.Empty(t, log.messages)
	assert.Equal(t, []uuid.UUID{id}, proc.ids())
}
