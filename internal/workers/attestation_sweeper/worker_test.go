package attestation_sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courier-service/courier_service/internal/domain/entities"
	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

type fakeSource struct {
	attempts []*entities.TransferAttempt
	err      error
}

func (f *fakeSource) GetRecoverable(context.Context) ([]*entities.TransferAttempt, error) {
	return f.attempts, f.err
}

type fakeResumer struct {
	mu      sync.Mutex
	resumed []string
	errFor  map[string]error
}

func (f *fakeResumer) ResumeFromLeg1(_ context.Context, leg1TxID string, _ uint32) (*entities.TransferAttempt, <-chan entities.ActionLogEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor[leg1TxID]; err != nil {
		return nil, nil, err
	}
	f.resumed = append(f.resumed, leg1TxID)
	events := make(chan entities.ActionLogEvent)
	close(events)
	return &entities.TransferAttempt{Leg1TxID: leg1TxID}, events, nil
}

func (f *fakeResumer) resumedTxs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resumed...)
}

func stranded(tx string) *entities.TransferAttempt {
	return &entities.TransferAttempt{
		ID:           uuid.New(),
		SourceDomain: 5,
		Leg1TxID:     tx,
		Status:       entities.TransferStatusFailed,
		Recoverable:  true,
	}
}

func TestSweep_ResumesEachStrandedAttempt(t *testing.T) {
	source := &fakeSource{attempts: []*entities.TransferAttempt{stranded("tx-a"), stranded("tx-b")}}
	resumer := &fakeResumer{}
	worker := NewWorker(source, resumer, nil, zap.NewNop())

	worker.sweep(context.Background())

	assert.Equal(t, []string{"tx-a", "tx-b"}, resumer.resumedTxs())
}

func TestSweep_HonorsBatchLimit(t *testing.T) {
	source := &fakeSource{}
	for i := 0; i < 5; i++ {
		source.attempts = append(source.attempts, stranded(uuid.NewString()))
	}
	resumer := &fakeResumer{}
	worker := NewWorker(source, resumer, &Config{Schedule: "@every 1m", MaxPerSweep: 3}, zap.NewNop())

	worker.sweep(context.Background())

	assert.Len(t, resumer.resumedTxs(), 3)
}

func TestSweep_SkipsAttemptsAlreadyInFlight(t *testing.T) {
	source := &fakeSource{attempts: []*entities.TransferAttempt{stranded("tx-busy"), stranded("tx-free")}}
	resumer := &fakeResumer{errFor: map[string]error{
		"tx-busy": domainerrors.ConflictError("transfer", "another operation is already running for this attempt"),
	}}
	worker := NewWorker(source, resumer, nil, zap.NewNop())

	worker.sweep(context.Background())

	assert.Equal(t, []string{"tx-free"}, resumer.resumedTxs())
}

func TestStartRunsImmediateSweepAndStops(t *testing.T) {
	source := &fakeSource{attempts: []*entities.TransferAttempt{stranded("tx-immediate")}}
	resumer := &fakeResumer{}
	worker := NewWorker(source, resumer, &Config{Schedule: "@every 1h", MaxPerSweep: 1}, zap.NewNop())

	require.NoError(t, worker.Start(context.Background()))

	deadline := time.After(time.Second)
	for len(resumer.resumedTxs()) == 0 {
		select {
		case <-deadline:
			t.Fatal("immediate sweep never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	worker.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	worker := NewWorker(&fakeSource{}, &fakeResumer{}, &Config{Schedule: "not-a-schedule", MaxPerSweep: 1}, zap.NewNop())
	assert.Error(t, worker.Start(context.Background()))
}
