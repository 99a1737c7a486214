// Package attestation_sweeper periodically re-drives transfer attempts
// whose burn confirmed but whose attestation never arrived. It is the
// automated counterpart of the user-facing resume endpoint.
package attestation_sweeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/courier-service/courier_service/internal/domain/entities"
	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

// AttemptSource lists attempts that are failed but resumable
type AttemptSource interface {
	GetRecoverable(ctx context.Context) ([]*entities.TransferAttempt, error)
}

// Resumer re-runs the attestation and mint legs of a stranded attempt
type Resumer interface {
	ResumeFromLeg1(ctx context.Context, leg1TxID string, sourceDomain uint32) (*entities.TransferAttempt, <-chan entities.ActionLogEvent, error)
}

// Config holds worker configuration
type Config struct {
	Schedule    string
	MaxPerSweep int
}

// DefaultConfig returns default worker configuration
func DefaultConfig() *Config {
	return &Config{
		Schedule:    "@every 10m",
		MaxPerSweep: 10,
	}
}

// Worker retries stranded attempts on a cron schedule
type Worker struct {
	attempts AttemptSource
	resumer  Resumer
	config   *Config
	cron     *cron.Cron
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewWorker creates a new attestation sweeper worker
func NewWorker(attempts AttemptSource, resumer Resumer, config *Config, logger *zap.Logger) *Worker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Worker{
		attempts: attempts,
		resumer:  resumer,
		config:   config,
		cron:     cron.New(),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start schedules sweeps until the context is cancelled or Stop is called.
// One sweep runs immediately so stranded attempts do not wait a full
// schedule interval after a restart.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("starting attestation sweeper",
		zap.String("schedule", w.config.Schedule),
		zap.Int("max_per_sweep", w.config.MaxPerSweep))

	if _, err := w.cron.AddFunc(w.config.Schedule, func() { w.sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", w.config.Schedule, err)
	}
	w.cron.Start()
	go w.sweep(ctx)

	go func() {
		select {
		case <-ctx.Done():
		case <-w.stopCh:
		}
		<-w.cron.Stop().Done()
		w.logger.Info("attestation sweeper stopped")
	}()
	return nil
}

// Stop stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
}

// sweep resumes up to MaxPerSweep stranded attempts, one at a time. The
// signing wallets serialize anyway, so concurrency buys nothing here.
func (w *Worker) sweep(ctx context.Context) {
	stranded, err := w.attempts.GetRecoverable(ctx)
	if err != nil {
		w.logger.Error("failed to list recoverable attempts", zap.Error(err))
		return
	}
	if len(stranded) == 0 {
		return
	}
	if len(stranded) > w.config.MaxPerSweep {
		stranded = stranded[:w.config.MaxPerSweep]
	}
	w.logger.Info("resuming stranded attempts", zap.Int("count", len(stranded)))

	for _, attempt := range stranded {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		_, events, err := w.resumer.ResumeFromLeg1(ctx, attempt.Leg1TxID, attempt.SourceDomain)
		if err != nil {
			// another orchestration already holds the attempt; leave it be
			if domainerrors.IsConflict(err) {
				continue
			}
			w.logger.Error("failed to resume attempt",
				zap.String("attempt_id", attempt.ID.String()),
				zap.String("leg1_tx_id", attempt.Leg1TxID),
				zap.Error(err))
			continue
		}
		for range events {
		}
	}
}
