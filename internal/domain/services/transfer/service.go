// Package transfer orchestrates cross-chain burn-and-mint transfers. One
// attempt walks the state machine initializing → leg1_submitted →
// leg1_confirmed → awaiting_attestation → attestation_ready →
// leg2_submitted → complete, failing into a terminal failed state from
// any step. Progress is persisted per step and streamed to the caller as
// an ordered action log.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/courier-service/courier_service/internal/cctp"
	"github.com/courier-service/courier_service/internal/chains"
	"github.com/courier-service/courier_service/internal/domain/entities"
	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
	"github.com/courier-service/courier_service/internal/infrastructure/adapters/attestation"
	"github.com/courier-service/courier_service/pkg/metrics"
)

// Gateway is one chain's leg of a transfer. Implementations exist for
// Solana and Aptos; the orchestrator addresses them by chain name.
type Gateway interface {
	Chain() chains.Chain
	ValidateDestinationAddress(address string) error
	DeriveMintRecipient(ctx context.Context, destinationAddress string) ([32]byte, string, error)
	Burn(ctx context.Context, attemptID uuid.UUID, amountBaseUnits uint64, destinationDomain uint32, mintRecipient [32]byte) (string, error)
	Mint(ctx context.Context, message, attestation []byte) (string, error)
	Confirm(ctx context.Context, txID string) error
}

// AttemptRepository persists transfer attempts
type AttemptRepository interface {
	Create(ctx context.Context, attempt *entities.TransferAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.TransferAttempt, error)
	GetByLeg1TxID(ctx context.Context, leg1TxID string) (*entities.TransferAttempt, error)
	List(ctx context.Context, limit, offset int) ([]*entities.TransferAttempt, error)
	Update(ctx context.Context, attempt *entities.TransferAttempt) error
}

// ActionLogRepository persists the per-attempt action log
type ActionLogRepository interface {
	Append(ctx context.Context, event *entities.ActionLogEvent) error
	GetByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*entities.ActionLogEvent, error)
}

// FundingLedger sweeps ephemeral accounts funded during an attempt and
// exports their secrets on explicit user request
type FundingLedger interface {
	Sweep(ctx context.Context, attemptID uuid.UUID) (*entities.RefundResult, error)
	ExportRecovery(attemptID uuid.UUID) (*entities.RecoveryExport, error)
}

// Locker is the slice of the Redis client used for single-flight guards
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// Config bounds a single orchestration run
type Config struct {
	MaxAmount  decimal.Decimal
	RunTimeout time.Duration
	LockTTL    time.Duration
}

// Service runs transfer attempts end to end
type Service struct {
	attempts     AttemptRepository
	actionLog    ActionLogRepository
	funding      FundingLedger
	attestations attestation.Fetcher
	gateways     map[string]Gateway
	registry     *chains.Registry
	locks        Locker
	config       Config
	logger       *zap.Logger
}

// NewService creates the transfer orchestrator
func NewService(
	attempts AttemptRepository,
	actionLog ActionLogRepository,
	funding FundingLedger,
	attestations attestation.Fetcher,
	gateways map[string]Gateway,
	registry *chains.Registry,
	locks Locker,
	config Config,
	logger *zap.Logger,
) (*Service, error) {
	if config.RunTimeout <= 0 {
		return nil, fmt.Errorf("run timeout must be positive")
	}
	if config.LockTTL <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	for _, name := range registry.Names() {
		if _, ok := gateways[name]; !ok {
			return nil, fmt.Errorf("no gateway configured for chain %q", name)
		}
	}
	return &Service{
		attempts:     attempts,
		actionLog:    actionLog,
		funding:      funding,
		attestations: attestations,
		gateways:     gateways,
		registry:     registry,
		locks:        locks,
		config:       config,
		logger:       logger,
	}, nil
}

// StartTransfer validates the request, persists a new attempt and runs the
// full burn-attest-mint pipeline in the background. The returned channel
// carries ordered action log events and closes when the attempt reaches a
// terminal state.
func (s *Service) StartTransfer(ctx context.Context, req *entities.TransferRequest) (*entities.TransferAttempt, <-chan entities.ActionLogEvent, error) {
	attempt, err := s.buildAttempt(req)
	if err != nil {
		return nil, nil, err
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, nil, fmt.Errorf("persist attempt: %w", err)
	}

	release, err := s.acquireLock(ctx, attempt.ID)
	if err != nil {
		return nil, nil, err
	}

	events := make(chan entities.ActionLogEvent, 64)
	go func() {
		defer close(events)
		defer release()

		// the run outlives the caller's request context
		runCtx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
		defer cancel()
		s.run(runCtx, attempt, events)
	}()
	return attempt, events, nil
}

// ResumeFromLeg1 re-runs only the attestation and mint portion of an
// attempt whose burn already confirmed. It never submits a second burn.
func (s *Service) ResumeFromLeg1(ctx context.Context, leg1TxID string, sourceDomain uint32) (*entities.TransferAttempt, <-chan entities.ActionLogEvent, error) {
	attempt, err := s.attempts.GetByLeg1TxID(ctx, leg1TxID)
	if err != nil {
		return nil, nil, err
	}
	if attempt == nil {
		return nil, nil, domainerrors.NotFoundError("TRANSFER_ATTEMPT")
	}
	if attempt.SourceDomain != sourceDomain {
		return nil, nil, domainerrors.ValidationError("source_domain",
			fmt.Sprintf("burn transaction %s belongs to domain %d, not %d", leg1TxID, attempt.SourceDomain, sourceDomain))
	}
	if attempt.Status == entities.TransferStatusComplete {
		return nil, nil, domainerrors.ConflictError("transfer", "already completed")
	}
	if !attempt.FundsBurned {
		return nil, nil, domainerrors.ValidationError("leg1_tx_id", "burn is not confirmed for this attempt; start a new transfer instead")
	}

	release, err := s.acquireLock(ctx, attempt.ID)
	if err != nil {
		return nil, nil, err
	}

	events := make(chan entities.ActionLogEvent, 64)
	go func() {
		defer close(events)
		defer release()

		runCtx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
		defer cancel()

		s.emit(runCtx, attempt, events, fmt.Sprintf("Resuming from confirmed burn %s", leg1TxID), entities.ActionStatusPending, "")
		if s.runFromAttestation(runCtx, attempt, events) {
			s.finish(runCtx, attempt, events)
		}
	}()
	return attempt, events, nil
}

// RefundEphemeralAccounts sweeps any unrefunded ephemeral accounts of a
// terminal attempt back to the user wallet
func (s *Service) RefundEphemeralAccounts(ctx context.Context, attemptID uuid.UUID) (*entities.RefundResult, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Status.IsTerminal() {
		return nil, domainerrors.ConflictError("transfer", "still in progress; refunds run after it settles")
	}

	release, err := s.acquireLock(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.funding.Sweep(ctx, attemptID)
}

// ExportRecovery returns the ephemeral account secrets held for an attempt
func (s *Service) ExportRecovery(ctx context.Context, attemptID uuid.UUID) (*entities.RecoveryExport, error) {
	if _, err := s.attempts.GetByID(ctx, attemptID); err != nil {
		return nil, err
	}
	return s.funding.ExportRecovery(attemptID)
}

// GetAttempt returns one attempt by id
func (s *Service) GetAttempt(ctx context.Context, attemptID uuid.UUID) (*entities.TransferAttempt, error) {
	return s.attempts.GetByID(ctx, attemptID)
}

// ListAttempts returns past attempts, newest first
func (s *Service) ListAttempts(ctx context.Context, limit, offset int) ([]*entities.TransferAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.attempts.List(ctx, limit, offset)
}

// GetActionLog returns the persisted action log of an attempt
func (s *Service) GetActionLog(ctx context.Context, attemptID uuid.UUID) ([]*entities.ActionLogEvent, error) {
	return s.actionLog.GetByAttemptID(ctx, attemptID)
}

func (s *Service) buildAttempt(req *entities.TransferRequest) (*entities.TransferAttempt, error) {
	if req.SourceChain == req.DestinationChain {
		return nil, domainerrors.ValidationError("destination_chain", "source and destination chain must differ")
	}
	source, err := s.registry.Get(req.SourceChain)
	if err != nil {
		return nil, domainerrors.ValidationError("source_chain", err.Error())
	}
	destination, err := s.registry.Get(req.DestinationChain)
	if err != nil {
		return nil, domainerrors.ValidationError("destination_chain", err.Error())
	}

	if !req.Amount.IsPositive() {
		return nil, domainerrors.ValidationError("amount", "amount must be positive")
	}
	if s.config.MaxAmount.IsPositive() && req.Amount.GreaterThan(s.config.MaxAmount) {
		return nil, domainerrors.ValidationError("amount",
			fmt.Sprintf("amount exceeds the per-transfer maximum of %s", s.config.MaxAmount))
	}
	baseUnits := req.Amount.Shift(int32(source.Decimals))
	if !baseUnits.IsInteger() {
		return nil, domainerrors.ValidationError("amount",
			fmt.Sprintf("amount has more than %d decimal places", source.Decimals))
	}

	destGateway := s.gateways[destination.Name]
	if err := destGateway.ValidateDestinationAddress(req.DestinationAddress); err != nil {
		return nil, domainerrors.ValidationError("destination_address", err.Error())
	}

	now := time.Now()
	return &entities.TransferAttempt{
		ID:                 uuid.New(),
		SourceChain:        source.Name,
		DestinationChain:   destination.Name,
		SourceDomain:       source.Domain,
		DestinationDomain:  destination.Domain,
		Amount:             req.Amount,
		AmountBaseUnits:    baseUnits.IntPart(),
		DestinationAddress: req.DestinationAddress,
		Status:             entities.TransferStatusInitializing,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// run drives a fresh attempt through both legs. Every step persists before
// the next one starts so a crash leaves an accurate record.
func (s *Service) run(ctx context.Context, attempt *entities.TransferAttempt, events chan<- entities.ActionLogEvent) {
	sourceGateway := s.gateways[attempt.SourceChain]
	destGateway := s.gateways[attempt.DestinationChain]

	s.emit(ctx, attempt, events,
		fmt.Sprintf("Transferring %s USDC from %s to %s", attempt.Amount, attempt.SourceChain, attempt.DestinationChain),
		entities.ActionStatusPending, "")

	recipient, recipientNative, err := destGateway.DeriveMintRecipient(ctx, attempt.DestinationAddress)
	if err != nil {
		s.fail(ctx, attempt, events, fmt.Errorf("derive mint recipient: %w", err))
		return
	}
	attempt.MintRecipient = recipientNative
	s.emit(ctx, attempt, events, fmt.Sprintf("Funds will arrive at %s", recipientNative), entities.ActionStatusSuccess, "")

	leg1Start := time.Now()
	leg1TxID, err := sourceGateway.Burn(ctx, attempt.ID, uint64(attempt.AmountBaseUnits), attempt.DestinationDomain, recipient)
	if err != nil {
		s.fail(ctx, attempt, events, fmt.Errorf("burn on %s: %w", attempt.SourceChain, err))
		return
	}
	attempt.Leg1TxID = leg1TxID
	if !s.advance(ctx, attempt, events, entities.TransferStatusLeg1Submitted,
		fmt.Sprintf("Burn submitted: %s", leg1TxID)) {
		return
	}

	if err := sourceGateway.Confirm(ctx, leg1TxID); err != nil {
		s.fail(ctx, attempt, events, fmt.Errorf("confirm burn %s: %w", leg1TxID, err))
		return
	}
	metrics.TransferLegDuration.WithLabelValues("burn", attempt.SourceChain).Observe(time.Since(leg1Start).Seconds())

	// the burn is now irreversible; everything after this point must leave
	// a resumable record rather than lose the funds
	attempt.FundsBurned = true
	if !s.advance(ctx, attempt, events, entities.TransferStatusLeg1Confirmed, "Burn confirmed") {
		return
	}

	if s.runFromAttestation(ctx, attempt, events) {
		s.finish(ctx, attempt, events)
	}
}

// runFromAttestation covers the portion shared by fresh runs and resumes:
// poll the oracle, re-verify routing, mint and confirm. Returns true when
// the attempt completed.
func (s *Service) runFromAttestation(ctx context.Context, attempt *entities.TransferAttempt, events chan<- entities.ActionLogEvent) bool {
	destGateway := s.gateways[attempt.DestinationChain]

	if !s.advance(ctx, attempt, events, entities.TransferStatusAwaitingAttestation, "Waiting for attestation") {
		return false
	}

	att, err := s.attestations.FetchAttestation(ctx, attempt.SourceDomain, attempt.Leg1TxID)
	if err != nil {
		s.fail(ctx, attempt, events, err)
		return false
	}
	attempt.MessageHash = cctp.HashHex(att.Message)
	attempt.Attestation = fmt.Sprintf("%x", att.Attestation)

	// never trust the oracle's routing: the message must pay out to the
	// account this service derived, not merely to a well-formed one
	decodedRecipient, err := cctp.ExtractMintRecipient(att.Message)
	if err != nil {
		s.fail(ctx, attempt, events, err)
		return false
	}
	derivedRecipient, err := s.derivedRecipientBytes(attempt)
	if err != nil {
		s.fail(ctx, attempt, events, err)
		return false
	}
	if decodedRecipient != derivedRecipient {
		s.fail(ctx, attempt, events, &domainerrors.RoutingMismatchError{
			Derived: attempt.MintRecipient,
			Decoded: fmt.Sprintf("%x", decodedRecipient),
		})
		return false
	}

	if !s.advance(ctx, attempt, events, entities.TransferStatusAttestationReady, "Attestation received") {
		return false
	}

	leg2Start := time.Now()
	leg2TxID, err := destGateway.Mint(ctx, att.Message, att.Attestation)
	if err != nil {
		s.fail(ctx, attempt, events, fmt.Errorf("mint on %s: %w", attempt.DestinationChain, err))
		return false
	}
	attempt.Leg2TxID = leg2TxID
	if !s.advance(ctx, attempt, events, entities.TransferStatusLeg2Submitted,
		fmt.Sprintf("Mint submitted: %s", leg2TxID)) {
		return false
	}

	if err := destGateway.Confirm(ctx, leg2TxID); err != nil {
		s.fail(ctx, attempt, events, fmt.Errorf("confirm mint %s: %w", leg2TxID, err))
		return false
	}
	metrics.TransferLegDuration.WithLabelValues("mint", attempt.DestinationChain).Observe(time.Since(leg2Start).Seconds())
	return true
}

// derivedRecipientBytes re-derives the universal form of the stored mint
// recipient independently of the oracle's payload
func (s *Service) derivedRecipientBytes(attempt *entities.TransferAttempt) ([32]byte, error) {
	if attempt.MintRecipient == "" {
		// resumes load the recipient from the persisted attempt; derive it
		// again when an old record predates persistence of the field
		destGateway := s.gateways[attempt.DestinationChain]
		recipient, native, err := destGateway.DeriveMintRecipient(context.Background(), attempt.DestinationAddress)
		if err != nil {
			return [32]byte{}, err
		}
		attempt.MintRecipient = native
		return recipient, nil
	}
	destination, err := s.registry.Get(attempt.DestinationChain)
	if err != nil {
		return [32]byte{}, err
	}
	return chains.ToUniversalBytes32(attempt.MintRecipient, destination.Kind)
}

func (s *Service) finish(ctx context.Context, attempt *entities.TransferAttempt, events chan<- entities.ActionLogEvent) {
	if !s.advance(ctx, attempt, events, entities.TransferStatusComplete, "Transfer complete") {
		return
	}
	metrics.TransfersTotal.WithLabelValues(attempt.SourceChain, attempt.DestinationChain, string(entities.TransferStatusComplete)).Inc()
	s.sweep(ctx, attempt, events)
}

func (s *Service) fail(ctx context.Context, attempt *entities.TransferAttempt, events chan<- entities.ActionLogEvent, cause error) {
	attempt.Status = entities.TransferStatusFailed
	attempt.ErrorMessage = cause.Error()
	attempt.FundsBurned = attempt.FundsBurned || domainerrors.FundsBurned(cause)
	attempt.Recoverable = attempt.FundsBurned && domainerrors.IsRecoverable(cause)
	if err := s.attempts.Update(ctx, attempt); err != nil {
		s.logger.Error("failed to persist failed attempt",
			zap.String("attempt_id", attempt.ID.String()), zap.Error(err))
	}

	s.emit(ctx, attempt, events, fmt.Sprintf("Transfer failed: %v", cause), entities.ActionStatusError, "")
	s.emit(ctx, attempt, events, s.outcomeMessage(attempt), entities.ActionStatusError, "")

	metrics.TransfersTotal.WithLabelValues(attempt.SourceChain, attempt.DestinationChain, string(entities.TransferStatusFailed)).Inc()
	s.logger.Error("transfer attempt failed",
		zap.String("attempt_id", attempt.ID.String()),
		zap.Bool("funds_burned", attempt.FundsBurned),
		zap.Bool("recoverable", attempt.Recoverable),
		zap.Error(cause))

	s.sweep(ctx, attempt, events)
}

// outcomeMessage tells the user the two things that matter after a
// failure: whether source funds were burned, and how to get them out
func (s *Service) outcomeMessage(attempt *entities.TransferAttempt) string {
	if !attempt.FundsBurned {
		return "No funds left your source wallet."
	}
	if attempt.Recoverable {
		return fmt.Sprintf("Your funds were burned on %s but not yet minted on %s. Resume with burn transaction %s to finish the transfer without burning again.",
			attempt.SourceChain, attempt.DestinationChain, attempt.Leg1TxID)
	}
	return fmt.Sprintf("Your funds were burned on %s but could not be minted on %s. Manual recovery is required; do not retry the burn.",
		attempt.SourceChain, attempt.DestinationChain)
}

// sweep runs compensation after a terminal state. Its failure is logged
// and reported but never replaces the transfer outcome.
func (s *Service) sweep(ctx context.Context, attempt *entities.TransferAttempt, events chan<- entities.ActionLogEvent) {
	result, err := s.funding.Sweep(ctx, attempt.ID)
	if err != nil {
		s.logger.Error("refund sweep failed",
			zap.String("attempt_id", attempt.ID.String()), zap.Error(err))
		s.emit(ctx, attempt, events, "Refunding temporary accounts failed; retry with a manual refund", entities.ActionStatusError, "")
		return
	}
	if !result.Empty() {
		s.emit(ctx, attempt, events,
			fmt.Sprintf("Refunded %d temporary account(s)", len(result.SweptAccounts)),
			entities.ActionStatusSuccess, result.RefundTxID)
	}
}

// advance persists a status transition and emits its log line. Returns
// false when persistence failed and the run must stop.
func (s *Service) advance(ctx context.Context, attempt *entities.TransferAttempt, events chan<- entities.ActionLogEvent, status entities.TransferStatus, message string) bool {
	attempt.Status = status
	if err := s.attempts.Update(ctx, attempt); err != nil {
		s.fail(ctx, attempt, events, fmt.Errorf("persist status %s: %w", status, err))
		return false
	}
	eventStatus := entities.ActionStatusPending
	if status == entities.TransferStatusComplete {
		eventStatus = entities.ActionStatusSuccess
	}
	s.emit(ctx, attempt, events, message, eventStatus, "")
	return true
}

// emit appends to the persisted action log and streams to the caller.
// A slow consumer loses stream events but never blocks the transfer.
func (s *Service) emit(ctx context.Context, attempt *entities.TransferAttempt, events chan<- entities.ActionLogEvent, message string, status entities.ActionStatus, link string) {
	event := entities.ActionLogEvent{
		AttemptID: attempt.ID,
		Message:   message,
		Status:    status,
		Link:      link,
		Timestamp: time.Now(),
	}
	if err := s.actionLog.Append(ctx, &event); err != nil {
		s.logger.Warn("failed to persist action log event",
			zap.String("attempt_id", attempt.ID.String()), zap.Error(err))
	}
	select {
	case events <- event:
	default:
	}
}

func (s *Service) acquireLock(ctx context.Context, attemptID uuid.UUID) (func(), error) {
	key := "transfer:inflight:" + attemptID.String()
	ok, err := s.locks.SetNX(ctx, key, time.Now().Unix(), s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire transfer lock: %w", err)
	}
	if !ok {
		return nil, domainerrors.ConflictError("transfer", "another operation is already running for this attempt")
	}
	return func() {
		if err := s.locks.Del(context.Background(), key); err != nil {
			s.logger.Warn("failed to release transfer lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
