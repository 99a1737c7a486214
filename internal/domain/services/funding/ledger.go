// Package funding tracks ephemeral accounts funded for transfer attempts
// and sweeps their unspent balances back to the user wallet. Secret
// material for ephemeral accounts lives only in process memory; it is
// exported solely through an explicit recovery call.
package funding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	solanachain "github.com/courier-service/courier_service/internal/chains/solana"
	"github.com/courier-service/courier_service/internal/domain/entities"
	"github.com/courier-service/courier_service/pkg/metrics"
)

// AccountRepository persists funded account records (addresses and
// funding metadata only, never secrets)
type AccountRepository interface {
	Create(ctx context.Context, account *entities.FundedAccount) error
	GetByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*entities.FundedAccount, error)
	GetUnrefundedByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*entities.FundedAccount, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, refundTxID string) error
}

// ChainClient is the slice of the Solana RPC client the ledger needs
type ChainClient interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (string, error)
	ConfirmTransaction(ctx context.Context, signature string) error
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
}

// Ledger tracks funded ephemeral accounts and issues refund sweeps
type Ledger struct {
	client      ChainClient
	userWallet  *solanachain.Wallet
	accountRepo AccountRepository
	feeBuffer   uint64
	logger      *zap.Logger

	mu    sync.Mutex
	vault map[uuid.UUID][]*solanachain.Wallet
}

// NewLedger creates a funding ledger
func NewLedger(
	client ChainClient,
	userWallet *solanachain.Wallet,
	accountRepo AccountRepository,
	feeBuffer uint64,
	logger *zap.Logger,
) *Ledger {
	return &Ledger{
		client:      client,
		userWallet:  userWallet,
		accountRepo: accountRepo,
		feeBuffer:   feeBuffer,
		logger:      logger,
		vault:       make(map[uuid.UUID][]*solanachain.Wallet),
	}
}

// RegisterEphemeral records a funded ephemeral account and holds its
// signing key in the in-memory vault until the attempt is swept
func (l *Ledger) RegisterEphemeral(ctx context.Context, attemptID uuid.UUID, wallet *solanachain.Wallet, fundingTxID string, lamports uint64) error {
	now := time.Now()
	account := &entities.FundedAccount{
		ID:          uuid.New(),
		AttemptID:   attemptID,
		Address:     wallet.Address(),
		FundingTxID: fundingTxID,
		Lamports:    int64(lamports),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.accountRepo.Create(ctx, account); err != nil {
		return fmt.Errorf("record funded account: %w", err)
	}

	l.mu.Lock()
	l.vault[attemptID] = append(l.vault[attemptID], wallet)
	l.mu.Unlock()

	l.logger.Info("ephemeral account funded",
		zap.String("attempt_id", attemptID.String()),
		zap.String("address", wallet.Address()),
		zap.Uint64("lamports", lamports))
	return nil
}

// Sweep refunds every unswept ephemeral account of the attempt in one
// batched transaction. Idempotent: a second call finds nothing unrefunded
// and submits nothing. Accounts are never drained below the rent-exempt
// minimum plus the fee buffer.
func (l *Ledger) Sweep(ctx context.Context, attemptID uuid.UUID) (*entities.RefundResult, error) {
	result := &entities.RefundResult{AttemptID: attemptID}

	accounts, err := l.accountRepo.GetUnrefundedByAttemptID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load funded accounts: %w", err)
	}
	if len(accounts) == 0 {
		return result, nil
	}

	rentMinimum, err := l.client.GetMinimumBalanceForRentExemption(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("get rent minimum: %w", err)
	}
	floor := rentMinimum + l.feeBuffer

	type sweepTarget struct {
		account    *entities.FundedAccount
		wallet     *solanachain.Wallet
		refundable uint64
	}
	var targets []sweepTarget

	for _, account := range accounts {
		wallet := l.lookupSecret(attemptID, account.Address)
		if wallet == nil {
			l.logger.Warn("no signing key held for funded account, skipping",
				zap.String("attempt_id", attemptID.String()),
				zap.String("address", account.Address))
			continue
		}

		// balance is re-read at sweep time, never trusted from the
		// funding record
		balance, err := l.client.GetBalance(ctx, wallet.PublicKey())
		if err != nil {
			return nil, fmt.Errorf("get balance of %s: %w", account.Address, err)
		}
		if balance <= floor {
			continue
		}
		targets = append(targets, sweepTarget{
			account:    account,
			wallet:     wallet,
			refundable: balance - floor,
		})
	}
	if len(targets) == 0 {
		return result, nil
	}

	instructions := make([]solana.Instruction, 0, len(targets))
	for _, target := range targets {
		instructions = append(instructions,
			solanachain.BuildTransferInstruction(target.wallet.PublicKey(), l.userWallet.PublicKey(), target.refundable))
	}

	blockhash, err := l.client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}
	tx, err := solanachain.NewTransaction(blockhash, l.userWallet.PublicKey(), 0, instructions...)
	if err != nil {
		return nil, err
	}

	// every ephemeral account signs its own transfer; the user wallet
	// pays the fee
	for _, target := range targets {
		if err := target.wallet.Sign(tx); err != nil {
			return nil, err
		}
	}
	if err := l.userWallet.Sign(tx); err != nil {
		return nil, err
	}

	txID, err := l.client.SendTransaction(ctx, tx)
	if err != nil {
		metrics.RefundsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("submit refund sweep: %w", err)
	}
	if err := l.client.ConfirmTransaction(ctx, txID); err != nil {
		metrics.RefundsTotal.WithLabelValues("unconfirmed").Inc()
		return nil, fmt.Errorf("confirm refund sweep %s: %w", txID, err)
	}

	for _, target := range targets {
		if err := l.accountRepo.MarkRefunded(ctx, target.account.ID, txID); err != nil {
			return nil, fmt.Errorf("mark %s refunded: %w", target.account.Address, err)
		}
		result.SweptAccounts = append(result.SweptAccounts, target.account.Address)
		result.TotalLamports += int64(target.refundable)
	}
	result.RefundTxID = txID
	metrics.RefundsTotal.WithLabelValues("swept").Inc()

	l.forget(attemptID)

	l.logger.Info("refund sweep complete",
		zap.String("attempt_id", attemptID.String()),
		zap.String("tx_id", txID),
		zap.Int("accounts", len(result.SweptAccounts)),
		zap.Int64("total_lamports", result.TotalLamports))
	return result, nil
}

// ExportRecovery returns the held secrets for an attempt as an explicit,
// user-initiated export. Nothing is persisted.
func (l *Ledger) ExportRecovery(attemptID uuid.UUID) (*entities.RecoveryExport, error) {
	l.mu.Lock()
	wallets := l.vault[attemptID]
	l.mu.Unlock()

	if len(wallets) == 0 {
		return nil, fmt.Errorf("no ephemeral account secrets held for attempt %s", attemptID)
	}

	export := &entities.RecoveryExport{AttemptID: attemptID}
	for _, wallet := range wallets {
		export.Accounts = append(export.Accounts, entities.RecoveryExportEntry{
			Address:   wallet.Address(),
			SecretKey: wallet.ExportSecret(),
		})
	}
	return export, nil
}

func (l *Ledger) lookupSecret(attemptID uuid.UUID, address string) *solanachain.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, wallet := range l.vault[attemptID] {
		if wallet.Address() == address {
			return wallet
		}
	}
	return nil
}

func (l *Ledger) forget(attemptID uuid.UUID) {
	l.mu.Lock()
	delete(l.vault, attemptID)
	l.mu.Unlock()
}
