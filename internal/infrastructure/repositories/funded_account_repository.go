package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/courier-service/courier_service/internal/domain/entities"
)

// FundedAccountRepository persists ephemeral funded accounts. Only
// addresses and funding metadata are stored; secret material never
// reaches this layer.
type FundedAccountRepository struct {
	db *sqlx.DB
}

// NewFundedAccountRepository creates a new funded account repository
func NewFundedAccountRepository(db *sqlx.DB) *FundedAccountRepository {
	return &FundedAccountRepository{db: db}
}

func (r *FundedAccountRepository) Create(ctx context.Context, account *entities.FundedAccount) error {
	query := `
		INSERT INTO funded_accounts (
			id, attempt_id, address, funding_tx_id, lamports, refunded,
			refund_tx_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.AttemptID, account.Address, account.FundingTxID,
		account.Lamports, account.Refunded, account.RefundTxID,
		account.CreatedAt, account.UpdatedAt,
	)
	return err
}

func (r *FundedAccountRepository) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*entities.FundedAccount, error) {
	var accounts []*entities.FundedAccount
	query := `SELECT * FROM funded_accounts WHERE attempt_id = $1 ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &accounts, query, attemptID)
	return accounts, err
}

func (r *FundedAccountRepository) GetUnrefundedByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*entities.FundedAccount, error) {
	var accounts []*entities.FundedAccount
	query := `SELECT * FROM funded_accounts WHERE attempt_id = $1 AND refunded = FALSE ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &accounts, query, attemptID)
	return accounts, err
}

func (r *FundedAccountRepository) MarkRefunded(ctx context.Context, id uuid.UUID, refundTxID string) error {
	query := `UPDATE funded_accounts SET refunded = TRUE, refund_tx_id = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, refundTxID, time.Now())
	return err
}
