package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/courier-service/courier_service/internal/domain/entities"
	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

// TransferRepository persists transfer attempts
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, attempt *entities.TransferAttempt) error {
	query := `
		INSERT INTO transfer_attempts (
			id, source_chain, destination_chain, source_domain, destination_domain,
			amount, amount_base_units, destination_address, mint_recipient, status,
			leg1_tx_id, leg2_tx_id, message_hash, attestation, funds_burned,
			recoverable, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID, attempt.SourceChain, attempt.DestinationChain,
		attempt.SourceDomain, attempt.DestinationDomain,
		attempt.Amount, attempt.AmountBaseUnits, attempt.DestinationAddress,
		attempt.MintRecipient, attempt.Status,
		attempt.Leg1TxID, attempt.Leg2TxID,
		attempt.MessageHash, attempt.Attestation,
		attempt.FundsBurned, attempt.Recoverable, attempt.ErrorMessage,
		attempt.CreatedAt, attempt.UpdatedAt,
	)
	return err
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.TransferAttempt, error) {
	var attempt entities.TransferAttempt
	query := `SELECT * FROM transfer_attempts WHERE id = $1`
	if err := r.db.GetContext(ctx, &attempt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NotFoundError("transfer attempt")
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *TransferRepository) GetByLeg1TxID(ctx context.Context, leg1TxID string) (*entities.TransferAttempt, error) {
	var attempt entities.TransferAttempt
	query := `SELECT * FROM transfer_attempts WHERE leg1_tx_id = $1 ORDER BY created_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &attempt, query, leg1TxID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *TransferRepository) List(ctx context.Context, limit, offset int) ([]*entities.TransferAttempt, error) {
	var attempts []*entities.TransferAttempt
	query := `SELECT * FROM transfer_attempts ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &attempts, query, limit, offset)
	return attempts, err
}

// GetRecoverable returns failed attempts whose burn confirmed, i.e. the
// ones resume-from-leg1 can still complete
func (r *TransferRepository) GetRecoverable(ctx context.Context) ([]*entities.TransferAttempt, error) {
	var attempts []*entities.TransferAttempt
	query := `
		SELECT * FROM transfer_attempts
		WHERE status = $1 AND recoverable = TRUE
		ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &attempts, query, entities.TransferStatusFailed)
	return attempts, err
}

func (r *TransferRepository) Update(ctx context.Context, attempt *entities.TransferAttempt) error {
	query := `
		UPDATE transfer_attempts SET
			mint_recipient = $2, status = $3, leg1_tx_id = $4, leg2_tx_id = $5,
			message_hash = $6, attestation = $7, funds_burned = $8,
			recoverable = $9, error_message = $10, updated_at = $11
		WHERE id = $1`

	attempt.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		attempt.ID, attempt.MintRecipient, attempt.Status,
		attempt.Leg1TxID, attempt.Leg2TxID,
		attempt.MessageHash, attempt.Attestation,
		attempt.FundsBurned, attempt.Recoverable, attempt.ErrorMessage,
		attempt.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("transfer attempt %s not found", attempt.ID)
	}
	return err
}

func (r *TransferRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransferStatus, errorMsg string) error {
	query := `UPDATE transfer_attempts SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status, errorMsg, time.Now())
	return err
}
