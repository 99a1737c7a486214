package entities

import (
	"time"

	"github.com/google/uuid"
)

// FundedAccount is an ephemeral account funded from the service wallet to
// satisfy an intermediate on-chain precondition for one transfer attempt.
// The signing secret is never part of the entity; it lives only in the
// funding ledger's in-memory vault until the account is swept.
type FundedAccount struct {
	ID          uuid.UUID `json:"id" db:"id"`
	AttemptID   uuid.UUID `json:"attempt_id" db:"attempt_id"`
	Address     string    `json:"address" db:"address"`
	FundingTxID string    `json:"funding_tx_id" db:"funding_tx_id"`
	Lamports    int64     `json:"lamports" db:"lamports"`
	Refunded    bool      `json:"refunded" db:"refunded"`
	RefundTxID  string    `json:"refund_tx_id,omitempty" db:"refund_tx_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RefundResult reports the outcome of a refund sweep
type RefundResult struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	SweptAccounts []string  `json:"swept_accounts"`
	RefundTxID    string    `json:"refund_tx_id,omitempty"`
	TotalLamports int64     `json:"total_lamports"`
}

// Empty reports whether the sweep had nothing to do
func (r RefundResult) Empty() bool {
	return len(r.SweptAccounts) == 0
}

// RecoveryExport is the explicit, user-initiated export of ephemeral account
// secrets for an attempt. It is produced on demand and never persisted.
type RecoveryExport struct {
	AttemptID uuid.UUID             `json:"attempt_id"`
	Accounts  []RecoveryExportEntry `json:"accounts"`
}

// RecoveryExportEntry pairs an ephemeral address with its base58 secret key
type RecoveryExportEntry struct {
	Address   string `json:"address"`
	SecretKey string `json:"secret_key"`
}
