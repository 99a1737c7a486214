package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus represents where a transfer attempt is in the burn-and-mint flow
type TransferStatus string

const (
	TransferStatusInitializing        TransferStatus = "initializing"
	TransferStatusLeg1Submitted       TransferStatus = "leg1_submitted"
	TransferStatusLeg1Confirmed       TransferStatus = "leg1_confirmed"
	TransferStatusAwaitingAttestation TransferStatus = "awaiting_attestation"
	TransferStatusAttestationReady    TransferStatus = "attestation_ready"
	TransferStatusLeg2Submitted       TransferStatus = "leg2_submitted"
	TransferStatusComplete            TransferStatus = "complete"
	TransferStatusFailed              TransferStatus = "failed"
)

// IsTerminal reports whether the status ends the attempt
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusComplete || s == TransferStatusFailed
}

// FundsBurned reports whether source-chain funds were irreversibly burned by
// the time the attempt reached this status
func (s TransferStatus) FundsBurned() bool {
	switch s {
	case TransferStatusLeg1Confirmed,
		TransferStatusAwaitingAttestation,
		TransferStatusAttestationReady,
		TransferStatusLeg2Submitted,
		TransferStatusComplete:
		return true
	}
	return false
}

// TransferAttempt represents one user-initiated cross-chain transfer.
// Attempts are never deleted; a failed attempt is superseded by a new one.
type TransferAttempt struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	SourceChain        string          `json:"source_chain" db:"source_chain"`
	DestinationChain   string          `json:"destination_chain" db:"destination_chain"`
	SourceDomain       uint32          `json:"source_domain" db:"source_domain"`
	DestinationDomain  uint32          `json:"destination_domain" db:"destination_domain"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	AmountBaseUnits    int64           `json:"amount_base_units" db:"amount_base_units"`
	DestinationAddress string          `json:"destination_address" db:"destination_address"`
	MintRecipient      string          `json:"mint_recipient,omitempty" db:"mint_recipient"` // derived routable token account, native encoding
	Status             TransferStatus  `json:"status" db:"status"`
	Leg1TxID           string          `json:"leg1_tx_id,omitempty" db:"leg1_tx_id"`
	Leg2TxID           string          `json:"leg2_tx_id,omitempty" db:"leg2_tx_id"`
	MessageHash        string          `json:"message_hash,omitempty" db:"message_hash"`
	Attestation        string          `json:"attestation,omitempty" db:"attestation"`
	FundsBurned        bool            `json:"funds_burned" db:"funds_burned"`
	Recoverable        bool            `json:"recoverable" db:"recoverable"` // resume-from-leg1 is possible
	ErrorMessage       string          `json:"error_message,omitempty" db:"error_message"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// TransferRequest represents a request to start a new transfer
type TransferRequest struct {
	Amount             decimal.Decimal
	SourceChain        string
	DestinationChain   string
	DestinationAddress string
}
