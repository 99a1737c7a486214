package solana

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

// Wallet wraps a Solana keypair. Signature requests are serialized; the
// signing capability is never assumed reentrant, so only one outstanding
// request runs at a time.
type Wallet struct {
	key    solana.PrivateKey
	mu     sync.Mutex
	logger *zap.Logger
}

// LoadWallet reads a keypair from a solana-keygen JSON file
func LoadWallet(path string, logger *zap.Logger) (*Wallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return &Wallet{key: key, logger: logger}, nil
}

// NewEphemeralWallet generates a throwaway keypair for one transfer attempt
func NewEphemeralWallet(logger *zap.Logger) (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral keypair: %w", err)
	}
	return &Wallet{key: key, logger: logger}, nil
}

// PublicKey returns the wallet's public key
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// Address returns the wallet's base58 address
func (w *Wallet) Address() string {
	return w.key.PublicKey().String()
}

// ExportSecret returns the base58 secret key for an explicit recovery
// export. Callers must never persist this implicitly.
func (w *Wallet) ExportSecret() string {
	return w.key.String()
}

// Sign adds this wallet's signature to the transaction, leaving other
// required signatures untouched
func (w *Wallet) Sign(tx *solana.Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.key.PublicKey()) {
			k := w.key
			return &k
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("wallet %s: %w: %v", w.Address(), domainerrors.ErrSigningRejected, err)
	}
	return nil
}

// CoSign applies the user's signature first and the fee sponsor's second.
// Submission requires both; the sponsor never signs an unsigned
// transaction.
func CoSign(tx *solana.Transaction, user, sponsor *Wallet) error {
	if err := user.Sign(tx); err != nil {
		return err
	}
	if sponsor != nil {
		if err := sponsor.Sign(tx); err != nil {
			return err
		}
	}
	return nil
}
