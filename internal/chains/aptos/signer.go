package aptos

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

// Account is a signing-capable Aptos account. Signature requests are
// serialized; only one outstanding request runs at a time.
type Account struct {
	privateKey ed25519.PrivateKey
	address    AccountAddress
	mu         sync.Mutex
}

// LoadAccount reads a 32-byte ed25519 seed from a hex-encoded key file
func LoadAccount(path string) (*Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	seed, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("key file %s is not valid hex: %w", path, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key file %s: seed must be %d bytes, got %d", path, ed25519.SeedSize, len(seed))
	}

	return NewAccountFromSeed(seed), nil
}

// NewAccountFromSeed builds an account from a raw 32-byte ed25519 seed
func NewAccountFromSeed(seed []byte) *Account {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Account{
		privateKey: priv,
		address:    AddressFromPublicKey(pub),
	}
}

// Address returns the account's derived address
func (a *Account) Address() AccountAddress {
	return a.address
}

// PublicKey returns the 32-byte ed25519 public key
func (a *Account) PublicKey() []byte {
	return a.privateKey.Public().(ed25519.PublicKey)
}

// SignTransaction signs a raw transaction, producing a submittable signed
// transaction
func (a *Account) SignTransaction(raw *RawTransaction) (*SignedTransaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if raw.Sender != a.address {
		return nil, fmt.Errorf("transaction sender %s is not this account %s: %w",
			raw.Sender, a.address, domainerrors.ErrSigningRejected)
	}

	signature := ed25519.Sign(a.privateKey, raw.SigningMessage())
	return &SignedTransaction{
		Raw:       raw,
		PublicKey: a.PublicKey(),
		Signature: signature,
	}, nil
}
