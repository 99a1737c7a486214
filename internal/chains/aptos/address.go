// Package aptos implements the Aptos side of a transfer: account address
// handling, object address derivation for primary fungible stores, BCS
// serialization of entry-function transactions, ed25519 signing, and a
// REST client for the fullnode API.
package aptos

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AccountAddress is a 32-byte Aptos account or object address
type AccountAddress [32]byte

// ParseAddress parses a 0x-prefixed hex address, left-padding short forms
func ParseAddress(s string) (AccountAddress, error) {
	var addr AccountAddress
	h := strings.TrimPrefix(strings.ToLower(s), "0x")
	if h == "" || len(h) > 64 {
		return addr, fmt.Errorf("invalid aptos address %q", s)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return addr, fmt.Errorf("invalid aptos address %q: %w", s, err)
	}
	copy(addr[32-len(raw):], raw)
	return addr, nil
}

// MustParseAddress parses a known-good address and panics on failure
func MustParseAddress(s string) AccountAddress {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String returns the canonical long-form hex encoding
func (a AccountAddress) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns the raw 32-byte form
func (a AccountAddress) Bytes() []byte {
	return a[:]
}

// IsZero reports whether the address is all zero bytes
func (a AccountAddress) IsZero() bool {
	return a == AccountAddress{}
}
