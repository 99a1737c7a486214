package aptos

import (
	"golang.org/x/crypto/sha3"
)

// Object address derivation scheme bytes, appended after the seed material
// before hashing
const (
	objectDerivedScheme = 0xFC
	namedObjectScheme   = 0xFE
	ed25519SingleScheme = 0x00
)

// PrimaryStoreAddress derives the primary fungible store object address for
// an owner and token metadata object. This is the routable account a mint
// lands in; the owner's account address itself is never the recipient.
// The derivation is a single hash: sha3-256(owner || metadata || 0xFC).
func PrimaryStoreAddress(owner, metadata AccountAddress) AccountAddress {
	h := sha3.New256()
	h.Write(owner[:])
	h.Write(metadata[:])
	h.Write([]byte{objectDerivedScheme})

	var addr AccountAddress
	copy(addr[:], h.Sum(nil))
	return addr
}

// NamedObjectAddress derives the address of a named object created by a
// creator account: sha3-256(creator || seed || 0xFE). Protocol-internal
// state objects are addressed this way.
func NamedObjectAddress(creator AccountAddress, seed []byte) AccountAddress {
	h := sha3.New256()
	h.Write(creator[:])
	h.Write(seed)
	h.Write([]byte{namedObjectScheme})

	var addr AccountAddress
	copy(addr[:], h.Sum(nil))
	return addr
}

// AddressFromPublicKey derives the account address of a single ed25519
// public key: sha3-256(pubkey || 0x00)
func AddressFromPublicKey(publicKey []byte) AccountAddress {
	h := sha3.New256()
	h.Write(publicKey)
	h.Write([]byte{ed25519SingleScheme})

	var addr AccountAddress
	copy(addr[:], h.Sum(nil))
	return addr
}
