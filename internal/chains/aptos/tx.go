package aptos

import (
	"fmt"

	"golang.org/x/crypto/sha3"
)

// EntryFunction identifies and parameterizes an on-chain Move entry
// function call. Args are individually BCS-encoded blobs.
type EntryFunction struct {
	ModuleAddress AccountAddress
	ModuleName    string
	FunctionName  string
	TypeArgs      []TypeTag
	Args          [][]byte
}

// TypeTag is a Move type argument. Only struct tags are needed here.
type TypeTag struct {
	Address AccountAddress
	Module  string
	Name    string
}

// RawTransaction is the unsigned transaction envelope
type RawTransaction struct {
	Sender                  AccountAddress
	SequenceNumber          uint64
	Payload                 EntryFunction
	MaxGasAmount            uint64
	GasUnitPrice            uint64
	ExpirationTimestampSecs uint64
	ChainID                 uint8
}

// structTagVariant is the TypeTag enum index for struct tags
const structTagVariant = 7

// entryFunctionVariant is the TransactionPayload enum index for entry
// function calls
const entryFunctionVariant = 2

func (e *bcsEncoder) typeTag(t TypeTag) {
	e.Uleb128(structTagVariant)
	e.Address(t.Address)
	e.String(t.Module)
	e.String(t.Name)
	e.Uleb128(0) // struct type parameters
}

func (e *bcsEncoder) entryFunction(fn EntryFunction) {
	e.Uleb128(entryFunctionVariant)
	e.Address(fn.ModuleAddress)
	e.String(fn.ModuleName)
	e.String(fn.FunctionName)
	e.Uleb128(uint64(len(fn.TypeArgs)))
	for _, t := range fn.TypeArgs {
		e.typeTag(t)
	}
	e.Uleb128(uint64(len(fn.Args)))
	for _, arg := range fn.Args {
		e.Bytes(arg)
	}
}

// Encode serializes the raw transaction in BCS form
func (tx *RawTransaction) Encode() []byte {
	e := newBCSEncoder()
	e.Address(tx.Sender)
	e.U64(tx.SequenceNumber)
	e.entryFunction(tx.Payload)
	e.U64(tx.MaxGasAmount)
	e.U64(tx.GasUnitPrice)
	e.U64(tx.ExpirationTimestampSecs)
	e.U8(tx.ChainID)
	return e.Result()
}

// SigningMessage returns the bytes an account signs: the domain-separation
// prefix sha3-256("APTOS::RawTransaction") followed by the BCS-encoded
// transaction
func (tx *RawTransaction) SigningMessage() []byte {
	prefix := sha3.Sum256([]byte("APTOS::RawTransaction"))
	return append(prefix[:], tx.Encode()...)
}

// SignedTransaction pairs a raw transaction with its ed25519 authenticator
type SignedTransaction struct {
	Raw       *RawTransaction
	PublicKey []byte
	Signature []byte
}

// ed25519AuthenticatorVariant is the TransactionAuthenticator enum index
// for a single ed25519 signer
const ed25519AuthenticatorVariant = 0

// Encode serializes the signed transaction for BCS submission
func (tx *SignedTransaction) Encode() ([]byte, error) {
	if len(tx.PublicKey) != 32 {
		return nil, fmt.Errorf("public key must be 32 bytes, got %d", len(tx.PublicKey))
	}
	if len(tx.Signature) != 64 {
		return nil, fmt.Errorf("signature must be 64 bytes, got %d", len(tx.Signature))
	}

	e := newBCSEncoder()
	e.FixedBytes(tx.Raw.Encode())
	e.Uleb128(ed25519AuthenticatorVariant)
	e.Bytes(tx.PublicKey)
	e.Bytes(tx.Signature)
	return e.Result(), nil
}

// BuildDepositForBurn builds the burn entry function for a transfer
// leaving Aptos. mintRecipient must be the derived routable token account
// on the destination chain in its 32-byte form.
func BuildDepositForBurn(
	packageAddress AccountAddress,
	amount uint64,
	destinationDomain uint32,
	mintRecipient [32]byte,
	burnToken AccountAddress,
) EntryFunction {
	return EntryFunction{
		ModuleAddress: packageAddress,
		ModuleName:    "token_messenger_minter",
		FunctionName:  "deposit_for_burn",
		Args: [][]byte{
			bcsU64Arg(amount),
			bcsU32Arg(destinationDomain),
			bcsBytesArg(mintRecipient[:]),
			bcsAddressArg(burnToken),
		},
	}
}

// BuildHandleReceiveMessage builds the mint entry function for a transfer
// arriving on Aptos, carrying the raw message and attestation bytes
func BuildHandleReceiveMessage(
	packageAddress AccountAddress,
	message, attestation []byte,
) (EntryFunction, error) {
	if len(message) == 0 || len(attestation) == 0 {
		return EntryFunction{}, fmt.Errorf("message and attestation bytes are required")
	}
	return EntryFunction{
		ModuleAddress: packageAddress,
		ModuleName:    "message_transmitter",
		FunctionName:  "receive_message",
		Args: [][]byte{
			bcsBytesArg(message),
			bcsBytesArg(attestation),
		},
	}, nil
}
