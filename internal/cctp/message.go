package cctp

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

// Wire layout. Multi-byte integers are little-endian except the body
// amount, which is a big-endian uint256. Offsets are fixed; any length
// other than MessageLength is a decode error.
const (
	HeaderLength  = 116
	BodyLength    = 132
	MessageLength = HeaderLength + BodyLength

	offVersion           = 0
	offSourceDomain      = 4
	offDestinationDomain = 8
	offNonce             = 12
	offSender            = 20
	offRecipient         = 52
	offDestinationCaller = 84

	offBodyVersion   = HeaderLength + 0
	offBurnToken     = HeaderLength + 4
	offMintRecipient = HeaderLength + 36
	offAmount        = HeaderLength + 68
	offMessageSender = HeaderLength + 100
)

// SupportedVersion is the only header and body version this client handles
const SupportedVersion uint32 = 0

// Message is the cross-chain burn message. Addresses are normalized to
// 32 bytes regardless of the chain's native encoding.
type Message struct {
	Version           uint32
	SourceDomain      uint32
	DestinationDomain uint32
	Nonce             uint64
	Sender            [32]byte
	Recipient         [32]byte
	DestinationCaller [32]byte
	Body              BurnBody
}

// BurnBody is the token-burn payload inside a Message
type BurnBody struct {
	Version       uint32
	BurnToken     [32]byte
	MintRecipient [32]byte
	Amount        *big.Int
	MessageSender [32]byte
}

// Encode serializes the message to its fixed 248-byte wire form
func (m *Message) Encode() ([]byte, error) {
	if m.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported message version %d: %w", m.Version, domainerrors.ErrMessageEncoding)
	}
	if m.Body.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported body version %d: %w", m.Body.Version, domainerrors.ErrMessageEncoding)
	}
	if m.Body.Amount == nil || m.Body.Amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be a non-negative integer: %w", domainerrors.ErrMessageEncoding)
	}
	if m.Body.Amount.BitLen() > 256 {
		return nil, fmt.Errorf("amount overflows uint256: %w", domainerrors.ErrMessageEncoding)
	}

	buf := make([]byte, MessageLength)
	binary.LittleEndian.PutUint32(buf[offVersion:], m.Version)
	binary.LittleEndian.PutUint32(buf[offSourceDomain:], m.SourceDomain)
	binary.LittleEndian.PutUint32(buf[offDestinationDomain:], m.DestinationDomain)
	binary.LittleEndian.PutUint64(buf[offNonce:], m.Nonce)
	copy(buf[offSender:], m.Sender[:])
	copy(buf[offRecipient:], m.Recipient[:])
	copy(buf[offDestinationCaller:], m.DestinationCaller[:])

	binary.LittleEndian.PutUint32(buf[offBodyVersion:], m.Body.Version)
	copy(buf[offBurnToken:], m.Body.BurnToken[:])
	copy(buf[offMintRecipient:], m.Body.MintRecipient[:])
	m.Body.Amount.FillBytes(buf[offAmount : offAmount+32])
	copy(buf[offMessageSender:], m.Body.MessageSender[:])

	return buf, nil
}

// Decode parses a 248-byte wire message. Length and version deviations
// are rejected rather than tolerated; a truncated or shifted message
// silently misroutes funds otherwise.
func Decode(data []byte) (*Message, error) {
	if len(data) != MessageLength {
		return nil, fmt.Errorf("message length %d, want %d: %w", len(data), MessageLength, domainerrors.ErrMessageDecoding)
	}

	m := &Message{
		Version:           binary.LittleEndian.Uint32(data[offVersion:]),
		SourceDomain:      binary.LittleEndian.Uint32(data[offSourceDomain:]),
		DestinationDomain: binary.LittleEndian.Uint32(data[offDestinationDomain:]),
		Nonce:             binary.LittleEndian.Uint64(data[offNonce:]),
	}
	copy(m.Sender[:], data[offSender:])
	copy(m.Recipient[:], data[offRecipient:])
	copy(m.DestinationCaller[:], data[offDestinationCaller:])

	if m.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported message version %d: %w", m.Version, domainerrors.ErrMessageDecoding)
	}

	m.Body.Version = binary.LittleEndian.Uint32(data[offBodyVersion:])
	if m.Body.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported body version %d: %w", m.Body.Version, domainerrors.ErrMessageDecoding)
	}
	copy(m.Body.BurnToken[:], data[offBurnToken:])
	copy(m.Body.MintRecipient[:], data[offMintRecipient:])
	m.Body.Amount = new(big.Int).SetBytes(data[offAmount : offAmount+32])
	copy(m.Body.MessageSender[:], data[offMessageSender:])

	return m, nil
}

// ExtractMintRecipient returns the mint recipient of an encoded message
// without exposing the rest of the decode to the caller
func ExtractMintRecipient(data []byte) ([32]byte, error) {
	m, err := Decode(data)
	if err != nil {
		return [32]byte{}, err
	}
	return m.Body.MintRecipient, nil
}

// Hash returns the keccak-256 digest of the encoded message. This is the
// identifier the attestation oracle signs over and keys its lookups by.
func Hash(data []byte) [32]byte {
	var h [32]byte
	copy(h[:], crypto.Keccak256(data))
	return h
}

// HashHex returns the 0x-prefixed hex form of Hash, the shape expected in
// oracle lookup paths
func HashHex(data []byte) string {
	h := Hash(data)
	return "0x" + hex.EncodeToString(h[:])
}
