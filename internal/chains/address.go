package chains

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ToUniversalBytes32 converts a chain-native address string to the
// protocol's normalized 32-byte form. Solana addresses are base-58 encoded
// 32-byte keys; Aptos addresses are 0x-prefixed hex, zero-padded on the
// left when shorter than 32 bytes.
func ToUniversalBytes32(native string, kind Kind) ([32]byte, error) {
	var out [32]byte
	switch kind {
	case KindSolana:
		raw, err := base58.Decode(native)
		if err != nil {
			return out, fmt.Errorf("invalid base58 address %q: %w", native, err)
		}
		if len(raw) != 32 {
			return out, fmt.Errorf("solana address %q decodes to %d bytes, want 32", native, len(raw))
		}
		copy(out[:], raw)
		return out, nil

	case KindAptos:
		s := strings.TrimPrefix(strings.ToLower(native), "0x")
		if s == "" || len(s) > 64 {
			return out, fmt.Errorf("invalid aptos address %q", native)
		}
		if len(s)%2 == 1 {
			s = "0" + s
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return out, fmt.Errorf("invalid aptos address %q: %w", native, err)
		}
		copy(out[32-len(raw):], raw)
		return out, nil

	default:
		return out, fmt.Errorf("unsupported chain kind %q", kind)
	}
}

// FromUniversalBytes32 converts a normalized 32-byte address back to the
// chain's native encoding. Aptos addresses use the full 64-hex-digit long
// form so the round trip through ToUniversalBytes32 is lossless.
func FromUniversalBytes32(addr [32]byte, kind Kind) (string, error) {
	switch kind {
	case KindSolana:
		return base58.Encode(addr[:]), nil
	case KindAptos:
		return "0x" + hex.EncodeToString(addr[:]), nil
	default:
		return "", fmt.Errorf("unsupported chain kind %q", kind)
	}
}
