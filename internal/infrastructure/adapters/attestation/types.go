package attestation

import (
	"encoding/hex"
	"strings"
)

// Response is the oracle's lookup envelope
type Response struct {
	Messages []OracleMessage `json:"messages"`
}

// OracleMessage is one attested message entry
type OracleMessage struct {
	Attestation string `json:"attestation"`
	Message     string `json:"message"`
	EventNonce  string `json:"eventNonce"`
}

// IsPending reports whether the oracle has seen the message but not yet
// signed it. The sentinel value is textual and case-insensitive.
func (m *OracleMessage) IsPending() bool {
	return strings.EqualFold(strings.TrimSpace(m.Attestation), "PENDING")
}

// Attestation is a ready, decoded attestation result
type Attestation struct {
	Message     []byte
	Attestation []byte
	EventNonce  string
}

// decodeHexField decodes an optionally 0x-prefixed hex string
func decodeHexField(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
