package errors

import (
	"errors"
	"fmt"
	"time"
)

// Transfer error categories. Each phase of a transfer maps to exactly one
// of these sentinels so callers can classify a failure without string
// matching. The burned/not-burned distinction is the one users care about.
var (
	// ErrSigningRejected indicates the wallet refused or failed to sign
	ErrSigningRejected = errors.New("signing rejected")

	// ErrSubmission indicates a transaction was rejected at submission
	ErrSubmission = errors.New("transaction submission failed")

	// ErrConfirmationTimeout indicates a submitted transaction was not
	// confirmed within the polling window; its fate is unknown
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")

	// ErrAttestationTimeout indicates the attestation service never
	// returned a signed attestation within the polling budget
	ErrAttestationTimeout = errors.New("attestation polling timed out")

	// ErrRoutingMismatch indicates the burn message routes funds to a
	// different recipient than the one derived for the destination address
	ErrRoutingMismatch = errors.New("mint recipient mismatch")

	// ErrMessageDecoding indicates malformed burn message bytes
	ErrMessageDecoding = errors.New("message decoding failed")

	// ErrMessageEncoding indicates a message field overflowed its wire width
	ErrMessageEncoding = errors.New("message encoding failed")
)

// AttestationTimeoutError carries the polling context for an attestation
// that never became available. Funds are burned when this is returned;
// the attempt stays recoverable via resume.
type AttestationTimeoutError struct {
	MessageHash string
	Attempts    int
	Elapsed     time.Duration
}

func (e *AttestationTimeoutError) Error() string {
	return fmt.Sprintf("attestation for message %s not available after %d attempts over %s",
		e.MessageHash, e.Attempts, e.Elapsed)
}

func (e *AttestationTimeoutError) Unwrap() error {
	return ErrAttestationTimeout
}

// RoutingMismatchError reports a burn message whose embedded mint recipient
// does not match the recipient derived from the destination address. The
// transfer is aborted before the destination leg.
type RoutingMismatchError struct {
	Derived string
	Decoded string
}

func (e *RoutingMismatchError) Error() string {
	return fmt.Sprintf("message mint recipient %s does not match derived recipient %s",
		e.Decoded, e.Derived)
}

func (e *RoutingMismatchError) Unwrap() error {
	return ErrRoutingMismatch
}

// SubmissionError wraps a chain-level rejection with the chain it came from
type SubmissionError struct {
	Chain string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s transaction submission failed: %v", e.Chain, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return ErrSubmission
}

// FundsBurned reports whether the error occurred after the source-chain
// burn was confirmed, i.e. whether user funds are in flight rather than
// still in the source wallet.
func FundsBurned(err error) bool {
	return errors.Is(err, ErrAttestationTimeout) || errors.Is(err, ErrRoutingMismatch)
}

// IsRecoverable reports whether the attempt can be resumed from its
// confirmed burn rather than restarted
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrAttestationTimeout)
}
