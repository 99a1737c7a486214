package attestation

import "context"

// Fetcher defines the interface for attestation oracle operations
type Fetcher interface {
	// FetchAttestation polls the oracle until the attestation for the
	// message is ready, the attempt budget is exhausted, or ctx is done
	FetchAttestation(ctx context.Context, sourceDomain uint32, messageID string) (*Attestation, error)
}

// Ensure Client implements Fetcher interface
var _ Fetcher = (*Client)(nil)
