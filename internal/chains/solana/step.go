package solana

// TransferStep is one step of a transaction signing flow. The set of
// steps is closed; drivers switch over the concrete types and treat
// anything else as a programming error.
type TransferStep interface {
	isTransferStep()
}

// NeedsSignature asks for the next required co-signer's signature
type NeedsSignature struct {
	Signer *Wallet
}

// NeedsSponsorSignature asks for the fee sponsor's signature. The
// sponsor always signs last so it endorses the final transaction bytes.
type NeedsSponsorSignature struct {
	Sponsor *Wallet
}

// Complete reports that every required signature is present
type Complete struct{}

func (NeedsSignature) isTransferStep()        {}
func (NeedsSponsorSignature) isTransferStep() {}
func (Complete) isTransferStep()              {}

// SigningFlow yields the signature steps a transaction needs, in order:
// each co-signer, then the sponsor when one is configured, then Complete.
type SigningFlow struct {
	steps []TransferStep
	next  int
}

// NewSigningFlow builds the flow for the given co-signers. sponsor may
// be nil when the transaction is not sponsor co-signed.
func NewSigningFlow(signers []*Wallet, sponsor *Wallet) *SigningFlow {
	steps := make([]TransferStep, 0, len(signers)+2)
	for _, s := range signers {
		steps = append(steps, NeedsSignature{Signer: s})
	}
	if sponsor != nil {
		steps = append(steps, NeedsSponsorSignature{Sponsor: sponsor})
	}
	steps = append(steps, Complete{})
	return &SigningFlow{steps: steps}
}

// Next returns the next step. Once the flow has completed it keeps
// returning Complete.
func (f *SigningFlow) Next() TransferStep {
	if f.next >= len(f.steps) {
		return Complete{}
	}
	step := f.steps[f.next]
	f.next++
	return step
}
