package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testWallet(t *testing.T) *Wallet {
	t.Helper()
	w, err := NewEphemeralWallet(zap.NewNop())
	require.NoError(t, err)
	return w
}

func TestSigningFlow_SponsorSignsLast(t *testing.T) {
	user := testWallet(t)
	event := testWallet(t)
	sponsor := testWallet(t)

	flow := NewSigningFlow([]*Wallet{user, event}, sponsor)

	step := flow.Next()
	require.IsType(t, NeedsSignature{}, step)
	assert.Equal(t, user, step.(NeedsSignature).Signer)

	step = flow.Next()
	require.IsType(t, NeedsSignature{}, step)
	assert.Equal(t, event, step.(NeedsSignature).Signer)

	step = flow.Next()
	require.IsType(t, NeedsSponsorSignature{}, step)
	assert.Equal(t, sponsor, step.(NeedsSponsorSignature).Sponsor)

	assert.IsType(t, Complete{}, flow.Next())
}

func TestSigningFlow_NoSponsorStepWithoutSponsor(t *testing.T) {
	flow := NewSigningFlow([]*Wallet{testWallet(t)}, nil)

	require.IsType(t, NeedsSignature{}, flow.Next())
	assert.IsType(t, Complete{}, flow.Next())
}

func TestSigningFlow_CompleteIsSticky(t *testing.T) {
	flow := NewSigningFlow(nil, nil)

	assert.IsType(t, Complete{}, flow.Next())
	assert.IsType(t, Complete{}, flow.Next())
}
