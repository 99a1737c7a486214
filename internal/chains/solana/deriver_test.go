package solana

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testMessageTransmitter   = solana.MustPublicKeyFromBase58("CCTPmbSD7gX1bxKPAmg77w8oFzNFpaQiQUWD43TKaecd")
	testTokenMessengerMinter = solana.MustPublicKeyFromBase58("CCTPiPYPc6AsJuwueEnWgSgucamXDZwBd53dQ11YiKX3")
	testUSDCMint             = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

func TestDeriveTokenAccountDeterministic(t *testing.T) {
	owner := solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

	first, err := DeriveTokenAccount(owner, testUSDCMint)
	require.NoError(t, err)
	second, err := DeriveTokenAccount(owner, testUSDCMint)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, owner, first, "token account must differ from the owner's wallet key")
}

func TestDeriveTokenAccountVariesByOwnerAndMint(t *testing.T) {
	ownerA := solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	ownerB := solana.MustPublicKeyFromBase58("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")

	ataA, err := DeriveTokenAccount(ownerA, testUSDCMint)
	require.NoError(t, err)
	ataB, err := DeriveTokenAccount(ownerB, testUSDCMint)
	require.NoError(t, err)
	assert.NotEqual(t, ataA, ataB)

	otherMint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	ataOther, err := DeriveTokenAccount(ownerA, otherMint)
	require.NoError(t, err)
	assert.NotEqual(t, ataA, ataOther)
}

func TestDeriveReceiveAccounts(t *testing.T) {
	var burnToken, mintRecipient [32]byte
	burnToken[0] = 0xAA
	mintRecipient[0] = 0xBB

	accounts, err := DeriveReceiveAccounts(9, 100, burnToken, mintRecipient,
		testMessageTransmitter, testTokenMessengerMinter, testUSDCMint)
	require.NoError(t, err)

	// every derived account is distinct and non-zero
	seen := map[solana.PublicKey]string{}
	for name, pk := range map[string]solana.PublicKey{
		"message_transmitter":    accounts.MessageTransmitter,
		"authority":              accounts.Authority,
		"used_nonces":            accounts.UsedNonces,
		"token_messenger":        accounts.TokenMessenger,
		"remote_token_messenger": accounts.RemoteTokenMessenger,
		"token_minter":           accounts.TokenMinter,
		"local_token":            accounts.LocalToken,
		"token_pair":             accounts.TokenPair,
		"custody":                accounts.Custody,
		"event_authority":        accounts.EventAuthority,
	} {
		assert.False(t, pk.IsZero(), "%s is zero", name)
		if prev, dup := seen[pk]; dup {
			t.Fatalf("%s and %s derived to the same address", name, prev)
		}
		seen[pk] = name
	}

	assert.Equal(t, solana.PublicKeyFromBytes(mintRecipient[:]), accounts.UserTokenAccount)

	// derivation is deterministic
	again, err := DeriveReceiveAccounts(9, 100, burnToken, mintRecipient,
		testMessageTransmitter, testTokenMessengerMinter, testUSDCMint)
	require.NoError(t, err)
	assert.Equal(t, accounts, again)
}

func TestUsedNoncesBucketing(t *testing.T) {
	var burnToken, mintRecipient [32]byte

	derive := func(nonce uint64) solana.PublicKey {
		accounts, err := DeriveReceiveAccounts(9, nonce, burnToken, mintRecipient,
			testMessageTransmitter, testTokenMessengerMinter, testUSDCMint)
		require.NoError(t, err)
		return accounts.UsedNonces
	}

	// nonces in the same bucket of 65536 share a used_nonces account
	assert.Equal(t, derive(1), derive(65535))
	assert.NotEqual(t, derive(65535), derive(65536))
	assert.Equal(t, derive(65536), derive(131071))
}

func TestRemoteTokenMessengerVariesBySourceDomain(t *testing.T) {
	var burnToken, mintRecipient [32]byte

	fromAptos, err := DeriveReceiveAccounts(9, 1, burnToken, mintRecipient,
		testMessageTransmitter, testTokenMessengerMinter, testUSDCMint)
	require.NoError(t, err)

	fromEthereum, err := DeriveReceiveAccounts(0, 1, burnToken, mintRecipient,
		testMessageTransmitter, testTokenMessengerMinter, testUSDCMint)
	require.NoError(t, err)

	assert.NotEqual(t, fromAptos.RemoteTokenMessenger, fromEthereum.RemoteTokenMessenger)
	assert.Equal(t, fromAptos.TokenMessenger, fromEthereum.TokenMessenger)
}

func TestDeriveBurnAccountsDeterministic(t *testing.T) {
	first, err := DeriveBurnAccounts(9, testMessageTransmitter, testTokenMessengerMinter, testUSDCMint)
	require.NoError(t, err)
	second, err := DeriveBurnAccounts(9, testMessageTransmitter, testTokenMessengerMinter, testUSDCMint)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	otherDomain, err := DeriveBurnAccounts(0, testMessageTransmitter, testTokenMessengerMinter, testUSDCMint)
	require.NoError(t, err)
	assert.NotEqual(t, first.RemoteTokenMessenger, otherDomain.RemoteTokenMessenger)
}
