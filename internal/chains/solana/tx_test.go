package solana

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDepositForBurnDataLayout(t *testing.T) {
	var recipient [32]byte
	for i := range recipient {
		recipient[i] = byte(i)
	}

	data := BuildDepositForBurnData(DepositForBurnParams{
		Amount:            100000,
		DestinationDomain: 5,
		MintRecipient:     recipient,
	})
	require.Len(t, data, 8+8+4+32)

	wantDisc := sha256.Sum256([]byte("global:deposit_for_burn"))
	assert.Equal(t, wantDisc[:8], data[:8])
	assert.Equal(t, uint64(100000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(data[16:20]))
	assert.Equal(t, recipient[:], data[20:52])
}

func TestReceiveMessageDataLayout(t *testing.T) {
	message := []byte{0xAA, 0xBB, 0xCC}
	attestation := []byte{0x01, 0x02}

	data := BuildReceiveMessageData(message, attestation)
	require.Len(t, data, 8+4+3+4+2)

	wantDisc := sha256.Sum256([]byte("global:receive_message"))
	assert.Equal(t, wantDisc[:8], data[:8])
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, message, data[12:15])
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[15:19]))
	assert.Equal(t, attestation, data[19:21])
}

func TestReceiveMessageInstructionRequiresPayload(t *testing.T) {
	accounts := &ReceiveAccounts{}
	_, err := BuildReceiveMessageInstruction(nil, []byte{1}, solana.PublicKey{}, accounts,
		testMessageTransmitter, testTokenMessengerMinter)
	assert.Error(t, err)

	_, err = BuildReceiveMessageInstruction([]byte{1}, nil, solana.PublicKey{}, accounts,
		testMessageTransmitter, testTokenMessengerMinter)
	assert.Error(t, err)
}

func TestTransferInstructionLayout(t *testing.T) {
	from := solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	to := solana.MustPublicKeyFromBase58("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")

	ix := BuildTransferInstruction(from, to, 5000)
	assert.Equal(t, solana.SystemProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 12)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(5000), binary.LittleEndian.Uint64(data[4:12]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.False(t, accounts[1].IsSigner)
}

func TestComputeUnitLimitInstruction(t *testing.T) {
	ix := BuildSetComputeUnitLimitInstruction(200000)
	assert.Equal(t, computeBudgetProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 5)
	assert.Equal(t, byte(2), data[0])
	assert.Equal(t, uint32(200000), binary.LittleEndian.Uint32(data[1:5]))
}

func TestCoSignProducesBothSignatures(t *testing.T) {
	logger := zap.NewNop()
	user, err := NewEphemeralWallet(logger)
	require.NoError(t, err)
	sponsor, err := NewEphemeralWallet(logger)
	require.NoError(t, err)

	ix := BuildTransferInstruction(user.PublicKey(), sponsor.PublicKey(), 1000)
	tx, err := NewTransaction(solana.Hash{}, sponsor.PublicKey(), 0, ix)
	require.NoError(t, err)

	require.NoError(t, CoSign(tx, user, sponsor))
	require.Len(t, tx.Signatures, 2)
	for _, sig := range tx.Signatures {
		assert.False(t, sig.IsZero())
	}
	assert.NoError(t, tx.VerifySignatures())
}

func TestEphemeralWalletSecretRoundTrip(t *testing.T) {
	w, err := NewEphemeralWallet(zap.NewNop())
	require.NoError(t, err)

	recovered, err := solana.PrivateKeyFromBase58(w.ExportSecret())
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey(), recovered.PublicKey())
}
