package solana

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
)

// anchorDiscriminator returns the 8-byte instruction discriminator for an
// Anchor program method: the first 8 bytes of sha256("global:<name>")
func anchorDiscriminator(method string) []byte {
	sum := sha256.Sum256([]byte("global:" + method))
	return sum[:8]
}

// BuildSetComputeUnitLimitInstruction creates a compute budget instruction
// capping the transaction's compute units. Instruction type 2 is
// SetComputeUnitLimit; data is the type byte plus a little-endian u32.
func BuildSetComputeUnitLimitInstruction(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], units)

	return solana.NewInstruction(computeBudgetProgramID, []*solana.AccountMeta{}, data)
}

// DepositForBurnParams are the arguments of the deposit-for-burn
// instruction. MintRecipient must already be the derived destination token
// account, never the owner's wallet key.
type DepositForBurnParams struct {
	Amount            uint64
	DestinationDomain uint32
	MintRecipient     [32]byte
}

// BuildDepositForBurnData encodes the borsh argument block for
// deposit_for_burn: discriminator, amount u64 LE, destination domain
// u32 LE, mint recipient 32 bytes
func BuildDepositForBurnData(params DepositForBurnParams) []byte {
	data := make([]byte, 0, 8+8+4+32)
	data = append(data, anchorDiscriminator("deposit_for_burn")...)

	amount := make([]byte, 8)
	binary.LittleEndian.PutUint64(amount, params.Amount)
	data = append(data, amount...)

	domain := make([]byte, 4)
	binary.LittleEndian.PutUint32(domain, params.DestinationDomain)
	data = append(data, domain...)

	data = append(data, params.MintRecipient[:]...)
	return data
}

// BuildDepositForBurnInstruction assembles the burn instruction for a
// transfer leaving Solana. eventRentPayer funds the message-sent event
// account and is refunded when the event account is reclaimed;
// messageSentEvent is a fresh throwaway keypair's public key that must
// co-sign the transaction.
func BuildDepositForBurnInstruction(
	params DepositForBurnParams,
	owner solana.PublicKey,
	eventRentPayer solana.PublicKey,
	burnTokenAccount solana.PublicKey,
	burnTokenMint solana.PublicKey,
	messageSentEvent solana.PublicKey,
	accounts *BurnAccounts,
	messageTransmitterProgram solana.PublicKey,
	tokenMessengerMinterProgram solana.PublicKey,
) solana.Instruction {
	metas := []*solana.AccountMeta{
		{PublicKey: owner, IsWritable: true, IsSigner: true},
		{PublicKey: eventRentPayer, IsWritable: true, IsSigner: true},
		{PublicKey: accounts.SenderAuthority, IsWritable: false, IsSigner: false},
		{PublicKey: burnTokenAccount, IsWritable: true, IsSigner: false},
		{PublicKey: accounts.MessageTransmitter, IsWritable: true, IsSigner: false},
		{PublicKey: accounts.TokenMessenger, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.RemoteTokenMessenger, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.TokenMinter, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.LocalToken, IsWritable: true, IsSigner: false},
		{PublicKey: burnTokenMint, IsWritable: true, IsSigner: false},
		{PublicKey: messageSentEvent, IsWritable: true, IsSigner: true},
		{PublicKey: messageTransmitterProgram, IsWritable: false, IsSigner: false},
		{PublicKey: tokenMessengerMinterProgram, IsWritable: false, IsSigner: false},
		{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
		{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.EventAuthority, IsWritable: false, IsSigner: false},
		{PublicKey: tokenMessengerMinterProgram, IsWritable: false, IsSigner: false},
	}

	return solana.NewInstruction(tokenMessengerMinterProgram, metas, BuildDepositForBurnData(params))
}

// BuildReceiveMessageData encodes the borsh argument block for
// receive_message: discriminator, then message and attestation as
// length-prefixed byte vectors
func BuildReceiveMessageData(message, attestation []byte) []byte {
	data := make([]byte, 0, 8+4+len(message)+4+len(attestation))
	data = append(data, anchorDiscriminator("receive_message")...)

	msgLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(msgLen, uint32(len(message)))
	data = append(data, msgLen...)
	data = append(data, message...)

	attLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(attLen, uint32(len(attestation)))
	data = append(data, attLen...)
	data = append(data, attestation...)

	return data
}

// BuildReceiveMessageInstruction assembles the mint instruction for a
// transfer arriving on Solana. The raw message and attestation bytes ride
// in the instruction data; every referenced account is a PDA derived in
// DeriveReceiveAccounts, none is guessed.
func BuildReceiveMessageInstruction(
	message, attestation []byte,
	payer solana.PublicKey,
	accounts *ReceiveAccounts,
	messageTransmitterProgram solana.PublicKey,
	tokenMessengerMinterProgram solana.PublicKey,
) (solana.Instruction, error) {
	if len(message) == 0 || len(attestation) == 0 {
		return nil, fmt.Errorf("message and attestation bytes are required")
	}

	metas := []*solana.AccountMeta{
		{PublicKey: payer, IsWritable: true, IsSigner: true},
		{PublicKey: payer, IsWritable: false, IsSigner: true}, // caller
		{PublicKey: accounts.Authority, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.MessageTransmitter, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.UsedNonces, IsWritable: true, IsSigner: false},
		{PublicKey: tokenMessengerMinterProgram, IsWritable: false, IsSigner: false}, // receiver
		{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
		// remaining accounts handed through to the token messenger minter
		{PublicKey: accounts.TokenMessenger, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.RemoteTokenMessenger, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.TokenMinter, IsWritable: true, IsSigner: false},
		{PublicKey: accounts.LocalToken, IsWritable: true, IsSigner: false},
		{PublicKey: accounts.TokenPair, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.UserTokenAccount, IsWritable: true, IsSigner: false},
		{PublicKey: accounts.Custody, IsWritable: true, IsSigner: false},
		{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
		{PublicKey: accounts.EventAuthority, IsWritable: false, IsSigner: false},
		{PublicKey: tokenMessengerMinterProgram, IsWritable: false, IsSigner: false},
	}

	return solana.NewInstruction(messageTransmitterProgram, metas, BuildReceiveMessageData(message, attestation)), nil
}

// BuildTransferInstruction creates a system program lamport transfer, used
// for funding ephemeral accounts and sweeping their balances back
func BuildTransferInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	// System program transfer: instruction index 2 (u32 LE) + lamports (u64 LE)
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	metas := []*solana.AccountMeta{
		{PublicKey: from, IsWritable: true, IsSigner: true},
		{PublicKey: to, IsWritable: true, IsSigner: false},
	}

	return solana.NewInstruction(solana.SystemProgramID, metas, data)
}

// NewTransaction assembles instructions into an unsigned transaction with
// a compute budget cap and the given fee payer
func NewTransaction(
	blockhash solana.Hash,
	feePayer solana.PublicKey,
	computeUnitLimit uint32,
	instructions ...solana.Instruction,
) (*solana.Transaction, error) {
	all := make([]solana.Instruction, 0, len(instructions)+1)
	if computeUnitLimit > 0 {
		all = append(all, BuildSetComputeUnitLimitInstruction(computeUnitLimit))
	}
	all = append(all, instructions...)

	tx, err := solana.NewTransaction(all, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}
