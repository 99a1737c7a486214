// Package solana implements the Solana side of a transfer: address
// derivation for token accounts and protocol-internal PDAs, transaction
// building for the burn and mint instructions, transaction signing, and a
// resilient RPC client over a primary and fallback endpoint.
package solana

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
)

// usedNonceBucket is the number of nonces tracked per used_nonces account.
// The message transmitter program groups nonces into fixed-size bitmap
// buckets; the bucket index is part of the PDA seed.
const usedNonceBucket = 65536

// DeriveTokenAccount computes the associated token account for an owner and
// mint. This is the only valid mint recipient for a transfer to Solana; the
// owner's wallet key itself is never routable.
func DeriveTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token account: %w", err)
	}
	return ata, nil
}

// DeriveProgramAddress finds a program-derived address for the given seeds
func DeriveProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("no valid program address for seeds under %s: %w", programID, err)
	}
	return addr, bump, nil
}

// ReceiveAccounts holds every derived account the receive-message
// instruction references. Each is independently derived from its
// documented seeds, never guessed or fetched from an external hint.
type ReceiveAccounts struct {
	MessageTransmitter   solana.PublicKey
	Authority            solana.PublicKey
	UsedNonces           solana.PublicKey
	TokenMessenger       solana.PublicKey
	RemoteTokenMessenger solana.PublicKey
	TokenMinter          solana.PublicKey
	LocalToken           solana.PublicKey
	TokenPair            solana.PublicKey
	UserTokenAccount     solana.PublicKey
	Custody              solana.PublicKey
	EventAuthority       solana.PublicKey
}

// DeriveReceiveAccounts derives the PDA set for minting a burn message on
// Solana. sourceDomain, nonce, burnToken and mintRecipient come from the
// decoded message; the program ids and local mint come from configuration.
func DeriveReceiveAccounts(
	sourceDomain uint32,
	nonce uint64,
	burnToken [32]byte,
	mintRecipient [32]byte,
	messageTransmitterProgram solana.PublicKey,
	tokenMessengerMinterProgram solana.PublicKey,
	localMint solana.PublicKey,
) (*ReceiveAccounts, error) {
	accounts := &ReceiveAccounts{
		UserTokenAccount: solana.PublicKeyFromBytes(mintRecipient[:]),
	}

	var err error
	accounts.MessageTransmitter, _, err = DeriveProgramAddress(
		[][]byte{[]byte("message_transmitter")},
		messageTransmitterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.Authority, _, err = DeriveProgramAddress(
		[][]byte{[]byte("message_transmitter_authority"), tokenMessengerMinterProgram.Bytes()},
		messageTransmitterProgram,
	)
	if err != nil {
		return nil, err
	}

	// Nonces are grouped in fixed-size buckets; the seed is the decimal
	// bucket index, not the nonce itself
	bucket := nonce / usedNonceBucket
	accounts.UsedNonces, _, err = DeriveProgramAddress(
		[][]byte{
			[]byte("used_nonces"),
			[]byte(strconv.FormatUint(bucket, 10)),
		},
		messageTransmitterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.TokenMessenger, _, err = DeriveProgramAddress(
		[][]byte{[]byte("token_messenger")},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	sourceDomainSeed := make([]byte, 4)
	binary.BigEndian.PutUint32(sourceDomainSeed, sourceDomain)
	accounts.RemoteTokenMessenger, _, err = DeriveProgramAddress(
		[][]byte{[]byte("remote_token_messenger"), sourceDomainSeed},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.TokenMinter, _, err = DeriveProgramAddress(
		[][]byte{[]byte("token_minter")},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.LocalToken, _, err = DeriveProgramAddress(
		[][]byte{[]byte("local_token"), localMint.Bytes()},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.TokenPair, _, err = DeriveProgramAddress(
		[][]byte{[]byte("token_pair"), sourceDomainSeed, burnToken[:]},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.Custody, _, err = DeriveProgramAddress(
		[][]byte{[]byte("custody"), localMint.Bytes()},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.EventAuthority, _, err = DeriveProgramAddress(
		[][]byte{[]byte("__event_authority")},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// BurnAccounts holds the derived accounts referenced by the
// deposit-for-burn instruction when Solana is the source chain
type BurnAccounts struct {
	SenderAuthority      solana.PublicKey
	MessageTransmitter   solana.PublicKey
	TokenMessenger       solana.PublicKey
	RemoteTokenMessenger solana.PublicKey
	TokenMinter          solana.PublicKey
	LocalToken           solana.PublicKey
	EventAuthority       solana.PublicKey
}

// DeriveBurnAccounts derives the PDA set for burning on Solana toward the
// given destination domain
func DeriveBurnAccounts(
	destinationDomain uint32,
	messageTransmitterProgram solana.PublicKey,
	tokenMessengerMinterProgram solana.PublicKey,
	localMint solana.PublicKey,
) (*BurnAccounts, error) {
	accounts := &BurnAccounts{}

	var err error
	accounts.SenderAuthority, _, err = DeriveProgramAddress(
		[][]byte{[]byte("sender_authority")},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.MessageTransmitter, _, err = DeriveProgramAddress(
		[][]byte{[]byte("message_transmitter")},
		messageTransmitterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.TokenMessenger, _, err = DeriveProgramAddress(
		[][]byte{[]byte("token_messenger")},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	destDomainSeed := make([]byte, 4)
	binary.BigEndian.PutUint32(destDomainSeed, destinationDomain)
	accounts.RemoteTokenMessenger, _, err = DeriveProgramAddress(
		[][]byte{[]byte("remote_token_messenger"), destDomainSeed},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.TokenMinter, _, err = DeriveProgramAddress(
		[][]byte{[]byte("token_minter")},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.LocalToken, _, err = DeriveProgramAddress(
		[][]byte{[]byte("local_token"), localMint.Bytes()},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	accounts.EventAuthority, _, err = DeriveProgramAddress(
		[][]byte{[]byte("__event_authority")},
		tokenMessengerMinterProgram,
	)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}
