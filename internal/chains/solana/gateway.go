package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courier-service/courier_service/internal/cctp"
	"github.com/courier-service/courier_service/internal/chains"
)

// EphemeralRegistrar records ephemeral accounts funded during a burn so
// their balances can be swept back after the attempt terminates
type EphemeralRegistrar interface {
	RegisterEphemeral(ctx context.Context, attemptID uuid.UUID, wallet *Wallet, fundingTxID string, lamports uint64) error
}

// GatewayConfig holds the program and token addresses the gateway targets
type GatewayConfig struct {
	MessageTransmitterProgram   solana.PublicKey
	TokenMessengerMinterProgram solana.PublicKey
	USDCMint                    solana.PublicKey
	ComputeUnitLimit            uint32
	EphemeralFundLamports       uint64
}

// Gateway implements the Solana leg of a transfer: deriving the routable
// mint recipient, burning toward another domain, and minting an attested
// message that arrived here
type Gateway struct {
	client     *Client
	wallet     *Wallet
	feeSponsor *Wallet
	registrar  EphemeralRegistrar
	config     GatewayConfig
	chain      chains.Chain
	logger     *zap.Logger
}

// NewGateway creates the Solana gateway. feeSponsor may be nil when burns
// are not sponsor co-signed.
func NewGateway(
	client *Client,
	wallet *Wallet,
	feeSponsor *Wallet,
	registrar EphemeralRegistrar,
	config GatewayConfig,
	registry *chains.Registry,
	logger *zap.Logger,
) (*Gateway, error) {
	chain, err := registry.Get("solana")
	if err != nil {
		return nil, err
	}
	return &Gateway{
		client:     client,
		wallet:     wallet,
		feeSponsor: feeSponsor,
		registrar:  registrar,
		config:     config,
		chain:      chain,
		logger:     logger,
	}, nil
}

// Chain returns the chain descriptor this gateway serves
func (g *Gateway) Chain() chains.Chain {
	return g.chain
}

// ValidateDestinationAddress checks that the address is a well-formed
// Solana public key
func (g *Gateway) ValidateDestinationAddress(address string) error {
	_, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return fmt.Errorf("invalid solana address %q: %w", address, err)
	}
	return nil
}

// DeriveMintRecipient derives the associated token account for the
// destination owner. The owner's wallet key is never the recipient; a
// mint routed to it would be unrecoverable.
func (g *Gateway) DeriveMintRecipient(ctx context.Context, destinationAddress string) ([32]byte, string, error) {
	owner, err := solana.PublicKeyFromBase58(destinationAddress)
	if err != nil {
		return [32]byte{}, "", fmt.Errorf("invalid destination address %q: %w", destinationAddress, err)
	}

	ata, err := DeriveTokenAccount(owner, g.config.USDCMint)
	if err != nil {
		return [32]byte{}, "", err
	}

	var universal [32]byte
	copy(universal[:], ata.Bytes())
	return universal, ata.String(), nil
}

// Burn submits a deposit-for-burn transaction toward the destination
// domain. A throwaway event-account keypair co-signs; it is funded from
// the user wallet and registered for a later sweep.
func (g *Gateway) Burn(ctx context.Context, attemptID uuid.UUID, amountBaseUnits uint64, destinationDomain uint32, mintRecipient [32]byte) (string, error) {
	accounts, err := DeriveBurnAccounts(destinationDomain,
		g.config.MessageTransmitterProgram, g.config.TokenMessengerMinterProgram, g.config.USDCMint)
	if err != nil {
		return "", err
	}

	burnTokenAccount, err := DeriveTokenAccount(g.wallet.PublicKey(), g.config.USDCMint)
	if err != nil {
		return "", err
	}

	eventWallet, err := NewEphemeralWallet(g.logger)
	if err != nil {
		return "", err
	}

	if g.config.EphemeralFundLamports > 0 {
		fundingTxID, err := g.fundEphemeral(ctx, eventWallet.PublicKey(), g.config.EphemeralFundLamports)
		if err != nil {
			return "", fmt.Errorf("fund event account: %w", err)
		}
		if g.registrar != nil {
			if err := g.registrar.RegisterEphemeral(ctx, attemptID, eventWallet, fundingTxID, g.config.EphemeralFundLamports); err != nil {
				return "", fmt.Errorf("register ephemeral account: %w", err)
			}
		}
	}

	ix := BuildDepositForBurnInstruction(
		DepositForBurnParams{
			Amount:            amountBaseUnits,
			DestinationDomain: destinationDomain,
			MintRecipient:     mintRecipient,
		},
		g.wallet.PublicKey(),
		g.wallet.PublicKey(),
		burnTokenAccount,
		g.config.USDCMint,
		eventWallet.PublicKey(),
		accounts,
		g.config.MessageTransmitterProgram,
		g.config.TokenMessengerMinterProgram,
	)

	// blockhash is fetched immediately before signing so the transaction
	// never goes out with a stale expiry
	blockhash, err := g.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get blockhash: %w", err)
	}

	feePayer := g.wallet.PublicKey()
	if g.feeSponsor != nil {
		feePayer = g.feeSponsor.PublicKey()
	}
	tx, err := NewTransaction(blockhash, feePayer, g.config.ComputeUnitLimit, ix)
	if err != nil {
		return "", err
	}

	// user signs first, the event keypair co-signs, the sponsor last
	if err := g.sign(tx, NewSigningFlow([]*Wallet{g.wallet, eventWallet}, g.feeSponsor)); err != nil {
		return "", err
	}

	txID, err := g.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	g.logger.Info("burn transaction submitted",
		zap.String("tx_id", txID),
		zap.Uint64("amount_base_units", amountBaseUnits),
		zap.Uint32("destination_domain", destinationDomain))
	return txID, nil
}

// Mint submits a receive-message transaction carrying the raw message and
// attestation bytes. Every referenced account is derived from the decoded
// message.
func (g *Gateway) Mint(ctx context.Context, message, attestation []byte) (string, error) {
	decoded, err := cctp.Decode(message)
	if err != nil {
		return "", err
	}

	accounts, err := DeriveReceiveAccounts(
		decoded.SourceDomain,
		decoded.Nonce,
		decoded.Body.BurnToken,
		decoded.Body.MintRecipient,
		g.config.MessageTransmitterProgram,
		g.config.TokenMessengerMinterProgram,
		g.config.USDCMint,
	)
	if err != nil {
		return "", err
	}

	ix, err := BuildReceiveMessageInstruction(message, attestation, g.wallet.PublicKey(), accounts,
		g.config.MessageTransmitterProgram, g.config.TokenMessengerMinterProgram)
	if err != nil {
		return "", err
	}

	blockhash, err := g.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get blockhash: %w", err)
	}

	tx, err := NewTransaction(blockhash, g.wallet.PublicKey(), g.config.ComputeUnitLimit, ix)
	if err != nil {
		return "", err
	}
	if err := g.sign(tx, NewSigningFlow([]*Wallet{g.wallet}, nil)); err != nil {
		return "", err
	}

	txID, err := g.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	g.logger.Info("mint transaction submitted",
		zap.String("tx_id", txID),
		zap.Uint64("nonce", decoded.Nonce),
		zap.Uint32("source_domain", decoded.SourceDomain))
	return txID, nil
}

// Confirm waits for the transaction to reach a confirmed commitment
func (g *Gateway) Confirm(ctx context.Context, txID string) error {
	start := time.Now()
	err := g.client.ConfirmTransaction(ctx, txID)
	if err == nil {
		g.logger.Info("transaction confirmed",
			zap.String("tx_id", txID),
			zap.Duration("elapsed", time.Since(start)))
	}
	return err
}

// sign drains a signing flow, applying each required signature in order
func (g *Gateway) sign(tx *solana.Transaction, flow *SigningFlow) error {
	for {
		switch step := flow.Next().(type) {
		case NeedsSignature:
			if err := step.Signer.Sign(tx); err != nil {
				return err
			}
		case NeedsSponsorSignature:
			if err := step.Sponsor.Sign(tx); err != nil {
				return err
			}
		case Complete:
			return nil
		default:
			return fmt.Errorf("unexpected signing step %T", step)
		}
	}
}

func (g *Gateway) fundEphemeral(ctx context.Context, to solana.PublicKey, lamports uint64) (string, error) {
	ix := BuildTransferInstruction(g.wallet.PublicKey(), to, lamports)

	blockhash, err := g.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get blockhash: %w", err)
	}
	tx, err := NewTransaction(blockhash, g.wallet.PublicKey(), 0, ix)
	if err != nil {
		return "", err
	}
	if err := g.wallet.Sign(tx); err != nil {
		return "", err
	}

	txID, err := g.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}
	if err := g.client.ConfirmTransaction(ctx, txID); err != nil {
		return "", err
	}
	return txID, nil
}
