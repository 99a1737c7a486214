package aptos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courier-service/courier_service/internal/chains"
)

// GatewayConfig holds the package and token addresses the gateway targets
type GatewayConfig struct {
	TokenMessengerMinterPackage AccountAddress
	MessageTransmitterPackage   AccountAddress
	USDCMetadata                AccountAddress
	MaxGasAmount                uint64
	GasUnitPrice                uint64
	TxTTL                       time.Duration
}

// Gateway implements the Aptos leg of a transfer
type Gateway struct {
	client  *Client
	account *Account
	config  GatewayConfig
	chain   chains.Chain
	logger  *zap.Logger
}

// NewGateway creates the Aptos gateway
func NewGateway(
	client *Client,
	account *Account,
	config GatewayConfig,
	registry *chains.Registry,
	logger *zap.Logger,
) (*Gateway, error) {
	chain, err := registry.Get("aptos")
	if err != nil {
		return nil, err
	}
	if config.TxTTL <= 0 {
		return nil, fmt.Errorf("transaction ttl must be positive")
	}
	return &Gateway{
		client:  client,
		account: account,
		config:  config,
		chain:   chain,
		logger:  logger,
	}, nil
}

// Chain returns the chain descriptor this gateway serves
func (g *Gateway) Chain() chains.Chain {
	return g.chain
}

// ValidateDestinationAddress checks that the address is well-formed hex
func (g *Gateway) ValidateDestinationAddress(address string) error {
	_, err := ParseAddress(address)
	return err
}

// DeriveMintRecipient derives the owner's primary fungible store for the
// configured token metadata. That store, not the owner account, is the
// routable recipient.
func (g *Gateway) DeriveMintRecipient(ctx context.Context, destinationAddress string) ([32]byte, string, error) {
	owner, err := ParseAddress(destinationAddress)
	if err != nil {
		return [32]byte{}, "", err
	}
	store := PrimaryStoreAddress(owner, g.config.USDCMetadata)
	return [32]byte(store), store.String(), nil
}

// Burn submits a deposit-for-burn entry function toward the destination
// domain. attemptID is accepted for interface symmetry; Aptos burns fund
// no ephemeral accounts.
func (g *Gateway) Burn(ctx context.Context, attemptID uuid.UUID, amountBaseUnits uint64, destinationDomain uint32, mintRecipient [32]byte) (string, error) {
	payload := BuildDepositForBurn(
		g.config.TokenMessengerMinterPackage,
		amountBaseUnits,
		destinationDomain,
		mintRecipient,
		g.config.USDCMetadata,
	)

	txID, err := g.submitEntryFunction(ctx, payload)
	if err != nil {
		return "", err
	}

	g.logger.Info("burn transaction submitted",
		zap.String("tx_id", txID),
		zap.Uint64("amount_base_units", amountBaseUnits),
		zap.Uint32("destination_domain", destinationDomain))
	return txID, nil
}

// Mint submits a receive-message entry function carrying the raw message
// and attestation bytes
func (g *Gateway) Mint(ctx context.Context, message, attestation []byte) (string, error) {
	payload, err := BuildHandleReceiveMessage(g.config.MessageTransmitterPackage, message, attestation)
	if err != nil {
		return "", err
	}

	txID, err := g.submitEntryFunction(ctx, payload)
	if err != nil {
		return "", err
	}

	g.logger.Info("mint transaction submitted", zap.String("tx_id", txID))
	return txID, nil
}

// Confirm waits for the transaction to commit successfully
func (g *Gateway) Confirm(ctx context.Context, txID string) error {
	start := time.Now()
	err := g.client.WaitForTransaction(ctx, txID)
	if err == nil {
		g.logger.Info("transaction confirmed",
			zap.String("tx_id", txID),
			zap.Duration("elapsed", time.Since(start)))
	}
	return err
}

// submitEntryFunction assembles, signs and submits a transaction. The
// expiry is computed from the node's ledger time immediately before
// signing, never from the local clock.
func (g *Gateway) submitEntryFunction(ctx context.Context, payload EntryFunction) (string, error) {
	ledger, err := g.client.GetLedgerInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("get ledger info: %w", err)
	}
	ledgerTime, err := g.client.LedgerTimestamp(ctx)
	if err != nil {
		return "", err
	}
	sequence, err := g.client.SequenceNumber(ctx, g.account.Address())
	if err != nil {
		return "", err
	}

	raw := &RawTransaction{
		Sender:                  g.account.Address(),
		SequenceNumber:          sequence,
		Payload:                 payload,
		MaxGasAmount:            g.config.MaxGasAmount,
		GasUnitPrice:            g.config.GasUnitPrice,
		ExpirationTimestampSecs: uint64(ledgerTime.Add(g.config.TxTTL).Unix()),
		ChainID:                 ledger.ChainID,
	}

	signed, err := g.account.SignTransaction(raw)
	if err != nil {
		return "", err
	}
	return g.client.SubmitTransaction(ctx, signed)
}
