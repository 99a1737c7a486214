package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

// Client wraps a primary and an optional fallback RPC endpoint behind one
// interface. Every call tries the primary first and falls back on error;
// neither endpoint is ever mutated or monkey-patched after construction.
type Client struct {
	primary  *rpc.Client
	fallback *rpc.Client
	logger   *zap.Logger

	confirmMaxRetries int
	confirmRetryDelay time.Duration
}

// NewClient creates a resilient RPC client. fallbackEndpoint may be empty,
// in which case only the primary is used.
func NewClient(endpoint, fallbackEndpoint string, confirmMaxRetries int, confirmRetryDelay time.Duration, logger *zap.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("solana rpc endpoint is required")
	}
	c := &Client{
		primary:           rpc.New(endpoint),
		logger:            logger,
		confirmMaxRetries: confirmMaxRetries,
		confirmRetryDelay: confirmRetryDelay,
	}
	if fallbackEndpoint != "" {
		c.fallback = rpc.New(fallbackEndpoint)
	}
	return c, nil
}

// withFallback runs fn against the primary endpoint, retrying once against
// the fallback when the primary fails
func (c *Client) withFallback(ctx context.Context, operation string, fn func(*rpc.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := fn(c.primary)
	if err == nil {
		return nil
	}
	if c.fallback == nil {
		return fmt.Errorf("%s failed: %w", operation, err)
	}

	c.logger.Warn("primary RPC endpoint failed, retrying on fallback",
		zap.String("operation", operation),
		zap.Error(err))

	if fbErr := fn(c.fallback); fbErr != nil {
		return fmt.Errorf("%s failed on primary (%v) and fallback: %w", operation, err, fbErr)
	}
	return nil
}

// GetLatestBlockhash returns a recent blockhash for transaction building
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var blockhash solana.Hash
	err := c.withFallback(ctx, "get_latest_blockhash", func(client *rpc.Client) error {
		resp, innerErr := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if innerErr != nil {
			return innerErr
		}
		blockhash = resp.Value.Blockhash
		return nil
	})
	return blockhash, err
}

// SendTransaction submits a signed transaction and returns its signature
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (string, error) {
	if len(tx.Signatures) == 0 {
		return "", fmt.Errorf("transaction has no signatures: %w", domainerrors.ErrSubmission)
	}
	sig := tx.Signatures[0].String()

	err := c.withFallback(ctx, "send_transaction", func(client *rpc.Client) error {
		_, innerErr := client.SendTransaction(ctx, tx)
		return innerErr
	})
	if err != nil {
		return "", &domainerrors.SubmissionError{Chain: "solana", Err: err}
	}
	return sig, nil
}

// ConfirmTransaction polls signature status with bounded retries. A
// timeout is ambiguous: the transaction may still land, so the error is a
// confirmation timeout, never a submission failure.
func (c *Client) ConfirmTransaction(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid transaction signature %q: %w", signature, err)
	}

	for attempt := 1; attempt <= c.confirmMaxRetries; attempt++ {
		var statuses *rpc.GetSignatureStatusesResult
		err := c.withFallback(ctx, "get_signature_statuses", func(client *rpc.Client) error {
			var innerErr error
			statuses, innerErr = client.GetSignatureStatuses(ctx, false, sig)
			return innerErr
		})
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return &domainerrors.SubmissionError{
					Chain: "solana",
					Err:   fmt.Errorf("transaction %s failed on-chain: %v", signature, status.Err),
				}
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.confirmRetryDelay):
		}
	}

	return fmt.Errorf("transaction %s not confirmed after %d attempts: %w",
		signature, c.confirmMaxRetries, domainerrors.ErrConfirmationTimeout)
}

// GetBalance returns an account's lamport balance
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var balance uint64
	err := c.withFallback(ctx, "get_balance", func(client *rpc.Client) error {
		resp, innerErr := client.GetBalance(ctx, account, rpc.CommitmentFinalized)
		if innerErr != nil {
			return innerErr
		}
		balance = resp.Value
		return nil
	})
	return balance, err
}

// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for an
// account of the given data size
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	var minimum uint64
	err := c.withFallback(ctx, "get_minimum_balance_for_rent_exemption", func(client *rpc.Client) error {
		var innerErr error
		minimum, innerErr = client.GetMinimumBalanceForRentExemption(ctx, dataSize, rpc.CommitmentFinalized)
		return innerErr
	})
	return minimum, err
}

// AccountExists reports whether an account exists on-chain
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	var exists bool
	err := c.withFallback(ctx, "get_account_info", func(client *rpc.Client) error {
		resp, innerErr := client.GetAccountInfo(ctx, account)
		if innerErr == rpc.ErrNotFound {
			exists = false
			return nil
		}
		if innerErr != nil {
			return innerErr
		}
		exists = resp.Value != nil
		return nil
	})
	return exists, err
}

// Health reports whether the primary or fallback endpoint is reachable
func (c *Client) Health(ctx context.Context) error {
	return c.withFallback(ctx, "get_health", func(client *rpc.Client) error {
		_, innerErr := client.GetHealth(ctx)
		return innerErr
	})
}
