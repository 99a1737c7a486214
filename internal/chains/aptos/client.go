package aptos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

const (
	defaultTimeout       = 30 * time.Second
	maxRequestRetries    = 3
	maxRequestsPerSecond = 10

	bcsContentType = "application/x.aptos.signed_transaction+bcs"
)

// Config represents Aptos fullnode client configuration
type Config struct {
	RESTEndpoint      string
	Timeout           time.Duration
	ConfirmMaxRetries int
	ConfirmRetryDelay time.Duration
}

// Client is an Aptos fullnode REST API client
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

// NewClient creates a new Aptos fullnode client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.RESTEndpoint == "" {
		return nil, fmt.Errorf("aptos rest endpoint is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	cbSettings := gobreaker.Settings{
		Name:        "AptosFullnode",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Aptos circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1),
		logger:         logger,
	}, nil
}

// AccountInfo is the fullnode's account envelope. Integers arrive as
// decimal strings.
type AccountInfo struct {
	SequenceNumber    string `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

// LedgerInfo describes the node's current ledger state
type LedgerInfo struct {
	ChainID         uint8  `json:"chain_id"`
	LedgerVersion   string `json:"ledger_version"`
	LedgerTimestamp string `json:"ledger_timestamp"`
}

// TransactionInfo is the subset of the transaction envelope the transfer
// flow needs
type TransactionInfo struct {
	Type     string `json:"type"`
	Hash     string `json:"hash"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status"`
	Version  string `json:"version"`
}

// pendingTransactionType marks a transaction still in the mempool
const pendingTransactionType = "pending_transaction"

// GetAccount fetches account state, including the next sequence number
func (c *Client) GetAccount(ctx context.Context, address AccountAddress) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.get(ctx, "/v1/accounts/"+address.String(), &info); err != nil {
		return nil, fmt.Errorf("get account %s: %w", address, err)
	}
	return &info, nil
}

// SequenceNumber returns the account's next sequence number
func (c *Client) SequenceNumber(ctx context.Context, address AccountAddress) (uint64, error) {
	info, err := c.GetAccount(ctx, address)
	if err != nil {
		return 0, err
	}
	seq, err := strconv.ParseUint(info.SequenceNumber, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sequence number %q: %w", info.SequenceNumber, err)
	}
	return seq, nil
}

// GetLedgerInfo fetches chain id and current ledger time
func (c *Client) GetLedgerInfo(ctx context.Context) (*LedgerInfo, error) {
	var info LedgerInfo
	if err := c.get(ctx, "/v1", &info); err != nil {
		return nil, fmt.Errorf("get ledger info: %w", err)
	}
	return &info, nil
}

// LedgerTimestamp returns the node's current ledger time. Transaction
// expiry is computed from this, refreshed immediately before signing so a
// stale local clock never produces an already-expired transaction.
func (c *Client) LedgerTimestamp(ctx context.Context) (time.Time, error) {
	info, err := c.GetLedgerInfo(ctx)
	if err != nil {
		return time.Time{}, err
	}
	micros, err := strconv.ParseUint(info.LedgerTimestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ledger timestamp %q: %w", info.LedgerTimestamp, err)
	}
	return time.UnixMicro(int64(micros)), nil
}

// SubmitTransaction submits a BCS-encoded signed transaction and returns
// its hash
func (c *Client) SubmitTransaction(ctx context.Context, tx *SignedTransaction) (string, error) {
	encoded, err := tx.Encode()
	if err != nil {
		return "", &domainerrors.SubmissionError{Chain: "aptos", Err: err}
	}

	var info TransactionInfo
	if err := c.post(ctx, "/v1/transactions", bcsContentType, encoded, &info); err != nil {
		return "", &domainerrors.SubmissionError{Chain: "aptos", Err: err}
	}
	return info.Hash, nil
}

// GetTransactionByHash looks up a transaction. A 404 means the node has
// not seen it yet, reported as found=false rather than an error.
func (c *Client) GetTransactionByHash(ctx context.Context, hash string) (*TransactionInfo, bool, error) {
	var info TransactionInfo
	err := c.get(ctx, "/v1/transactions/by_hash/"+hash, &info)
	if err != nil {
		var apiErr *apiError
		if asAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get transaction %s: %w", hash, err)
	}
	return &info, true, nil
}

// WaitForTransaction polls until the transaction is committed, with
// bounded retries. An on-chain abort is a submission failure; exhausting
// retries is an ambiguous confirmation timeout.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) error {
	for attempt := 1; attempt <= c.config.ConfirmMaxRetries; attempt++ {
		info, found, err := c.GetTransactionByHash(ctx, hash)
		if err != nil {
			c.logger.Warn("transaction lookup failed, will retry",
				zap.String("hash", hash),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if found && info.Type != pendingTransactionType {
			if !info.Success {
				return &domainerrors.SubmissionError{
					Chain: "aptos",
					Err:   fmt.Errorf("transaction %s aborted: %s", hash, info.VMStatus),
				}
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.ConfirmRetryDelay):
		}
	}
	return fmt.Errorf("transaction %s not committed after %d attempts: %w",
		hash, c.config.ConfirmMaxRetries, domainerrors.ErrConfirmationTimeout)
}

// ViewBalance calls the primary fungible store balance view function
func (c *Client) ViewBalance(ctx context.Context, owner, metadata AccountAddress) (uint64, error) {
	request := map[string]interface{}{
		"function":       "0x1::primary_fungible_store::balance",
		"type_arguments": []string{"0x1::fungible_asset::Metadata"},
		"arguments":      []string{owner.String(), metadata.String()},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return 0, fmt.Errorf("marshal view request: %w", err)
	}

	var result []string
	if err := c.post(ctx, "/v1/view", "application/json", body, &result); err != nil {
		return 0, fmt.Errorf("view balance: %w", err)
	}
	if len(result) == 0 {
		return 0, fmt.Errorf("view balance: empty result")
	}
	balance, err := strconv.ParseUint(result[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid balance %q: %w", result[0], err)
	}
	return balance, nil
}

// Health checks node reachability
func (c *Client) Health(ctx context.Context) error {
	_, err := c.GetLedgerInfo(ctx)
	return err
}

// apiError is a non-2xx fullnode response
type apiError struct {
	StatusCode int
	Message    string `json:"message"`
	ErrorCode  string `json:"error_code"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("aptos api error: status %d, code %s: %s", e.StatusCode, e.ErrorCode, e.Message)
}

func asAPIError(err error, target **apiError) bool {
	for err != nil {
		if ae, ok := err.(*apiError); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (c *Client) get(ctx context.Context, path string, response interface{}) error {
	return c.do(ctx, http.MethodGet, path, "", nil, response)
}

func (c *Client) post(ctx context.Context, path, contentType string, body []byte, response interface{}) error {
	return c.do(ctx, http.MethodPost, path, contentType, body, response)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doInternal(ctx, method, path, contentType, body, response)
	})
	return err
}

func (c *Client) doInternal(ctx context.Context, method, path, contentType string, body []byte, response interface{}) error {
	fullURL := c.config.RESTEndpoint + path

	var lastErr error
	for attempt := 0; attempt <= maxRequestRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		// Retry on 5xx
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			ae := &apiError{StatusCode: resp.StatusCode}
			if json.Unmarshal(respBody, ae) == nil && ae.Message != "" {
				return ae
			}
			return &apiError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}

		if response != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, response); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}
