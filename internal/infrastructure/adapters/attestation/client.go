package attestation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
	"github.com/courier-service/courier_service/pkg/metrics"
)

const (
	defaultTimeout       = 30 * time.Second
	maxRequestsPerSecond = 10

	signatureLength = 65
)

// Config represents attestation oracle client configuration
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	// InitialDelay seeds the exponential backoff between polls; MaxDelay
	// caps it. GracePeriod is a single fixed wait before the first poll to
	// allow oracle propagation.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	GracePeriod  time.Duration
	// AttesterKeys are the oracle's known signer addresses (0x-prefixed).
	// When VerifySignatures is set, a ready attestation whose recovered
	// signers are not all in this set is rejected.
	AttesterKeys     []string
	VerifySignatures bool
}

// Client polls the attestation oracle for signed cross-chain messages
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	attesters      map[string]struct{}
	logger         *zap.Logger
}

// NewClient creates a new attestation oracle client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("attestation base url is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxAttempts <= 0 {
		return nil, fmt.Errorf("attestation max attempts must be positive")
	}
	if config.InitialDelay <= 0 || config.MaxDelay < config.InitialDelay {
		return nil, fmt.Errorf("invalid attestation backoff bounds")
	}

	attesters := make(map[string]struct{}, len(config.AttesterKeys))
	for _, key := range config.AttesterKeys {
		attesters[strings.ToLower(key)] = struct{}{}
	}
	if config.VerifySignatures && len(attesters) == 0 {
		return nil, fmt.Errorf("signature verification enabled but no attester keys configured")
	}

	cbSettings := gobreaker.Settings{
		Name:        "AttestationOracle",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("attestation circuit breaker state changed",
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
		attesters:      attesters,
		logger:         logger,
	}, nil
}

// FetchAttestation polls GET {base}/{domain}/{messageID} until the oracle
// returns a ready attestation. A 404 and a "PENDING" attestation value are
// both "not yet available"; other errors are retried within the same
// attempt budget. The loop is cancellable between attempts and performs no
// side effects on abort.
func (c *Client) FetchAttestation(ctx context.Context, sourceDomain uint32, messageID string) (*Attestation, error) {
	start := time.Now()
	defer func() {
		metrics.AttestationPollDuration.Observe(time.Since(start).Seconds())
	}()

	if c.config.GracePeriod > 0 {
		if err := sleepCtx(ctx, c.config.GracePeriod); err != nil {
			return nil, err
		}
	}

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.backoffDelay(attempt)); err != nil {
				return nil, err
			}
		}
		metrics.AttestationPollAttempts.Inc()

		result, err := c.fetchOnce(ctx, sourceDomain, messageID)
		if err == nil {
			c.logger.Info("attestation ready",
				zap.String("message_id", messageID),
				zap.Uint32("source_domain", sourceDomain),
				zap.Int("attempts", attempt))
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == errNotReady {
			c.logger.Debug("attestation not yet available",
				zap.String("message_id", messageID),
				zap.Int("attempt", attempt))
			continue
		}
		c.logger.Warn("attestation poll failed, will retry",
			zap.String("message_id", messageID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return nil, &domainerrors.AttestationTimeoutError{
		MessageHash: messageID,
		Attempts:    c.config.MaxAttempts,
		Elapsed:     time.Since(start),
	}
}

// backoffDelay returns the wait before the given 1-based attempt:
// min(initialDelay * 2^(n-1), maxDelay)
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.config.MaxDelay {
			return c.config.MaxDelay
		}
	}
	if delay > c.config.MaxDelay {
		return c.config.MaxDelay
	}
	return delay
}

// fetchOnce performs a single oracle lookup. Only transport failures and
// 5xx responses count against the circuit breaker; a 404 or pending
// sentinel is a healthy "not yet" answer.
func (c *Client) fetchOnce(ctx context.Context, sourceDomain uint32, messageID string) (*Attestation, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.doLookup(ctx, sourceDomain, messageID)
	})
	if err != nil {
		return nil, err
	}
	att, ok := result.(*Attestation)
	if !ok || att == nil {
		return nil, errNotReady
	}
	return att, nil
}

// doLookup returns (nil, nil) for not-yet-available so the breaker counts
// it as success, a non-nil Attestation once ready, and an error only for
// genuine failures
func (c *Client) doLookup(ctx context.Context, sourceDomain uint32, messageID string) (interface{}, error) {
	url := fmt.Sprintf("%s/%d/%s", strings.TrimSuffix(c.config.BaseURL, "/"), sourceDomain, messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("oracle server error: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		errResp := &ErrorResponse{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, errResp) == nil && errResp.Message != "" {
			return nil, errResp
		}
		return nil, fmt.Errorf("oracle error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(response.Messages) == 0 {
		return nil, nil
	}

	msg := response.Messages[0]
	if msg.IsPending() {
		return nil, nil
	}
	if msg.Message == "" || msg.Attestation == "" {
		// well-formed envelope with missing fields is malformed, retry
		return nil, nil
	}

	messageBytes, err := decodeHexField(msg.Message)
	if err != nil {
		return nil, fmt.Errorf("invalid message hex: %w", err)
	}
	attestationBytes, err := decodeHexField(msg.Attestation)
	if err != nil {
		return nil, fmt.Errorf("invalid attestation hex: %w", err)
	}

	att := &Attestation{
		Message:     messageBytes,
		Attestation: attestationBytes,
		EventNonce:  msg.EventNonce,
	}
	if c.config.VerifySignatures {
		if err := c.verifySignatures(att); err != nil {
			return nil, err
		}
	}
	return att, nil
}

// verifySignatures recovers each 65-byte secp256k1 signature over the
// keccak-256 message digest and requires every recovered signer to be a
// configured attester
func (c *Client) verifySignatures(att *Attestation) error {
	if len(att.Attestation)%signatureLength != 0 || len(att.Attestation) == 0 {
		return fmt.Errorf("attestation length %d is not a multiple of %d", len(att.Attestation), signatureLength)
	}

	digest := ethcrypto.Keccak256(att.Message)
	for i := 0; i < len(att.Attestation); i += signatureLength {
		sig := make([]byte, signatureLength)
		copy(sig, att.Attestation[i:i+signatureLength])
		// normalize the recovery byte from 27/28 to 0/1
		if sig[64] >= 27 {
			sig[64] -= 27
		}

		pub, err := ethcrypto.SigToPub(digest, sig)
		if err != nil {
			return fmt.Errorf("signature %d recovery failed: %w", i/signatureLength, err)
		}
		signer := strings.ToLower(ethcrypto.PubkeyToAddress(*pub).Hex())
		if _, ok := c.attesters[signer]; !ok {
			return fmt.Errorf("signature %d from unknown attester %s", i/signatureLength, signer)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
