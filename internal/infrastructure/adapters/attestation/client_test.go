package attestation

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		MaxAttempts:  5,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
	}
}

func readyPayload(message, attestation string) Response {
	return Response{Messages: []OracleMessage{{
		Message:     message,
		Attestation: attestation,
		EventNonce:  "42",
	}}}
}

func TestFetchAttestationAfterNotFound(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/9/0xabc", r.URL.Path)
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(readyPayload("0xdeadbeef", "0x0102"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	att, err := client.FetchAttestation(context.Background(), 9, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, att.Message)
	assert.Equal(t, []byte{0x01, 0x02}, att.Attestation)
	assert.Equal(t, "42", att.EventNonce)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "returns on the first ready response")
}

func TestPendingIsNeverReturned(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			json.NewEncoder(w).Encode(Response{Messages: []OracleMessage{{
				Message: "0xdeadbeef", Attestation: "pending",
			}}})
			return
		}
		json.NewEncoder(w).Encode(readyPayload("0xdeadbeef", "0x0102"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	att, err := client.FetchAttestation(context.Background(), 9, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, att.Attestation)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestMissingFieldsAreRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			json.NewEncoder(w).Encode(Response{Messages: []OracleMessage{{Message: "0xdeadbeef"}}})
			return
		}
		json.NewEncoder(w).Encode(readyPayload("0xdeadbeef", "0x0102"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = client.FetchAttestation(context.Background(), 9, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTimeoutAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = client.FetchAttestation(context.Background(), 9, "0xabc")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrAttestationTimeout)

	var timeoutErr *domainerrors.AttestationTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 5, timeoutErr.Attempts)
	assert.Equal(t, "0xabc", timeoutErr.MessageHash)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestCancellationBetweenAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.InitialDelay = 200 * time.Millisecond
	cfg.MaxDelay = time.Second
	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.FetchAttestation(ctx, 9, "0xabc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffDelayFormula(t *testing.T) {
	client, err := NewClient(Config{
		BaseURL:      "http://localhost",
		MaxAttempts:  10,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     450 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, client.backoffDelay(2))
	assert.Equal(t, 400*time.Millisecond, client.backoffDelay(3))
	assert.Equal(t, 450*time.Millisecond, client.backoffDelay(4))
	assert.Equal(t, 450*time.Millisecond, client.backoffDelay(9))
}

func TestSignatureVerification(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	attester := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()

	message := []byte{0xde, 0xad, 0xbe, 0xef}
	digest := ethcrypto.Keccak256(message)
	sig, err := ethcrypto.Sign(digest, key)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(readyPayload("0x"+hex.EncodeToString(message), "0x"+hex.EncodeToString(sig)))
	}))
	defer server.Close()

	t.Run("known attester accepted", func(t *testing.T) {
		cfg := testConfig(server.URL)
		cfg.VerifySignatures = true
		cfg.AttesterKeys = []string{attester}
		client, err := NewClient(cfg, zap.NewNop())
		require.NoError(t, err)

		att, err := client.FetchAttestation(context.Background(), 9, "0xabc")
		require.NoError(t, err)
		assert.Equal(t, message, att.Message)
	})

	t.Run("unknown attester rejected", func(t *testing.T) {
		otherKey, err := ethcrypto.GenerateKey()
		require.NoError(t, err)

		cfg := testConfig(server.URL)
		cfg.MaxAttempts = 2
		cfg.VerifySignatures = true
		cfg.AttesterKeys = []string{ethcrypto.PubkeyToAddress(otherKey.PublicKey).Hex()}
		client, err := NewClient(cfg, zap.NewNop())
		require.NoError(t, err)

		_, err = client.FetchAttestation(context.Background(), 9, "0xabc")
		assert.ErrorIs(t, err, domainerrors.ErrAttestationTimeout)
	})
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://x", MaxAttempts: 0}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(Config{
		BaseURL: "http://x", MaxAttempts: 1,
		InitialDelay: time.Second, MaxDelay: time.Millisecond,
	}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(Config{
		BaseURL: "http://x", MaxAttempts: 1,
		InitialDelay: time.Millisecond, MaxDelay: time.Second,
		VerifySignatures: true,
	}, zap.NewNop())
	assert.Error(t, err)
}
