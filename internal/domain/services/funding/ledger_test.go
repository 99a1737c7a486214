package funding

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	solanachain "github.com/courier-service/courier_service/internal/chains/solana"
	"github.com/courier-service/courier_service/internal/domain/entities"
)

type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) Create(ctx context.Context, account *entities.FundedAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepo) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*entities.FundedAccount, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.FundedAccount), args.Error(1)
}

func (m *MockAccountRepo) GetUnrefundedByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*entities.FundedAccount, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.FundedAccount), args.Error(1)
}

func (m *MockAccountRepo) MarkRefunded(ctx context.Context, id uuid.UUID, refundTxID string) error {
	args := m.Called(ctx, id, refundTxID)
	return args.Error(0)
}

type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockChainClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (string, error) {
	args := m.Called(ctx, tx)
	return args.String(0), args.Error(1)
}

func (m *MockChainClient) ConfirmTransaction(ctx context.Context, signature string) error {
	args := m.Called(ctx, signature)
	return args.Error(0)
}

func (m *MockChainClient) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChainClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	args := m.Called(ctx, dataSize)
	return args.Get(0).(uint64), args.Error(1)
}

const (
	testRentMinimum = uint64(890_880)
	testFeeBuffer   = uint64(5_000)
)

func newTestLedger(t *testing.T) (*Ledger, *MockChainClient, *MockAccountRepo, *solanachain.Wallet) {
	t.Helper()
	logger := zap.NewNop()
	userWallet, err := solanachain.NewEphemeralWallet(logger)
	require.NoError(t, err)

	client := new(MockChainClient)
	repo := new(MockAccountRepo)
	return NewLedger(client, userWallet, repo, testFeeBuffer, logger), client, repo, userWallet
}

func fundedWallet(t *testing.T, ledger *Ledger, repo *MockAccountRepo, attemptID uuid.UUID) *solanachain.Wallet {
	t.Helper()
	wallet, err := solanachain.NewEphemeralWallet(zap.NewNop())
	require.NoError(t, err)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *entities.FundedAccount) bool {
		return a.AttemptID == attemptID && a.Address == wallet.Address()
	})).Return(nil).Once()

	require.NoError(t, ledger.RegisterEphemeral(context.Background(), attemptID, wallet, "fund-tx", 2_000_000))
	return wallet
}

func TestRegisterEphemeral_PersistsRecordAndHoldsSecret(t *testing.T) {
	ledger, _, repo, _ := newTestLedger(t)
	attemptID := uuid.New()

	wallet := fundedWallet(t, ledger, repo, attemptID)

	export, err := ledger.ExportRecovery(attemptID)
	require.NoError(t, err)
	require.Len(t, export.Accounts, 1)
	assert.Equal(t, wallet.Address(), export.Accounts[0].Address)
	assert.NotEmpty(t, export.Accounts[0].SecretKey)
	repo.AssertExpectations(t)
}

func TestRegisterEphemeral_RepoFailureDoesNotHoldSecret(t *testing.T) {
	ledger, _, repo, _ := newTestLedger(t)
	attemptID := uuid.New()

	wallet, err := solanachain.NewEphemeralWallet(zap.NewNop())
	require.NoError(t, err)

	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	err = ledger.RegisterEphemeral(context.Background(), attemptID, wallet, "fund-tx", 1)
	require.Error(t, err)

	_, err = ledger.ExportRecovery(attemptID)
	assert.Error(t, err)
}

func TestSweep_NothingFunded(t *testing.T) {
	ledger, client, repo, _ := newTestLedger(t)
	attemptID := uuid.New()

	repo.On("GetUnrefundedByAttemptID", mock.Anything, attemptID).
		Return([]*entities.FundedAccount{}, nil).Once()

	result, err := ledger.Sweep(context.Background(), attemptID)
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Empty(t, result.RefundTxID)
	client.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestSweep_RefundsAboveFloorOnly(t *testing.T) {
	ledger, client, repo, _ := newTestLedger(t)
	attemptID := uuid.New()

	rich := fundedWallet(t, ledger, repo, attemptID)
	poor := fundedWallet(t, ledger, repo, attemptID)

	floor := testRentMinimum + testFeeBuffer
	records := []*entities.FundedAccount{
		{ID: uuid.New(), AttemptID: attemptID, Address: rich.Address()},
		{ID: uuid.New(), AttemptID: attemptID, Address: poor.Address()},
	}

	repo.On("GetUnrefundedByAttemptID", mock.Anything, attemptID).Return(records, nil).Once()
	client.On("GetMinimumBalanceForRentExemption", mock.Anything, uint64(0)).Return(testRentMinimum, nil).Once()
	client.On("GetBalance", mock.Anything, rich.PublicKey()).Return(floor+1_000_000, nil).Once()
	client.On("GetBalance", mock.Anything, poor.PublicKey()).Return(floor, nil).Once()
	client.On("GetLatestBlockhash", mock.Anything).Return(solana.Hash{}, nil).Once()
	client.On("SendTransaction", mock.Anything, mock.Anything).Return("sweep-tx", nil).Once()
	client.On("ConfirmTransaction", mock.Anything, "sweep-tx").Return(nil).Once()
	repo.On("MarkRefunded", mock.Anything, records[0].ID, "sweep-tx").Return(nil).Once()

	result, err := ledger.Sweep(context.Background(), attemptID)
	require.NoError(t, err)
	assert.Equal(t, []string{rich.Address()}, result.SweptAccounts)
	assert.Equal(t, int64(1_000_000), result.TotalLamports)
	assert.Equal(t, "sweep-tx", result.RefundTxID)

	// the account sitting exactly at the floor is left alone
	repo.AssertNotCalled(t, "MarkRefunded", mock.Anything, records[1].ID, mock.Anything)
	client.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestSweep_ForgetsSecretsAfterRefund(t *testing.T) {
	ledger, client, repo, _ := newTestLedger(t)
	attemptID := uuid.New()

	wallet := fundedWallet(t, ledger, repo, attemptID)
	record := &entities.FundedAccount{ID: uuid.New(), AttemptID: attemptID, Address: wallet.Address()}

	repo.On("GetUnrefundedByAttemptID", mock.Anything, attemptID).
		Return([]*entities.FundedAccount{record}, nil).Once()
	client.On("GetMinimumBalanceForRentExemption", mock.Anything, uint64(0)).Return(testRentMinimum, nil).Once()
	client.On("GetBalance", mock.Anything, wallet.PublicKey()).Return(testRentMinimum+testFeeBuffer+500, nil).Once()
	client.On("GetLatestBlockhash", mock.Anything).Return(solana.Hash{}, nil).Once()
	client.On("SendTransaction", mock.Anything, mock.Anything).Return("sweep-tx", nil).Once()
	client.On("ConfirmTransaction", mock.Anything, "sweep-tx").Return(nil).Once()
	repo.On("MarkRefunded", mock.Anything, record.ID, "sweep-tx").Return(nil).Once()

	_, err := ledger.Sweep(context.Background(), attemptID)
	require.NoError(t, err)

	_, err = ledger.ExportRecovery(attemptID)
	assert.Error(t, err, "secrets should be dropped once balances are swept")
}

func TestSweep_SecondCallIsNoOp(t *testing.T) {
	ledger, client, repo, _ := newTestLedger(t)
	attemptID := uuid.New()

	repo.On("GetUnrefundedByAttemptID", mock.Anything, attemptID).
		Return([]*entities.FundedAccount{}, nil).Twice()

	for i := 0; i < 2; i++ {
		result, err := ledger.Sweep(context.Background(), attemptID)
		require.NoError(t, err)
		assert.True(t, result.Empty())
	}
	client.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestSweep_SkipsAccountsWithoutHeldSecret(t *testing.T) {
	ledger, client, repo, _ := newTestLedger(t)
	attemptID := uuid.New()

	// record exists in the database but the process holds no key for it,
	// e.g. after a restart
	orphan, err := solanachain.NewEphemeralWallet(zap.NewNop())
	require.NoError(t, err)
	record := &entities.FundedAccount{ID: uuid.New(), AttemptID: attemptID, Address: orphan.Address()}

	repo.On("GetUnrefundedByAttemptID", mock.Anything, attemptID).
		Return([]*entities.FundedAccount{record}, nil).Once()
	client.On("GetMinimumBalanceForRentExemption", mock.Anything, uint64(0)).Return(testRentMinimum, nil).Once()

	result, err := ledger.Sweep(context.Background(), attemptID)
	require.NoError(t, err)
	assert.True(t, result.Empty())
	client.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestSweep_SubmissionFailureKeepsSecrets(t *testing.T) {
	ledger, client, repo, _ := newTestLedger(t)
	attemptID := uuid.New()

	wallet := fundedWallet(t, ledger, repo, attemptID)
	record := &entities.FundedAccount{ID: uuid.New(), AttemptID: attemptID, Address: wallet.Address()}

	repo.On("GetUnrefundedByAttemptID", mock.Anything, attemptID).
		Return([]*entities.FundedAccount{record}, nil).Once()
	client.On("GetMinimumBalanceForRentExemption", mock.Anything, uint64(0)).Return(testRentMinimum, nil).Once()
	client.On("GetBalance", mock.Anything, wallet.PublicKey()).Return(testRentMinimum+testFeeBuffer+500, nil).Once()
	client.On("GetLatestBlockhash", mock.Anything).Return(solana.Hash{}, nil).Once()
	client.On("SendTransaction", mock.Anything, mock.Anything).Return("", errors.New("rpc unavailable")).Once()

	_, err := ledger.Sweep(context.Background(), attemptID)
	require.Error(t, err)

	// a failed sweep must not drop the keys; a later retry still needs them
	export, err := ledger.ExportRecovery(attemptID)
	require.NoError(t, err)
	assert.Len(t, export.Accounts, 1)
	repo.AssertNotCalled(t, "MarkRefunded", mock.Anything, mock.Anything, mock.Anything)
}

func TestExportRecovery_UnknownAttempt(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t)
	_, err := ledger.ExportRecovery(uuid.New())
	assert.Error(t, err)
}
