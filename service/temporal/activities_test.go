package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/brojonat/quorum/service/db"
	"github.com/brojonat/quorum/service/multisig"
	natspkg "github.com/brojonat/quorum/service/nats"
	"github.com/brojonat/quorum/service/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalsdk "go.temporal.io/sdk/temporal"
)

const (
	testAccount = "0x0acc0000000000000000000000000000000000000000000000000000000000aa"
	alice       = "0x01f1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f"
	bob         = "0x02b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0"
	strk        = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"
)

// Mock Loader
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context, account string) (*source.Snapshot, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.Snapshot), args.Error(1)
}

// Mock Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetTransactionStates(ctx context.Context, account string) (map[string]multisig.Status, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]multisig.Status), args.Error(1)
}

func (m *MockStore) SaveTransactionStates(ctx context.Context, account string, states map[string]multisig.Status) error {
	args := m.Called(ctx, account, states)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSnapshot() *source.Snapshot {
	payloads := make(map[multisig.TypeTag][]multisig.Payload, len(multisig.TypeTags))
	for _, tag := range multisig.TypeTags {
		payloads[tag] = []multisig.Payload{}
	}
	payloads[multisig.TypeTokenSend] = []multisig.Payload{
		multisig.TokenSend{Token: strk, Amount: "1500000000000000000", Recipient: bob},
	}
	payloads[multisig.TypeMemberRemove] = []multisig.Payload{
		multisig.MemberRemove{Member: alice},
	}

	return &source.Snapshot{
		Account: multisig.AccountContext{
			Address:   testAccount,
			Threshold: 2,
			Members: []multisig.Member{
				{Address: alice, Name: "Alice", Permissions: 7},
				{Address: bob, Name: "Bob", Permissions: 3},
			},
			Tokens: []multisig.Token{{Address: strk, Symbol: "STRK", Decimals: 18}},
		},
		Inputs: multisig.Inputs{
			Raw: []multisig.RawTransaction{
				{ID: "1", Type: multisig.TypeTokenSend, Proposer: alice, ApprovedBy: []string{alice, bob}, DateCreated: "1709294400"},
				{ID: "2", Type: multisig.TypeMemberRemove, Proposer: bob, ApprovedBy: []string{bob}, DateCreated: "1709380800"},
			},
			Payloads: payloads,
		},
	}
}

func TestActivities_ReconcileAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("reconciles loaded sources", func(t *testing.T) {
		loader := new(MockLoader)
		loader.On("Load", mock.Anything, testAccount).Return(testSnapshot(), nil)
		acts := NewActivities(loader, multisig.NewReconciler(testLogger()), nil, nil, nil, testLogger())

		result, err := acts.ReconcileAccount(ctx, ReconcileAccountInput{Account: testAccount})
		require.NoError(t, err)

		require.Len(t, result.States, 2)
		assert.Equal(t, 0, result.Diagnostics)

		first := result.States[0]
		assert.Equal(t, "1", first.ID)
		assert.Equal(t, multisig.StatusApproved, first.Status)
		assert.True(t, first.CanExecute)
		assert.Equal(t, 2, first.Approvals)
		assert.Equal(t, 2, first.Required)
		assert.Equal(t, "Send 1.5 STRK", first.Subtitle)

		assert.Equal(t, multisig.StatusInitiated, result.States[1].Status)
		loader.AssertExpectations(t)
	})

	t.Run("transient load failure is retryable", func(t *testing.T) {
		loader := new(MockLoader)
		loader.On("Load", mock.Anything, testAccount).Return(nil, &source.FetchError{
			Account: testAccount,
			Sources: []string{"token_send"},
			Errs:    []error{errors.New("indexer timeout")},
		})
		acts := NewActivities(loader, multisig.NewReconciler(testLogger()), nil, nil, nil, testLogger())

		_, err := acts.ReconcileAccount(ctx, ReconcileAccountInput{Account: testAccount})
		require.Error(t, err)

		var appErr *temporalsdk.ApplicationError
		assert.False(t, errors.As(err, &appErr) && appErr.NonRetryable())
		var fetchErr *source.FetchError
		assert.True(t, errors.As(err, &fetchErr))
	})

	t.Run("unknown account is not retried", func(t *testing.T) {
		loader := new(MockLoader)
		loader.On("Load", mock.Anything, testAccount).Return(nil, fmt.Errorf("account %s: %w", testAccount, db.ErrNotFound))
		acts := NewActivities(loader, multisig.NewReconciler(testLogger()), nil, nil, nil, testLogger())

		_, err := acts.ReconcileAccount(ctx, ReconcileAccountInput{Account: testAccount})
		require.Error(t, err)

		var appErr *temporalsdk.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.True(t, appErr.NonRetryable())
		assert.Equal(t, "AccountNotFound", appErr.Type())
	})

	t.Run("incomplete inputs are not retried", func(t *testing.T) {
		snap := testSnapshot()
		delete(snap.Inputs.Payloads, multisig.TypeNFTSend)
		loader := new(MockLoader)
		loader.On("Load", mock.Anything, testAccount).Return(snap, nil)
		acts := NewActivities(loader, multisig.NewReconciler(testLogger()), nil, nil, nil, testLogger())

		_, err := acts.ReconcileAccount(ctx, ReconcileAccountInput{Account: testAccount})
		require.Error(t, err)

		var appErr *temporalsdk.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.True(t, appErr.NonRetryable())
		assert.Contains(t, err.Error(), "nft_send")
	})
}

func TestActivities_GetKnownStates(t *testing.T) {
	ctx := context.Background()

	store := new(MockStore)
	store.On("GetTransactionStates", mock.Anything, testAccount).
		Return(map[string]multisig.Status{"1": multisig.StatusInitiated}, nil).Once()
	store.On("GetTransactionStates", mock.Anything, testAccount).
		Return(nil, errors.New("connection refused")).Once()
	acts := NewActivities(nil, nil, store, nil, nil, testLogger())

	result, err := acts.GetKnownStates(ctx, GetKnownStatesInput{Account: testAccount})
	require.NoError(t, err)
	assert.Equal(t, multisig.StatusInitiated, result.States["1"])

	_, err = acts.GetKnownStates(ctx, GetKnownStatesInput{Account: testAccount})
	assert.ErrorContains(t, err, "connection refused")
	store.AssertExpectations(t)
}

func TestActivities_PublishStatusChanges(t *testing.T) {
	ctx := context.Background()
	changes := []StatusChange{
		{State: TransactionState{ID: "1", Type: multisig.TypeTokenSend, Status: multisig.StatusApproved, Approvals: 2, Required: 2, CanExecute: true}, Previous: multisig.StatusInitiated},
		{State: TransactionState{ID: "2", Type: multisig.TypeMemberRemove, Status: multisig.StatusInitiated, Approvals: 1, Required: 2}},
	}

	t.Run("publishes one event per change", func(t *testing.T) {
		publisher := natspkg.NewMockPublisher()
		acts := NewActivities(nil, nil, nil, publisher, nil, testLogger())

		result, err := acts.PublishStatusChanges(ctx, PublishStatusChangesInput{Account: testAccount, Changes: changes})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Published)

		events := publisher.Events()
		require.Len(t, events, 2)
		assert.Equal(t, "1", events[0].TransactionID)
		assert.Equal(t, multisig.StatusInitiated, events[0].PreviousStatus)
		assert.Equal(t, multisig.StatusApproved, events[0].Status)
		assert.True(t, events[0].CanExecute)
		assert.Equal(t, multisig.NormalizeAddress(testAccount), events[1].Account)
		assert.Empty(t, events[1].PreviousStatus)
		assert.NotEqual(t, events[0].EventID, events[1].EventID)
	})

	t.Run("publish failure fails the activity", func(t *testing.T) {
		publisher := natspkg.NewMockPublisher()
		publisher.SetPublishError(errors.New("nats unavailable"))
		acts := NewActivities(nil, nil, nil, publisher, nil, testLogger())

		_, err := acts.PublishStatusChanges(ctx, PublishStatusChangesInput{Account: testAccount, Changes: changes})
		assert.ErrorContains(t, err, "nats unavailable")
	})

	t.Run("no publisher configured", func(t *testing.T) {
		acts := NewActivities(nil, nil, nil, nil, nil, testLogger())

		result, err := acts.PublishStatusChanges(ctx, PublishStatusChangesInput{Account: testAccount, Changes: changes})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Published)
	})
}

func TestActivities_SaveStates(t *testing.T) {
	ctx := context.Background()
	states := map[string]multisig.Status{"1": multisig.StatusExecuted, "2": multisig.StatusRejected}

	store := new(MockStore)
	store.On("SaveTransactionStates", mock.Anything, testAccount, states).Return(nil)
	acts := NewActivities(nil, nil, store, nil, nil, testLogger())

	result, err := acts.SaveStates(ctx, SaveStatesInput{Account: testAccount, States: states})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Saved)
	store.AssertExpectations(t)
}
