package temporal

import (
	"context"
	"errors"
	"testing"

	"github.com/brojonat/quorum/service/multisig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func currentStates() []TransactionState {
	return []TransactionState{
		{ID: "1", Type: multisig.TypeTokenSend, Status: multisig.StatusApproved, CanExecute: true, Approvals: 2, Required: 2},
		{ID: "2", Type: multisig.TypeMemberRemove, Status: multisig.StatusInitiated, Approvals: 1, Required: 2},
		{ID: "3", Type: multisig.TypeThresholdChange, Status: multisig.StatusRejected, Required: 2},
	}
}

func TestDiffStates(t *testing.T) {
	known := map[string]multisig.Status{
		"1": multisig.StatusInitiated,
		"2": multisig.StatusInitiated,
		"9": multisig.StatusExecuted,
	}

	changes := DiffStates(known, currentStates())
	require.Len(t, changes, 2)

	assert.Equal(t, "1", changes[0].State.ID)
	assert.Equal(t, multisig.StatusInitiated, changes[0].Previous)
	assert.Equal(t, "3", changes[1].State.ID)
	assert.Empty(t, changes[1].Previous)

	assert.Empty(t, DiffStates(map[string]multisig.Status{
		"1": multisig.StatusApproved,
		"2": multisig.StatusInitiated,
		"3": multisig.StatusRejected,
	}, currentStates()))
	assert.Len(t, DiffStates(nil, currentStates()), 3)
}

func newWorkflowEnv() (*testsuite.TestWorkflowEnvironment, *Activities) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.ReconcileAccount)
	env.RegisterActivity(activities.GetKnownStates)
	env.RegisterActivity(activities.PublishStatusChanges)
	env.RegisterActivity(activities.SaveStates)
	return env, activities
}

func TestSyncAccountWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		known          map[string]multisig.Status
		knownErr       error
		publishErr     error
		expectedError  bool
		validateResult func(*testing.T, *SyncAccountResult)
	}{
		{
			name:  "publishes changes and saves states",
			known: map[string]multisig.Status{"1": multisig.StatusInitiated, "2": multisig.StatusInitiated},
			validateResult: func(t *testing.T, result *SyncAccountResult) {
				assert.Equal(t, testAccount, result.Account)
				assert.Equal(t, 3, result.Transactions)
				assert.Equal(t, 1, result.Diagnostics)
				assert.Equal(t, 2, result.Changes)
				assert.Equal(t, 2, result.Published)
				assert.Nil(t, result.Error)
			},
		},
		{
			name: "no changes skips publishing",
			known: map[string]multisig.Status{
				"1": multisig.StatusApproved,
				"2": multisig.StatusInitiated,
				"3": multisig.StatusRejected,
			},
			validateResult: func(t *testing.T, result *SyncAccountResult) {
				assert.Equal(t, 0, result.Changes)
				assert.Equal(t, 0, result.Published)
			},
		},
		{
			name:          "known states unavailable",
			knownErr:      errors.New("database error"),
			expectedError: true,
		},
		{
			name:          "publish fails",
			known:         map[string]multisig.Status{},
			publishErr:    errors.New("nats unavailable"),
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, activities := newWorkflowEnv()

			env.OnActivity(activities.ReconcileAccount, mock.Anything, ReconcileAccountInput{Account: testAccount}).
				Return(&ReconcileAccountResult{States: currentStates(), Diagnostics: 1}, nil)

			if tt.knownErr != nil {
				env.OnActivity(activities.GetKnownStates, mock.Anything, mock.Anything).Return(nil, tt.knownErr)
			} else {
				env.OnActivity(activities.GetKnownStates, mock.Anything, mock.Anything).
					Return(&GetKnownStatesResult{States: tt.known}, nil)
			}

			env.OnActivity(activities.PublishStatusChanges, mock.Anything, mock.Anything).
				Return(func(_ context.Context, input PublishStatusChangesInput) (*PublishStatusChangesResult, error) {
					if tt.publishErr != nil {
						return nil, tt.publishErr
					}
					return &PublishStatusChangesResult{Published: len(input.Changes)}, nil
				})

			env.OnActivity(activities.SaveStates, mock.Anything, mock.Anything).
				Return(func(_ context.Context, input SaveStatesInput) (*SaveStatesResult, error) {
					return &SaveStatesResult{Saved: len(input.States)}, nil
				})

			env.ExecuteWorkflow(SyncAccountWorkflow, SyncAccountInput{Account: testAccount})

			require.True(t, env.IsWorkflowCompleted())
			if tt.expectedError {
				assert.Error(t, env.GetWorkflowError())
				return
			}

			require.NoError(t, env.GetWorkflowError())
			var result SyncAccountResult
			require.NoError(t, env.GetWorkflowResult(&result))
			tt.validateResult(t, &result)
		})
	}
}

func TestSyncAccountWorkflow_SavesDerivedStates(t *testing.T) {
	env, activities := newWorkflowEnv()

	env.OnActivity(activities.ReconcileAccount, mock.Anything, mock.Anything).
		Return(&ReconcileAccountResult{States: currentStates()}, nil)
	env.OnActivity(activities.GetKnownStates, mock.Anything, mock.Anything).
		Return(&GetKnownStatesResult{States: map[string]multisig.Status{}}, nil)
	env.OnActivity(activities.PublishStatusChanges, mock.Anything, mock.Anything).
		Return(&PublishStatusChangesResult{Published: 3}, nil)

	var saved SaveStatesInput
	env.OnActivity(activities.SaveStates, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(1).(SaveStatesInput)
		}).
		Return(&SaveStatesResult{Saved: 3}, nil)

	env.ExecuteWorkflow(SyncAccountWorkflow, SyncAccountInput{Account: testAccount})
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, testAccount, saved.Account)
	assert.Equal(t, map[string]multisig.Status{
		"1": multisig.StatusApproved,
		"2": multisig.StatusInitiated,
		"3": multisig.StatusRejected,
	}, saved.States)
	assert.False(t, saved.StartedAt.IsZero())
}

func TestSyncAccountWorkflow_ActivityRetries(t *testing.T) {
	env, activities := newWorkflowEnv()

	callCount := 0
	env.OnActivity(activities.ReconcileAccount, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		callCount++
		if callCount < 3 {
			panic("transient error") // Temporal retries on panics
		}
	}).Return(&ReconcileAccountResult{States: currentStates()}, nil)
	env.OnActivity(activities.GetKnownStates, mock.Anything, mock.Anything).
		Return(&GetKnownStatesResult{States: map[string]multisig.Status{
			"1": multisig.StatusApproved,
			"2": multisig.StatusInitiated,
			"3": multisig.StatusRejected,
		}}, nil)

	env.ExecuteWorkflow(SyncAccountWorkflow, SyncAccountInput{Account: testAccount})

	assert.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 3, callCount)
}
