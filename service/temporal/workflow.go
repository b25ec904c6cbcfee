package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/quorum/service/multisig"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SyncAccountWorkflow reconciles a multisig account and announces every
// transaction whose status moved since the previous run. It is triggered by a
// Temporal schedule at the configured sync interval.
//
// Steps:
// 1. Reconcile the account from its source lists (ReconcileAccount)
// 2. Fetch the statuses recorded by the previous run (GetKnownStates)
// 3. Diff, and publish the changes to NATS (PublishStatusChanges)
// 4. Record the new statuses (SaveStates)
func SyncAccountWorkflow(ctx workflow.Context, input SyncAccountInput) (*SyncAccountResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SyncAccountWorkflow started", "account", input.Account)

	result := &SyncAccountResult{
		Account:  input.Account,
		SyncTime: workflow.Now(ctx),
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 120 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	fail := func(step string, err error) (*SyncAccountResult, error) {
		errMsg := fmt.Sprintf("failed to %s: %v", step, err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to %s: %w", step, err)
	}

	var reconciled *ReconcileAccountResult
	err := workflow.ExecuteActivity(ctx, a.ReconcileAccount, ReconcileAccountInput{Account: input.Account}).Get(ctx, &reconciled)
	if err != nil {
		return fail("reconcile account", err)
	}
	result.Transactions = len(reconciled.States)
	result.Diagnostics = reconciled.Diagnostics

	var known *GetKnownStatesResult
	err = workflow.ExecuteActivity(ctx, a.GetKnownStates, GetKnownStatesInput{Account: input.Account}).Get(ctx, &known)
	if err != nil {
		return fail("get known states", err)
	}

	changes := DiffStates(known.States, reconciled.States)
	result.Changes = len(changes)
	logger.Info("diffed transaction states",
		"account", input.Account,
		"known", len(known.States),
		"current", len(reconciled.States),
		"changes", len(changes),
	)

	if len(changes) == 0 {
		logger.Info("no status changes", "account", input.Account)
		return result, nil
	}

	var published *PublishStatusChangesResult
	err = workflow.ExecuteActivity(ctx, a.PublishStatusChanges, PublishStatusChangesInput{
		Account: input.Account,
		Changes: changes,
	}).Get(ctx, &published)
	if err != nil {
		return fail("publish status changes", err)
	}
	result.Published = published.Published

	states := make(map[string]multisig.Status, len(reconciled.States))
	for _, s := range reconciled.States {
		states[s.ID] = s.Status
	}

	var saved *SaveStatesResult
	err = workflow.ExecuteActivity(ctx, a.SaveStates, SaveStatesInput{
		Account:   input.Account,
		States:    states,
		StartedAt: result.SyncTime,
	}).Get(ctx, &saved)
	if err != nil {
		return fail("save states", err)
	}

	logger.Info("SyncAccountWorkflow completed successfully",
		"account", input.Account,
		"transactions", result.Transactions,
		"changes", result.Changes,
		"published", result.Published,
	)

	return result, nil
}

// DiffStates returns, in current order, every state whose status differs from
// the known one, including transactions not seen before.
func DiffStates(known map[string]multisig.Status, current []TransactionState) []StatusChange {
	var changes []StatusChange
	for _, s := range current {
		prev, ok := known[s.ID]
		if ok && prev == s.Status {
			continue
		}
		changes = append(changes, StatusChange{State: s, Previous: prev})
	}
	return changes
}
