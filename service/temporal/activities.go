package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/quorum/service/db"
	"github.com/brojonat/quorum/service/metrics"
	"github.com/brojonat/quorum/service/multisig"
	natspkg "github.com/brojonat/quorum/service/nats"
	"github.com/brojonat/quorum/service/source"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// SyncAccountInput contains the input parameters for syncing an account.
type SyncAccountInput struct {
	Account string `json:"account"`
}

// SyncAccountResult contains the result of syncing an account.
type SyncAccountResult struct {
	Account      string    `json:"account"`
	Transactions int       `json:"transactions"`
	Diagnostics  int       `json:"diagnostics"`
	Changes      int       `json:"changes"`
	Published    int       `json:"published"`
	SyncTime     time.Time `json:"sync_time"`
	Error        *string   `json:"error,omitempty"`
}

// TransactionState is the part of a display record the sync loop tracks.
type TransactionState struct {
	ID         string           `json:"id"`
	Type       multisig.TypeTag `json:"type"`
	Title      string           `json:"title"`
	Subtitle   string           `json:"subtitle"`
	Status     multisig.Status  `json:"status"`
	CanExecute bool             `json:"can_execute"`
	Approvals  int              `json:"approvals"`
	Required   int              `json:"required"`
}

func stateOf(r multisig.Record) TransactionState {
	return TransactionState{
		ID:         r.ID(),
		Type:       r.Transaction.Type,
		Title:      r.Title,
		Subtitle:   r.Subtitle,
		Status:     r.Status,
		CanExecute: r.CanExecute,
		Approvals:  r.Approvals,
		Required:   r.Required,
	}
}

func (s TransactionState) record() multisig.Record {
	return multisig.Record{
		Transaction: multisig.Transaction{ID: s.ID, Type: s.Type},
		Status:      s.Status,
		CanExecute:  s.CanExecute,
		Approvals:   s.Approvals,
		Required:    s.Required,
		Title:       s.Title,
		Subtitle:    s.Subtitle,
	}
}

// StatusChange is a transaction whose derived status differs from the last
// recorded one. Previous is empty for transactions never seen before.
type StatusChange struct {
	State    TransactionState `json:"state"`
	Previous multisig.Status  `json:"previous,omitempty"`
}

// ReconcileAccountInput contains parameters for the ReconcileAccount activity.
type ReconcileAccountInput struct {
	Account string `json:"account"`
}

// ReconcileAccountResult contains the result of the ReconcileAccount activity.
type ReconcileAccountResult struct {
	States      []TransactionState `json:"states"`
	Diagnostics int                `json:"diagnostics"`
}

// GetKnownStatesInput contains parameters for the GetKnownStates activity.
type GetKnownStatesInput struct {
	Account string `json:"account"`
}

// GetKnownStatesResult contains the result of the GetKnownStates activity.
type GetKnownStatesResult struct {
	States map[string]multisig.Status `json:"states"`
}

// PublishStatusChangesInput contains parameters for the PublishStatusChanges activity.
type PublishStatusChangesInput struct {
	Account string         `json:"account"`
	Changes []StatusChange `json:"changes"`
}

// PublishStatusChangesResult contains the result of the PublishStatusChanges activity.
type PublishStatusChangesResult struct {
	Published int `json:"published"`
}

// SaveStatesInput contains parameters for the SaveStates activity.
type SaveStatesInput struct {
	Account   string                     `json:"account"`
	States    map[string]multisig.Status `json:"states"`
	StartedAt time.Time                  `json:"started_at"`
}

// SaveStatesResult contains the result of the SaveStates activity.
type SaveStatesResult struct {
	Saved int `json:"saved"`
}

// LoaderInterface loads the input lists of an account.
type LoaderInterface interface {
	Load(ctx context.Context, account string) (*source.Snapshot, error)
}

// StoreInterface defines the database operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	GetTransactionStates(ctx context.Context, account string) (map[string]multisig.Status, error)
	SaveTransactionStates(ctx context.Context, account string, states map[string]multisig.Status) error
}

// PublisherInterface defines the NATS publishing operations needed by activities.
// This allows for easy mocking in tests.
type PublisherInterface interface {
	PublishStatusChanges(ctx context.Context, events []*natspkg.StatusChangeEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
// All dependencies are explicit.
type Activities struct {
	loader     LoaderInterface
	reconciler *multisig.Reconciler
	store      StoreInterface
	publisher  PublisherInterface
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded. If publisher is nil, status
// changes are only logged.
func NewActivities(
	loader LoaderInterface,
	reconciler *multisig.Reconciler,
	store StoreInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		loader:     loader,
		reconciler: reconciler,
		store:      store,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
	}
}

func (a *Activities) observe(activity, account string) func() {
	start := time.Now()
	return func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration(activity, account, time.Since(start).Seconds())
		}
	}
}

// ReconcileAccount loads every source list of the account and runs the
// reconciliation pipeline over them. Unknown accounts and incomplete inputs
// fail without retry.
func (a *Activities) ReconcileAccount(ctx context.Context, input ReconcileAccountInput) (*ReconcileAccountResult, error) {
	defer a.observe("ReconcileAccount", input.Account)()

	snap, err := a.loader.Load(ctx, input.Account)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to load account sources",
			"account", input.Account,
			"error", err,
		)
		if errors.Is(err, db.ErrNotFound) {
			return nil, temporalsdk.NewNonRetryableApplicationError(
				fmt.Sprintf("account %s not found", input.Account), "AccountNotFound", err)
		}
		return nil, fmt.Errorf("failed to load account sources: %w", err)
	}

	start := time.Now()
	rc, err := a.reconciler.Reconcile(snap.Inputs, snap.Account)
	if a.metrics != nil {
		a.metrics.RecordReconcile(time.Since(start).Seconds(), err)
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to reconcile account",
			"account", input.Account,
			"error", err,
		)
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), "IncompleteInputs", err)
	}

	if a.metrics != nil {
		diags := make(map[string]int)
		for kind, n := range multisig.CountByKind(rc.Diagnostics) {
			diags[string(kind)] = n
		}
		a.metrics.RecordDiagnostics(diags)

		sum := rc.Summary()
		a.metrics.SetTransactionsByStatus(input.Account, map[string]int{
			string(multisig.StatusInitiated): sum.Initiated,
			string(multisig.StatusApproved):  sum.Approved,
			string(multisig.StatusExecuted):  sum.Executed,
			string(multisig.StatusRejected):  sum.Rejected,
		})
	}

	states := make([]TransactionState, len(rc.Records))
	for i, r := range rc.Records {
		states[i] = stateOf(r)
	}

	a.logger.InfoContext(ctx, "reconciled account",
		"account", input.Account,
		"transactions", len(states),
		"diagnostics", len(rc.Diagnostics),
	)

	return &ReconcileAccountResult{
		States:      states,
		Diagnostics: len(rc.Diagnostics),
	}, nil
}

// GetKnownStates fetches the statuses recorded by the previous sync.
func (a *Activities) GetKnownStates(ctx context.Context, input GetKnownStatesInput) (*GetKnownStatesResult, error) {
	defer a.observe("GetKnownStates", input.Account)()

	states, err := a.store.GetTransactionStates(ctx, input.Account)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to get known states",
			"account", input.Account,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get known states: %w", err)
	}

	a.logger.DebugContext(ctx, "fetched known states",
		"account", input.Account,
		"count", len(states),
	)

	return &GetKnownStatesResult{States: states}, nil
}

// PublishStatusChanges publishes one event per status change.
func (a *Activities) PublishStatusChanges(ctx context.Context, input PublishStatusChangesInput) (*PublishStatusChangesResult, error) {
	defer a.observe("PublishStatusChanges", input.Account)()

	if len(input.Changes) == 0 {
		return &PublishStatusChangesResult{}, nil
	}

	for _, c := range input.Changes {
		a.logger.InfoContext(ctx, "transaction status changed",
			"account", input.Account,
			"transaction_id", c.State.ID,
			"previous_status", c.Previous,
			"status", c.State.Status,
		)
		if a.metrics != nil {
			a.metrics.RecordStatusChange(input.Account, string(c.State.Status))
		}
	}

	if a.publisher == nil {
		a.logger.WarnContext(ctx, "publisher not configured, skipping status change events",
			"account", input.Account,
			"count", len(input.Changes),
		)
		return &PublishStatusChangesResult{}, nil
	}

	events := make([]*natspkg.StatusChangeEvent, len(input.Changes))
	for i, c := range input.Changes {
		events[i] = natspkg.FromRecord(input.Account, c.State.record(), c.Previous)
	}

	if err := a.publisher.PublishStatusChanges(ctx, events); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish status changes",
			"account", input.Account,
			"count", len(events),
			"error", err,
		)
		return nil, fmt.Errorf("failed to publish status changes: %w", err)
	}

	return &PublishStatusChangesResult{Published: len(events)}, nil
}

// SaveStates records the statuses derived by this sync.
func (a *Activities) SaveStates(ctx context.Context, input SaveStatesInput) (*SaveStatesResult, error) {
	defer a.observe("SaveStates", input.Account)()

	err := a.store.SaveTransactionStates(ctx, input.Account, input.States)
	if a.metrics != nil && !input.StartedAt.IsZero() {
		status := "success"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordWorkflowDuration(input.Account, status, time.Since(input.StartedAt).Seconds())
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to save states",
			"account", input.Account,
			"error", err,
		)
		return nil, fmt.Errorf("failed to save states: %w", err)
	}

	return &SaveStatesResult{Saved: len(input.States)}, nil
}
