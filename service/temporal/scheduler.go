package temporal

import (
	"context"
	"time"

	"github.com/brojonat/quorum/service/multisig"
)

// Scheduler manages Temporal schedules for account syncing.
// Each account gets its own schedule that triggers SyncAccountWorkflow.
type Scheduler interface {
	// UpsertAccountSchedule creates the account's schedule, or updates its
	// interval when it already exists.
	UpsertAccountSchedule(ctx context.Context, account string, interval time.Duration) error

	// DeleteAccountSchedule deletes the schedule for an account.
	DeleteAccountSchedule(ctx context.Context, account string) error
}

// scheduleID returns the Temporal schedule ID for an account.
func scheduleID(account string) string {
	return "sync-account-" + multisig.NormalizeAddress(account)
}
