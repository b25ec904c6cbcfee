package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/quorum/service/multisig"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// createAccountSchedule creates a new Temporal schedule for syncing an account.
func (c *Client) createAccountSchedule(ctx context.Context, account string, interval time.Duration) error {
	id := scheduleID(account)
	account = multisig.NormalizeAddress(account)

	workflowAction := client.ScheduleWorkflowAction{
		ID:        "sync-account-" + account,
		Workflow:  SyncAccountWorkflow,
		TaskQueue: c.taskQueue,
		Args:      []interface{}{SyncAccountInput{Account: account}},
	}

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &workflowAction,
		Memo: map[string]interface{}{
			"account":    account,
			"created_by": "quorum",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule",
			"account", account,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("account schedule created",
		"account", account,
		"schedule_id", id,
		"interval", interval,
	)

	return nil
}

// UpsertAccountSchedule creates or updates the Temporal schedule for an account.
// If the schedule already exists, it updates the interval.
func (c *Client) UpsertAccountSchedule(ctx context.Context, account string, interval time.Duration) error {
	id := scheduleID(account)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		return c.createAccountSchedule(ctx, account, interval)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update schedule",
			"account", account,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("account schedule updated",
		"account", account,
		"schedule_id", id,
		"interval", interval,
	)

	return nil
}

// DeleteAccountSchedule deletes the Temporal schedule for an account.
func (c *Client) DeleteAccountSchedule(ctx context.Context, account string) error {
	id := scheduleID(account)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"account", account,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("account schedule deleted",
		"account", account,
		"schedule_id", id,
	)

	return nil
}

// SyncNow starts a one-off sync of the account and waits for its result.
func (c *Client) SyncNow(ctx context.Context, account string) (*SyncAccountResult, error) {
	account = multisig.NormalizeAddress(account)
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("sync-account-%s-manual-%d", account, time.Now().UnixNano()),
		TaskQueue: c.taskQueue,
	}, SyncAccountWorkflow, SyncAccountInput{Account: account})
	if err != nil {
		return nil, fmt.Errorf("failed to start sync workflow: %w", err)
	}

	var result SyncAccountResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("sync workflow %s failed: %w", run.GetID(), err)
	}
	return &result, nil
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
