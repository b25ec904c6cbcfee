package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brojonat/quorum/service/temporal"
	"github.com/urfave/cli/v2"
)

// Helper function to connect to Temporal
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		getLogger(c),
	)
}

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create or update the sync schedule of an account",
		ArgsUsage: "ACCOUNT_ADDRESS",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Sync interval",
				Value:   time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			address, err := requireAccount(c)
			if err != nil {
				return err
			}
			if c.Duration("interval") < time.Second {
				return fmt.Errorf("interval must be at least 1s")
			}

			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			if err := temporalClient.UpsertAccountSchedule(context.Background(), address, c.Duration("interval")); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Account %s syncs every %s\n", address, c.Duration("interval"))
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete the sync schedule of an account",
		ArgsUsage: "ACCOUNT_ADDRESS",
		Action: func(c *cli.Context) error {
			address, err := requireAccount(c)
			if err != nil {
				return err
			}

			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			if err := temporalClient.DeleteAccountSchedule(context.Background(), address); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Deleted sync schedule of %s\n", address)
			return nil
		},
	}
}

func syncNowCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Run one sync of an account and wait for the result",
		ArgsUsage: "ACCOUNT_ADDRESS",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "How long to wait for the sync workflow",
				Value:   2 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			address, err := requireAccount(c)
			if err != nil {
				return err
			}

			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			result, err := temporalClient.SyncNow(ctx, address)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, result)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Account:      %s\n", result.Account)
			fmt.Fprintf(w, "Transactions: %d\n", result.Transactions)
			fmt.Fprintf(w, "Diagnostics:  %d\n", result.Diagnostics)
			fmt.Fprintf(w, "Changes:      %d\n", result.Changes)
			fmt.Fprintf(w, "Published:    %d\n", result.Published)
			fmt.Fprintf(w, "Synced at:    %s\n", result.SyncTime.Format(time.RFC3339))
			if result.Error != nil {
				return fmt.Errorf("sync finished with error: %s", *result.Error)
			}
			return nil
		},
	}
}
