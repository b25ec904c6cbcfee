package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "quorum",
		Usage: "Multisig account reconciliation CLI",
		Description: `A command-line tool for reconciling multisig accounts and operating the quorum service.

Reconcile snapshot files offline, query the account service over HTTP, manage the
database and Temporal sync schedules, and watch status change events on NATS.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Offline reconciliation
			reconcileCommand(),
			// Client commands (HTTP API)
			transactionsCommand(),
			showCommand(),
			summaryCommand(),
			diagnosticsCommand(),
			accountsCommand(),
			// Database commands
			{
				Name:  "db",
				Usage: "Database management commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					migrateDownCommand(),
					importCommand(),
					listAccountsCommand(),
				},
			},
			// Temporal schedule commands
			{
				Name:  "schedule",
				Usage: "Temporal sync schedule commands",
				Subcommands: []*cli.Command{
					createScheduleCommand(),
					deleteScheduleCommand(),
					syncNowCommand(),
				},
			},
			// NATS event commands
			{
				Name:  "nats",
				Usage: "NATS status change event commands",
				Subcommands: []*cli.Command{
					watchCommand(),
					inspectStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue of the sync worker",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "quorum-account-sync",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Account service URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (json, text, tint)",
				EnvVars: []string{"LOG_FORMAT"},
				Value:   "tint",
			},
			&cli.StringFlag{
				Name:    "timezone",
				Usage:   "IANA timezone for dates and day groups",
				EnvVars: []string{"DISPLAY_TIMEZONE"},
				Value:   "Local",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
