package main

import (
	"context"
	"fmt"
	"os"

	"github.com/brojonat/quorum/service/db"
	"github.com/brojonat/quorum/service/multisig"
	"github.com/brojonat/quorum/service/source"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply all pending schema migrations",
		Action: func(c *cli.Context) error {
			dbURL, err := getDatabaseURL(c)
			if err != nil {
				return err
			}
			if err := db.Migrate(dbURL, getLogger(c)); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ Database schema up to date")
			return nil
		},
	}
}

func migrateDownCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate-down",
		Usage: "Roll back schema migrations",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "steps",
				Usage: "Number of migrations to roll back",
				Value: 1,
			},
		},
		Action: func(c *cli.Context) error {
			if c.Int("steps") < 1 {
				return fmt.Errorf("steps must be at least 1")
			}
			dbURL, err := getDatabaseURL(c)
			if err != nil {
				return err
			}
			if err := db.MigrateDown(dbURL, c.Int("steps"), getLogger(c)); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Rolled back %d migration(s)\n", c.Int("steps"))
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Store the account and input lists of snapshot files",
		ArgsUsage: "SNAPSHOT_FILE...",
		Description: `Upsert each snapshot's account directory and replace its input lists.

Example:
  quorum db import treasury.json ops.json`,
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("at least one snapshot file is required")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			ctx := context.Background()
			for _, path := range c.Args().Slice() {
				snap, err := source.LoadFile(path)
				if err != nil {
					return err
				}
				if err := multisig.CheckInputs(snap.Inputs); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := store.UpsertAccount(ctx, snap.Account); err != nil {
					return fmt.Errorf("failed to store account from %s: %w", path, err)
				}
				if err := store.ReplaceInputs(ctx, snap.Account.Address, snap.Inputs); err != nil {
					return fmt.Errorf("failed to store inputs from %s: %w", path, err)
				}
				fmt.Fprintf(c.App.Writer, "✓ Imported %s: %d transactions\n",
					multisig.NormalizeAddress(snap.Account.Address), len(snap.Inputs.Raw))
			}
			return nil
		},
	}
}

func listAccountsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-accounts",
		Usage:   "List accounts stored in the database",
		Aliases: []string{"ls"},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			ctx := context.Background()
			addresses, err := store.ListAccounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}

			accounts := make([]multisig.AccountContext, 0, len(addresses))
			for _, addr := range addresses {
				account, err := store.GetAccount(ctx, addr)
				if err != nil {
					return fmt.Errorf("failed to get account %s: %w", addr, err)
				}
				accounts = append(accounts, account)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, accounts)
			}

			t := newTable(c.App.Writer)
			t.AppendHeader(table.Row{"Address", "Threshold", "Members", "Tokens"})
			for _, a := range accounts {
				t.AppendRow(table.Row{a.Address, a.Threshold, len(a.Members), len(a.Tokens)})
			}
			t.Render()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d accounts\n", len(accounts))
			return nil
		},
	}
}

func getDatabaseURL(c *cli.Context) (string, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return "", fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	return dbURL, nil
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL, err := getDatabaseURL(c)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	closer := func() { pool.Close() }

	return store, closer, nil
}
