package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/quorum/client"
	"github.com/brojonat/quorum/service/multisig"
	"github.com/brojonat/quorum/service/source"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
)

func getClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), &http.Client{Timeout: c.Duration("timeout")}, getLogger(c))
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Usage:   "Request timeout",
		Value:   30 * time.Second,
	}
}

func requireAccount(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", fmt.Errorf("account address is required")
	}
	return c.Args().Get(0), nil
}

func transactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "transactions",
		Aliases:   []string{"txs"},
		Usage:     "List the reconciled transactions of an account",
		ArgsUsage: "ACCOUNT_ADDRESS",
		Flags: append(queryFlags(),
			timeoutFlag(),
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Bypass the server's reconciliation cache",
			},
		),
		Action: func(c *cli.Context) error {
			address, err := requireAccount(c)
			if err != nil {
				return err
			}
			loc, err := getLocation(c)
			if err != nil {
				return err
			}
			codes, err := compileJQ(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			page, err := getClient(c).ListTransactions(c.Context, address, queryParamsFromFlags(c), client.ListOptions{
				Group:   c.Bool("group"),
				Refresh: c.Bool("refresh"),
			})
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			// jq filters narrow the fetched page only.
			records, err := filterRecords(page.Transactions, codes)
			if err != nil {
				return err
			}
			page.Transactions = records
			if len(codes) > 0 && page.Groups != nil {
				page.Groups = multisig.GroupByDate(records, loc)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, page)
			}

			renderPage(c.App.Writer, multisig.Page{
				Records:    page.Transactions,
				Index:      page.Page,
				Size:       page.PageSize,
				Total:      page.Total,
				TotalPages: page.TotalPages,
			}, page.Groups, loc)
			if len(page.Diagnostics) > 0 {
				fmt.Fprintf(c.App.ErrWriter, "%d diagnostic(s) reported, see: quorum diagnostics %s\n", len(page.Diagnostics), address)
			}
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one reconciled transaction",
		ArgsUsage: "ACCOUNT_ADDRESS TRANSACTION_ID",
		Flags:     []cli.Flag{timeoutFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires exactly two arguments: account address and transaction id")
			}
			loc, err := getLocation(c)
			if err != nil {
				return err
			}

			rec, err := getClient(c).GetTransaction(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, rec)
			}
			renderRecordDetail(c.App.Writer, *rec, loc)
			return nil
		},
	}
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Count an account's transactions per status",
		ArgsUsage: "ACCOUNT_ADDRESS",
		Flags:     []cli.Flag{timeoutFlag()},
		Action: func(c *cli.Context) error {
			address, err := requireAccount(c)
			if err != nil {
				return err
			}

			summary, err := getClient(c).Summary(c.Context, address)
			if err != nil {
				return fmt.Errorf("failed to get summary: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, summary)
			}
			renderSummary(c.App.Writer, *summary)
			return nil
		},
	}
}

func diagnosticsCommand() *cli.Command {
	return &cli.Command{
		Name:      "diagnostics",
		Aliases:   []string{"diag"},
		Usage:     "List the problems found while reconciling an account",
		ArgsUsage: "ACCOUNT_ADDRESS",
		Flags:     []cli.Flag{timeoutFlag()},
		Action: func(c *cli.Context) error {
			address, err := requireAccount(c)
			if err != nil {
				return err
			}

			report, err := getClient(c).Diagnostics(c.Context, address)
			if err != nil {
				return fmt.Errorf("failed to get diagnostics: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, report)
			}
			renderDiagnostics(c.App.Writer, report.Diagnostics)
			return nil
		},
	}
}

func accountsCommand() *cli.Command {
	return &cli.Command{
		Name:  "accounts",
		Usage: "Manage accounts through the account service",
		Subcommands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "Register the account of a snapshot file and start syncing it",
				ArgsUsage: "SNAPSHOT_FILE",
				Flags: []cli.Flag{
					timeoutFlag(),
					&cli.DurationFlag{
						Name:  "sync-interval",
						Usage: "How often the account is synced (server default when unset)",
					},
					&cli.BoolFlag{
						Name:  "with-inputs",
						Usage: "Also upload the snapshot's input lists",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("requires exactly one argument: snapshot file")
					}
					snap, err := source.LoadFile(c.Args().First())
					if err != nil {
						return err
					}

					cl := getClient(c)
					reg, err := cl.RegisterAccount(c.Context, snap.Account, c.Duration("sync-interval"))
					if err != nil {
						return fmt.Errorf("failed to register account: %w", err)
					}
					if c.Bool("with-inputs") {
						if err := cl.ReplaceInputs(c.Context, snap.Account.Address, snap.Inputs); err != nil {
							return fmt.Errorf("failed to upload inputs: %w", err)
						}
					}

					if c.Bool("json") {
						return outputJSON(c.App.Writer, reg)
					}
					fmt.Fprintf(c.App.Writer, "✓ Registered %s (threshold %d of %d, sync every %s)\n",
						reg.Address, reg.Threshold, reg.Members, reg.SyncInterval)
					return nil
				},
			},
			{
				Name:      "push-inputs",
				Usage:     "Replace an account's input lists with those of a snapshot file",
				ArgsUsage: "SNAPSHOT_FILE",
				Flags:     []cli.Flag{timeoutFlag()},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("requires exactly one argument: snapshot file")
					}
					snap, err := source.LoadFile(c.Args().First())
					if err != nil {
						return err
					}
					if err := getClient(c).ReplaceInputs(c.Context, snap.Account.Address, snap.Inputs); err != nil {
						return fmt.Errorf("failed to upload inputs: %w", err)
					}
					fmt.Fprintf(c.App.Writer, "✓ Uploaded %d transactions for %s\n", len(snap.Inputs.Raw), snap.Account.Address)
					return nil
				},
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List registered accounts",
				Flags:   []cli.Flag{timeoutFlag()},
				Action: func(c *cli.Context) error {
					accounts, err := getClient(c).ListAccounts(c.Context)
					if err != nil {
						return fmt.Errorf("failed to list accounts: %w", err)
					}
					if c.Bool("json") {
						return outputJSON(c.App.Writer, accounts)
					}
					for _, a := range accounts {
						fmt.Fprintln(c.App.Writer, a)
					}
					fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d accounts\n", len(accounts))
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "Show an account's member and token directories",
				ArgsUsage: "ACCOUNT_ADDRESS",
				Flags:     []cli.Flag{timeoutFlag()},
				Action: func(c *cli.Context) error {
					address, err := requireAccount(c)
					if err != nil {
						return err
					}
					account, err := getClient(c).GetAccount(c.Context, address)
					if err != nil {
						return fmt.Errorf("failed to get account: %w", err)
					}
					if c.Bool("json") {
						return outputJSON(c.App.Writer, account)
					}
					renderAccount(c, *account)
					return nil
				},
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Unregister an account and stop syncing it",
				ArgsUsage: "ACCOUNT_ADDRESS",
				Flags:     []cli.Flag{timeoutFlag()},
				Action: func(c *cli.Context) error {
					address, err := requireAccount(c)
					if err != nil {
						return err
					}
					if err := getClient(c).UnregisterAccount(c.Context, address); err != nil {
						return fmt.Errorf("failed to unregister account: %w", err)
					}
					fmt.Fprintf(c.App.Writer, "✓ Unregistered %s\n", address)
					return nil
				},
			},
		},
	}
}

func renderAccount(c *cli.Context, account multisig.AccountContext) {
	w := c.App.Writer
	fmt.Fprintf(w, "Address:   %s\n", account.Address)
	fmt.Fprintf(w, "Threshold: %d of %d\n\n", account.Threshold, len(account.Members))

	t := newTable(w)
	t.AppendHeader(table.Row{"Member", "Name", "Permissions"})
	for _, m := range account.Members {
		t.AppendRow(table.Row{m.Address, m.Name, multisig.PermissionNames(m.Permissions)})
	}
	t.Render()

	if len(account.Tokens) > 0 {
		t = newTable(w)
		t.AppendHeader(table.Row{"Token", "Symbol", "Decimals"})
		for _, tok := range account.Tokens {
			t.AppendRow(table.Row{tok.Address, tok.Symbol, tok.Decimals})
		}
		t.Render()
	}
}
