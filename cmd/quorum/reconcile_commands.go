package main

import (
	"fmt"

	"github.com/brojonat/quorum/service/multisig"
	"github.com/brojonat/quorum/service/source"
	"github.com/urfave/cli/v2"
)

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:      "reconcile",
		Usage:     "Reconcile a snapshot file offline and list its transactions",
		ArgsUsage: "SNAPSHOT_FILE",
		Description: `Run the reconciliation pipeline over a snapshot file without any service.

The file holds the account context and the input lists:
  {"account": {...}, "inputs": {"transactions": [...], "payloads": {"TOKEN_SEND": [...], ...}}}

Example:
  quorum reconcile --status approved --group snapshot.json
  quorum --json reconcile --jq '.can_execute' snapshot.json`,
		Flags: append(queryFlags(),
			&cli.IntFlag{
				Name:  "default-decimals",
				Usage: "Decimals for tokens missing from the token directory",
				Value: multisig.DefaultTokenDecimals,
			},
			&cli.IntFlag{
				Name:  "fraction-digits",
				Usage: "Maximum fractional digits of rendered amounts",
				Value: multisig.DefaultFractionDigits,
			},
			&cli.BoolFlag{
				Name:  "diagnostics",
				Usage: "Print reconciliation diagnostics after the transactions",
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: snapshot file")
			}

			loc, err := getLocation(c)
			if err != nil {
				return err
			}
			codes, err := compileJQ(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}
			filter, key, req, err := queryParamsFromFlags(c).Parse(loc)
			if err != nil {
				return err
			}

			snap, err := source.LoadFile(c.Args().First())
			if err != nil {
				return err
			}

			reconciler := multisig.NewReconciler(getLogger(c),
				multisig.WithDefaultDecimals(c.Int("default-decimals")),
				multisig.WithFractionDigits(c.Int("fraction-digits")),
			)
			rc, err := reconciler.Reconcile(snap.Inputs, snap.Account)
			if err != nil {
				return fmt.Errorf("failed to reconcile: %w", err)
			}

			records, err := filterRecords(multisig.Sort(filter.Apply(rc.Records), key), codes)
			if err != nil {
				return err
			}
			page := multisig.Paginate(records, req)

			var groups []multisig.DateGroup
			if c.Bool("group") {
				groups = multisig.GroupByDate(page.Records, loc)
			}

			out := c.App.Writer
			if c.Bool("json") {
				return outputJSON(out, map[string]interface{}{
					"transactions": page.Records,
					"groups":       groups,
					"page":         page.Index,
					"page_size":    page.Size,
					"total":        page.Total,
					"total_pages":  page.TotalPages,
					"diagnostics":  rc.Diagnostics,
				})
			}

			renderPage(out, page, groups, loc)
			if c.Bool("diagnostics") {
				fmt.Fprintln(out)
				renderDiagnostics(out, rc.Diagnostics)
			} else if len(rc.Diagnostics) > 0 {
				fmt.Fprintf(c.App.ErrWriter, "%d diagnostic(s) reported, rerun with --diagnostics to list them\n", len(rc.Diagnostics))
			}
			return nil
		},
	}
}
