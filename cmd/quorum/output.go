package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/quorum/service/logger"
	"github.com/brojonat/quorum/service/multisig"
	"github.com/itchyny/gojq"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
)

// queryFlags are the filter, sort and page flags shared by every command
// that lists transactions.
func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "status",
			Aliases: []string{"s"},
			Usage:   "Filter by status (All, Initiated, Approved, Executed, Rejected)",
		},
		&cli.StringFlag{
			Name:  "type",
			Usage: "Filter by transaction type tag or label (e.g. TOKEN_SEND, \"Send\")",
		},
		&cli.StringSliceFlag{
			Name:    "member",
			Aliases: []string{"m"},
			Usage:   "Only transactions involving this address (can be specified multiple times)",
		},
		&cli.StringSliceFlag{
			Name:  "token",
			Usage: "Only transactions moving this token address (can be specified multiple times)",
		},
		&cli.StringFlag{
			Name:  "from",
			Usage: "Created on or after this date (YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "Created on or before this date (YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:  "min-amount",
			Usage: "Minimum display amount",
		},
		&cli.StringFlag{
			Name:  "max-amount",
			Usage: "Maximum display amount",
		},
		&cli.StringFlag{
			Name:  "sort",
			Usage: "Sort order (newest, oldest, amount)",
			Value: "newest",
		},
		&cli.IntFlag{
			Name:    "page",
			Aliases: []string{"p"},
			Usage:   "Page number, starting at 1",
			Value:   1,
		},
		&cli.IntFlag{
			Name:  "page-size",
			Usage: "Transactions per page",
			Value: multisig.DefaultPageSize,
		},
		&cli.BoolFlag{
			Name:    "group",
			Aliases: []string{"g"},
			Usage:   "Group transactions by creation date",
		},
		&cli.StringSliceFlag{
			Name:    "must-jq",
			Usage:   "jq filter expression each transaction must satisfy (can be specified multiple times, all must match)",
			Aliases: []string{"jq"},
		},
	}
}

// queryParamsFromFlags collects the query flags.
func queryParamsFromFlags(c *cli.Context) multisig.QueryParams {
	return multisig.QueryParams{
		Status:    c.String("status"),
		Type:      c.String("type"),
		Members:   c.StringSlice("member"),
		Tokens:    c.StringSlice("token"),
		From:      c.String("from"),
		To:        c.String("to"),
		MinAmount: c.String("min-amount"),
		MaxAmount: c.String("max-amount"),
		Sort:      c.String("sort"),
		Page:      c.Int("page"),
		PageSize:  c.Int("page-size"),
	}
}

func getLogger(c *cli.Context) *slog.Logger {
	return logger.New(c.App.ErrWriter, c.String("log-level"), c.String("log-format"))
}

func getLocation(c *cli.Context) (*time.Location, error) {
	name := c.String("timezone")
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// compileJQ compiles --must-jq expressions.
func compileJQ(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// matchJQ reports whether every filter yields a truthy first result for v.
func matchJQ(codes []*gojq.Code, v interface{}) (bool, error) {
	for _, code := range codes {
		iter := code.Run(v)
		result, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := result.(error); isErr {
			return false, err
		}
		if !isTruthy(result) {
			return false, nil
		}
	}
	return true, nil
}

// filterRecords keeps the records matching every jq filter. Records are
// matched on their JSON form.
func filterRecords(records []multisig.Record, codes []*gojq.Code) ([]multisig.Record, error) {
	if len(codes) == 0 {
		return records, nil
	}
	out := make([]multisig.Record, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction %s: %w", rec.ID(), err)
		}
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s: %w", rec.ID(), err)
		}
		ok, err := matchJQ(codes, v)
		if err != nil {
			return nil, fmt.Errorf("jq filter failed on transaction %s: %w", rec.ID(), err)
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// Helper function to output JSON
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// renderRecords prints records as a table.
func renderRecords(w io.Writer, records []multisig.Record, loc *time.Location) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Created", "Title", "Subtitle", "Status", "Approvals", "Executable"})
	for _, rec := range records {
		executable := ""
		if rec.CanExecute {
			executable = "yes"
		}
		t.AppendRow(table.Row{
			rec.ID(),
			rec.Transaction.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			rec.Title,
			rec.Subtitle,
			rec.Status,
			fmt.Sprintf("%d/%d", rec.Approvals, rec.Required),
			executable,
		})
	}
	t.Render()
}

// renderPage prints one page of records, grouped by day when groups are given.
func renderPage(w io.Writer, page multisig.Page, groups []multisig.DateGroup, loc *time.Location) {
	if len(page.Records) == 0 {
		fmt.Fprintln(w, "No transactions found")
	} else if groups != nil {
		for _, g := range groups {
			fmt.Fprintf(w, "\n%s\n", g.Label)
			renderRecords(w, g.Records, loc)
		}
	} else {
		renderRecords(w, page.Records, loc)
	}
	fmt.Fprintf(w, "\nPage %d of %d (%d transactions)\n", page.Index, page.TotalPages, page.Total)
}

// renderRecordDetail prints one record with its approvals.
func renderRecordDetail(w io.Writer, rec multisig.Record, loc *time.Location) {
	tx := rec.Transaction
	fmt.Fprintf(w, "ID:         %s\n", tx.ID)
	fmt.Fprintf(w, "Type:       %s\n", tx.Type)
	fmt.Fprintf(w, "Title:      %s\n", rec.Title)
	fmt.Fprintf(w, "Subtitle:   %s\n", rec.Subtitle)
	fmt.Fprintf(w, "Status:     %s\n", rec.Status)
	fmt.Fprintf(w, "Approvals:  %d/%d\n", rec.Approvals, rec.Required)
	fmt.Fprintf(w, "Executable: %t\n", rec.CanExecute)
	proposer := multisig.FormatAddress(tx.Proposer)
	if rec.ProposerName != "" {
		proposer = fmt.Sprintf("%s (%s)", rec.ProposerName, proposer)
	}
	fmt.Fprintf(w, "Proposer:   %s\n", proposer)
	fmt.Fprintf(w, "Created:    %s\n", tx.CreatedAt.In(loc).Format(time.RFC3339))
	if tx.ExecutedAt != nil {
		fmt.Fprintf(w, "Executed:   %s\n", tx.ExecutedAt.In(loc).Format(time.RFC3339))
	}
	if rec.Amount != "" {
		fmt.Fprintf(w, "Amount:     %s %s\n", rec.Amount, rec.Token)
	}
	if rec.RecipientAddress != "" {
		fmt.Fprintf(w, "Target:     %s\n", rec.RecipientAddress)
	}
	if len(rec.Permissions) > 0 {
		fmt.Fprintf(w, "Permissions: %s\n", strings.Join(rec.Permissions, ", "))
	}
	fmt.Fprintf(w, "Approved by: %s\n", joinAddresses(tx.ApprovedBy))
	fmt.Fprintf(w, "Rejected by: %s\n", joinAddresses(tx.RejectedBy))
}

func joinAddresses(addrs []string) string {
	if len(addrs) == 0 {
		return "(none)"
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = multisig.FormatAddress(a)
	}
	return strings.Join(out, ", ")
}

// renderSummary prints per-status counts.
func renderSummary(w io.Writer, s multisig.Summary) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Status", "Count"})
	t.AppendRows([]table.Row{
		{multisig.StatusInitiated, s.Initiated},
		{multisig.StatusApproved, s.Approved},
		{multisig.StatusExecuted, s.Executed},
		{multisig.StatusRejected, s.Rejected},
	})
	t.AppendFooter(table.Row{"Total", s.Total})
	t.Render()
	fmt.Fprintf(w, "Account %s: threshold %d of %d members, %d executable\n",
		multisig.FormatAddress(s.Account), s.Threshold, s.Members, s.Executable)
}

// renderDiagnostics prints reconciliation problems.
func renderDiagnostics(w io.Writer, diags []multisig.Diagnostic) {
	if len(diags) == 0 {
		fmt.Fprintln(w, "No diagnostics")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Kind", "Transaction", "Type", "Position", "Message"})
	for _, d := range diags {
		t.AppendRow(table.Row{d.Kind, d.TransactionID, d.Type, d.Position, d.Message})
	}
	t.Render()
}
