package multisig

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrMissingSource is wrapped by SourceError.
var ErrMissingSource = errors.New("source list missing")

// RawSource names the raw transaction list in errors and logs.
const RawSource = "transactions"

// SourceError reports input lists that never resolved. A reconciliation does
// not run on partial inputs.
type SourceError struct {
	Missing []string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("missing source lists: %s", strings.Join(e.Missing, ", "))
}

func (e *SourceError) Unwrap() error { return ErrMissingSource }

// CheckInputs verifies the raw list and every registered payload list are present.
func CheckInputs(in Inputs) error {
	var missing []string
	if in.Raw == nil {
		missing = append(missing, RawSource)
	}
	for _, tag := range TypeTags {
		if _, ok := in.Payloads[tag]; !ok {
			missing = append(missing, registry[tag].Source)
		}
	}
	if len(missing) > 0 {
		return &SourceError{Missing: missing}
	}
	return nil
}

// Reconciler runs the correlate, evaluate and project stages. It holds no
// state between runs and is safe for concurrent use.
type Reconciler struct {
	logger    *slog.Logger
	projector Projector
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithDefaultDecimals sets the decimals assumed for tokens missing from the
// token directory.
func WithDefaultDecimals(n int) Option {
	return func(r *Reconciler) { r.projector.DefaultDecimals = n }
}

// WithFractionDigits caps the fractional digits of display amounts.
func WithFractionDigits(n int) Option {
	return func(r *Reconciler) { r.projector.FractionDigits = n }
}

// NewReconciler creates a Reconciler.
func NewReconciler(logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{logger: logger, projector: NewProjector()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconciliation is the output of one pipeline run.
type Reconciliation struct {
	Account      AccountContext `json:"account"`
	Transactions []Transaction  `json:"-"`
	// Records are in raw input order.
	Records     []Record     `json:"transactions"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Reconcile runs the pipeline over in. Per-record problems become diagnostics;
// only missing input lists fail the run.
func (r *Reconciler) Reconcile(in Inputs, ctx AccountContext) (*Reconciliation, error) {
	if err := CheckInputs(in); err != nil {
		return nil, err
	}

	txs, diags := Correlate(in.Raw, in.Payloads)
	records := make([]Record, 0, len(txs))
	for _, tx := range txs {
		rec, ds := r.projector.Project(tx, ctx)
		records = append(records, rec)
		diags = append(diags, ds...)
	}
	if diags == nil {
		diags = []Diagnostic{}
	}

	for _, d := range diags {
		r.logger.Warn("reconciliation diagnostic",
			"account", ctx.Address,
			"kind", d.Kind,
			"transaction_id", d.TransactionID,
			"type", d.Type,
			"position", d.Position,
			"message", d.Message,
		)
	}
	r.logger.Debug("reconciled account",
		"account", ctx.Address,
		"raw", len(in.Raw),
		"transactions", len(records),
		"diagnostics", len(diags),
	)

	return &Reconciliation{
		Account:      ctx,
		Transactions: txs,
		Records:      records,
		Diagnostics:  diags,
	}, nil
}

// Query filters, sorts and paginates the reconciled records.
func (rc *Reconciliation) Query(f Filter, key SortKey, req PageRequest) Page {
	return Query(rc.Records, f, key, req)
}

// Find returns the record of the transaction with the given id.
func (rc *Reconciliation) Find(id string) (Record, bool) {
	for _, r := range rc.Records {
		if r.Transaction.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Summary counts records per status.
type Summary struct {
	Account    string `json:"account"`
	Threshold  int    `json:"threshold"`
	Members    int    `json:"members"`
	Total      int    `json:"total"`
	Initiated  int    `json:"initiated"`
	Approved   int    `json:"approved"`
	Executed   int    `json:"executed"`
	Rejected   int    `json:"rejected"`
	Executable int    `json:"executable"`
}

// Summary tallies the reconciled records.
func (rc *Reconciliation) Summary() Summary {
	s := Summary{
		Account:   rc.Account.Address,
		Threshold: rc.Account.Threshold,
		Members:   len(rc.Account.Members),
		Total:     len(rc.Records),
	}
	for _, r := range rc.Records {
		switch r.Status {
		case StatusInitiated:
			s.Initiated++
		case StatusApproved:
			s.Approved++
		case StatusExecuted:
			s.Executed++
		case StatusRejected:
			s.Rejected++
		}
		if r.CanExecute {
			s.Executable++
		}
	}
	return s
}

// Statuses maps transaction ids to their derived status.
func (rc *Reconciliation) Statuses() map[string]Status {
	out := make(map[string]Status, len(rc.Records))
	for _, r := range rc.Records {
		out[r.Transaction.ID] = r.Status
	}
	return out
}
