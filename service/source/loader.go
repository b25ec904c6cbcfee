// Package source loads the input lists of a reconciliation: the raw proposal
// list, one payload list per transaction type, and the account context.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/quorum/service/db"
	"github.com/brojonat/quorum/service/metrics"
	"github.com/brojonat/quorum/service/multisig"
	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/pool"
)

// AccountSource is the account context list name used in errors and metrics.
const AccountSource = "account"

// Store is where indexed lists are read from. *db.Store implements it.
type Store interface {
	GetAccount(ctx context.Context, address string) (multisig.AccountContext, error)
	ListRawTransactions(ctx context.Context, address string) ([]multisig.RawTransaction, error)
	ListPayloads(ctx context.Context, address string, tag multisig.TypeTag) ([]multisig.Payload, error)
}

// Snapshot is everything one reconciliation of an account needs.
type Snapshot struct {
	Account multisig.AccountContext `json:"account"`
	Inputs  multisig.Inputs         `json:"inputs"`
}

// FetchError reports every source list that failed to load for an account.
type FetchError struct {
	Account string
	Sources []string
	Errs    []error
}

func (e *FetchError) Error() string {
	parts := make([]string, len(e.Sources))
	for i, src := range e.Sources {
		parts[i] = fmt.Sprintf("%s: %v", src, e.Errs[i])
	}
	return fmt.Sprintf("load account %s: %d source(s) failed: %s", e.Account, len(e.Sources), strings.Join(parts, "; "))
}

func (e *FetchError) Unwrap() []error { return e.Errs }

// Loader fetches all source lists of an account concurrently, retrying each
// list independently.
type Loader struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	retries  uint64
	interval time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithRetries sets how many times a failed list fetch is retried.
func WithRetries(n uint64) Option {
	return func(l *Loader) { l.retries = n }
}

// WithRetryInterval sets the constant wait between retries.
func WithRetryInterval(d time.Duration) Option {
	return func(l *Loader) { l.interval = d }
}

// WithMetrics makes the loader record fetch metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// NewLoader creates a Loader reading from store.
func NewLoader(store Store, logger *slog.Logger, opts ...Option) *Loader {
	l := &Loader{
		store:    store,
		logger:   logger,
		retries:  2,
		interval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the account context, the raw list and every registered payload
// list. Either all lists resolve or a *FetchError naming each failed list is
// returned; partial inputs are never handed out.
func (l *Loader) Load(ctx context.Context, account string) (*Snapshot, error) {
	snap := &Snapshot{
		Inputs: multisig.Inputs{
			Payloads: make(map[multisig.TypeTag][]multisig.Payload, len(multisig.TypeTags)),
		},
	}
	payloads := make([][]multisig.Payload, len(multisig.TypeTags))

	type job struct {
		source string
		run    func(ctx context.Context) (int, error)
	}
	jobs := []job{
		{AccountSource, func(ctx context.Context) (int, error) {
			acct, err := l.store.GetAccount(ctx, account)
			snap.Account = acct
			return len(acct.Members), err
		}},
		{multisig.RawSource, func(ctx context.Context) (int, error) {
			raw, err := l.store.ListRawTransactions(ctx, account)
			snap.Inputs.Raw = raw
			return len(raw), err
		}},
	}
	for i, tag := range multisig.TypeTags {
		info, _ := multisig.Lookup(tag)
		jobs = append(jobs, job{info.Source, func(ctx context.Context) (int, error) {
			list, err := l.store.ListPayloads(ctx, account, tag)
			payloads[i] = list
			return len(list), err
		}})
	}

	errs := make([]error, len(jobs))
	p := pool.New().WithContext(ctx)
	for i, j := range jobs {
		p.Go(func(ctx context.Context) error {
			errs[i] = l.fetch(ctx, account, j.source, j.run)
			return nil
		})
	}
	_ = p.Wait()

	fetchErr := &FetchError{Account: account}
	for i, err := range errs {
		if err != nil {
			fetchErr.Sources = append(fetchErr.Sources, jobs[i].source)
			fetchErr.Errs = append(fetchErr.Errs, err)
		}
	}
	if len(fetchErr.Errs) > 0 {
		return nil, fetchErr
	}

	for i, tag := range multisig.TypeTags {
		snap.Inputs.Payloads[tag] = payloads[i]
	}
	return snap, nil
}

// fetch runs one list fetch with retries. Missing accounts are not retried.
func (l *Loader) fetch(ctx context.Context, account, source string, run func(context.Context) (int, error)) error {
	start := time.Now()
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(l.interval), l.retries), ctx)

	operation := func() (int, error) {
		n, err := run(ctx)
		if errors.Is(err, db.ErrNotFound) {
			return n, backoff.Permanent(err)
		}
		return n, err
	}
	notify := func(err error, next time.Duration) {
		l.logger.Warn("source fetch failed, retrying",
			"account", account,
			"source", source,
			"next_try", next.String(),
			"error", err,
		)
		if l.metrics != nil {
			l.metrics.RecordSourceRetry(source)
		}
	}

	n, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if l.metrics != nil {
		l.metrics.RecordSourceFetch(source, n, time.Since(start).Seconds(), err)
	}
	if err != nil {
		l.logger.Error("source fetch failed",
			"account", account,
			"source", source,
			"error", err,
		)
	}
	return err
}
