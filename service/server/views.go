package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/quorum/service/db"
	"github.com/brojonat/quorum/service/metrics"
	"github.com/brojonat/quorum/service/multisig"
	"github.com/brojonat/quorum/service/source"
	"github.com/patrickmn/go-cache"
)

// Loader loads the source lists of an account. *source.Loader implements it.
type Loader interface {
	Load(ctx context.Context, account string) (*source.Snapshot, error)
}

// accountViews serves reconciled accounts, caching each reconciliation for
// the configured TTL.
type accountViews struct {
	loader     Loader
	reconciler *multisig.Reconciler
	cache      *cache.Cache
	ttl        time.Duration
	location   *time.Location
	pageSize   int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// reconcile returns the reconciliation of account, from cache unless refresh
// is set or caching is disabled.
func (v *accountViews) reconcile(ctx context.Context, account string, refresh bool) (*multisig.Reconciliation, error) {
	key := multisig.NormalizeAddress(account)

	if v.ttl > 0 && !refresh {
		if cached, ok := v.cache.Get(key); ok {
			if v.metrics != nil {
				v.metrics.RecordCacheLookup(true)
			}
			return cached.(*multisig.Reconciliation), nil
		}
	}
	if v.metrics != nil {
		v.metrics.RecordCacheLookup(false)
	}

	snap, err := v.loader.Load(ctx, account)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rc, err := v.reconciler.Reconcile(snap.Inputs, snap.Account)
	if v.metrics != nil {
		v.metrics.RecordReconcile(time.Since(start).Seconds(), err)
	}
	if err != nil {
		return nil, err
	}

	if v.ttl > 0 {
		v.cache.Set(key, rc, v.ttl)
	}
	return rc, nil
}

// invalidate drops the cached reconciliation of account.
func (v *accountViews) invalidate(account string) {
	v.cache.Delete(multisig.NormalizeAddress(account))
}

// writeReconcileError maps a reconciliation failure onto a response. Failed
// or incomplete sources are upstream failures the consumer may retry.
func (v *accountViews) writeReconcileError(w http.ResponseWriter, account string, err error) {
	var fetchErr *source.FetchError
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, "account not found", http.StatusNotFound)
	case errors.As(err, &fetchErr), errors.Is(err, multisig.ErrMissingSource):
		v.logger.Warn("account sources unavailable", "account", account, "error", err)
		writeError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, "request cancelled", http.StatusGatewayTimeout)
	default:
		v.logger.Error("failed to reconcile account", "account", account, "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}
