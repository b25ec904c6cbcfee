package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/brojonat/quorum/service/config"
	"github.com/brojonat/quorum/service/db"
	"github.com/brojonat/quorum/service/multisig"
	"github.com/brojonat/quorum/service/temporal"
)

const (
	maxRequestBodySize = 10 << 20 // input lists can be large
	minSyncInterval    = 10 * time.Second
	maxSyncInterval    = 24 * time.Hour
)

// Account addresses are felts: 0x followed by at most 64 hex digits.
var validAddressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// AccountStore is the account directory and input storage. *db.Store implements it.
type AccountStore interface {
	UpsertAccount(ctx context.Context, account multisig.AccountContext) error
	GetAccount(ctx context.Context, address string) (multisig.AccountContext, error)
	ListAccounts(ctx context.Context) ([]string, error)
	DeleteAccount(ctx context.Context, address string) error
	ReplaceInputs(ctx context.Context, address string, in multisig.Inputs) error
}

type registerAccountRequest struct {
	multisig.AccountContext
	SyncInterval string `json:"sync_interval,omitempty"`
}

// handleRegisterAccount returns a handler that registers or updates an
// account directory, drops its cached reconciliation and schedules its sync.
// POST /api/v1/accounts
func handleRegisterAccount(store AccountStore, scheduler temporal.Scheduler, views *accountViews, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req registerAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := validateAccount(req.AccountContext); err != nil {
			logger.Debug("invalid account", "address", req.Address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		interval := cfg.SyncInterval
		if req.SyncInterval != "" {
			parsed, err := time.ParseDuration(req.SyncInterval)
			if err != nil {
				writeError(w, "invalid sync_interval: must be a duration like 30s or 5m", http.StatusBadRequest)
				return
			}
			interval = parsed
		}
		if err := validateSyncInterval(interval); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := store.UpsertAccount(r.Context(), req.AccountContext); err != nil {
			logger.Error("failed to upsert account", "address", req.Address, "error", err)
			writeError(w, "failed to register account", http.StatusInternalServerError)
			return
		}
		// Threshold, members and tokens feed every derived status.
		views.invalidate(req.Address)

		if scheduler != nil {
			if err := scheduler.UpsertAccountSchedule(r.Context(), req.Address, interval); err != nil {
				logger.Error("failed to schedule account sync", "address", req.Address, "error", err)
				writeError(w, "failed to schedule account sync", http.StatusInternalServerError)
				return
			}
		}

		logger.Info("account registered",
			"address", req.Address,
			"members", len(req.Members),
			"threshold", req.Threshold,
			"sync_interval", interval,
		)

		writeJSON(w, map[string]interface{}{
			"address":       multisig.NormalizeAddress(req.Address),
			"threshold":     req.Threshold,
			"members":       len(req.Members),
			"tokens":        len(req.Tokens),
			"sync_interval": interval.String(),
		}, http.StatusCreated)
	})
}

// handleListAccounts returns a handler that lists registered accounts.
// GET /api/v1/accounts
func handleListAccounts(store AccountStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accounts, err := store.ListAccounts(r.Context())
		if err != nil {
			logger.Error("failed to list accounts", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"accounts": accounts,
		}, http.StatusOK)
	})
}

// handleGetAccount returns a handler that retrieves an account directory.
// GET /api/v1/accounts/{address}
func handleGetAccount(store AccountStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		account, err := store.GetAccount(r.Context(), address)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "account not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get account", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, account, http.StatusOK)
	})
}

// handleUnregisterAccount returns a handler that stops syncing an account and
// deletes it with all of its inputs.
// DELETE /api/v1/accounts/{address}
func handleUnregisterAccount(store AccountStore, scheduler temporal.Scheduler, views *accountViews, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := store.DeleteAccount(r.Context(), address); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "account not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to delete account", "address", address, "error", err)
			writeError(w, "failed to unregister account", http.StatusInternalServerError)
			return
		}
		views.invalidate(address)

		if scheduler != nil {
			if err := scheduler.DeleteAccountSchedule(r.Context(), address); err != nil {
				// The account is gone; a leftover schedule fails fast on its next run.
				logger.Warn("failed to delete account schedule", "address", address, "error", err)
			}
		}

		logger.Info("account unregistered", "address", address)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleReplaceInputs returns a handler that replaces the stored input lists
// of an account with the request body.
// PUT /api/v1/accounts/{address}/inputs
func handleReplaceInputs(store AccountStore, views *accountViews, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var in multisig.Inputs
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if err := multisig.CheckInputs(in); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := store.ReplaceInputs(r.Context(), address, in); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "account not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to replace inputs", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		views.invalidate(address)

		logger.Info("account inputs replaced", "address", address, "raw", len(in.Raw))
		w.WriteHeader(http.StatusNoContent)
	})
}

// transactionsResponse is one page of reconciled transactions.
type transactionsResponse struct {
	Transactions []multisig.Record     `json:"transactions"`
	Groups       []multisig.DateGroup  `json:"groups,omitempty"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
	Total        int                   `json:"total"`
	TotalPages   int                   `json:"total_pages"`
	Diagnostics  []multisig.Diagnostic `json:"diagnostics"`
}

// handleListTransactions returns a handler that filters, sorts and pages the
// reconciled transactions of an account.
// GET /api/v1/accounts/{address}/transactions?status=&type=&member=&token=&from=&to=&min_amount=&max_amount=&sort=&page=&page_size=&group=&refresh=
func handleListTransactions(views *accountViews) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		query := r.URL.Query()
		params, err := multisig.ParamsFromValues(query)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if params.PageSize == 0 {
			params.PageSize = views.pageSize
		}
		filter, key, page, err := params.Parse(views.location)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		group, err := boolParam(query.Get("group"))
		if err != nil {
			writeError(w, "invalid group parameter: must be a boolean", http.StatusBadRequest)
			return
		}
		refresh, err := boolParam(query.Get("refresh"))
		if err != nil {
			writeError(w, "invalid refresh parameter: must be a boolean", http.StatusBadRequest)
			return
		}

		rc, err := views.reconcile(r.Context(), address, refresh)
		if err != nil {
			views.writeReconcileError(w, address, err)
			return
		}

		result := rc.Query(filter, key, page)
		resp := transactionsResponse{
			Transactions: result.Records,
			Page:         result.Index,
			PageSize:     result.Size,
			Total:        result.Total,
			TotalPages:   result.TotalPages,
			Diagnostics:  rc.Diagnostics,
		}
		if group {
			resp.Groups = multisig.GroupByDate(result.Records, views.location)
		}

		views.logger.Debug("transactions listed",
			"account", address,
			"total", result.Total,
			"page", result.Index,
		)

		writeJSON(w, resp, http.StatusOK)
	})
}

// handleGetTransaction returns a handler that retrieves one reconciled transaction.
// GET /api/v1/accounts/{address}/transactions/{id}
func handleGetTransaction(views *accountViews) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rc, err := views.reconcile(r.Context(), address, false)
		if err != nil {
			views.writeReconcileError(w, address, err)
			return
		}

		record, ok := rc.Find(r.PathValue("id"))
		if !ok {
			writeError(w, "transaction not found", http.StatusNotFound)
			return
		}
		writeJSON(w, record, http.StatusOK)
	})
}

// handleSummary returns a handler that counts an account's transactions per status.
// GET /api/v1/accounts/{address}/summary
func handleSummary(views *accountViews) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rc, err := views.reconcile(r.Context(), address, false)
		if err != nil {
			views.writeReconcileError(w, address, err)
			return
		}
		writeJSON(w, rc.Summary(), http.StatusOK)
	})
}

// handleDiagnostics returns a handler that lists the problems found while
// reconciling an account.
// GET /api/v1/accounts/{address}/diagnostics
func handleDiagnostics(views *accountViews) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rc, err := views.reconcile(r.Context(), address, false)
		if err != nil {
			views.writeReconcileError(w, address, err)
			return
		}

		counts := make(map[string]int)
		for kind, n := range multisig.CountByKind(rc.Diagnostics) {
			counts[string(kind)] = n
		}
		writeJSON(w, map[string]interface{}{
			"diagnostics": rc.Diagnostics,
			"counts":      counts,
		}, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func boolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// validateAddress validates an account or member address.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}
	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address %q: must be 0x followed by up to 64 hex digits", address)
	}
	return nil
}

// validateAccount validates an account directory before it is stored.
func validateAccount(account multisig.AccountContext) error {
	if err := validateAddress(account.Address); err != nil {
		return err
	}
	if len(account.Members) == 0 {
		return errorf("at least one member is required")
	}
	if account.Threshold < 1 || account.Threshold > len(account.Members) {
		return errorf("threshold must be between 1 and %d, got %d", len(account.Members), account.Threshold)
	}

	seen := make(map[string]bool, len(account.Members))
	for _, m := range account.Members {
		if err := validateAddress(m.Address); err != nil {
			return errorf("invalid member: %v", err)
		}
		key := multisig.NormalizeAddress(m.Address)
		if seen[key] {
			return errorf("duplicate member %s", m.Address)
		}
		seen[key] = true
	}
	for _, t := range account.Tokens {
		if err := validateAddress(t.Address); err != nil {
			return errorf("invalid token: %v", err)
		}
		if t.Decimals < 0 || t.Decimals > 77 {
			return errorf("invalid decimals %d for token %s", t.Decimals, t.Address)
		}
	}
	return nil
}

// validateSyncInterval validates a sync interval for reasonable bounds.
func validateSyncInterval(interval time.Duration) error {
	if interval < minSyncInterval {
		return errorf("sync_interval must be at least %v", minSyncInterval)
	}
	if interval > maxSyncInterval {
		return errorf("sync_interval cannot exceed %v", maxSyncInterval)
	}
	return nil
}

// errorf is a helper to format validation errors.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
