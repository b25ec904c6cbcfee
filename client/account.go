// Package client is the HTTP client for the quorum account service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/brojonat/quorum/service/multisig"
)

// Client is the HTTP client for the quorum account service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new account service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.StatusCode, e.Message)
}

// Registration is the server's acknowledgement of a registered account.
type Registration struct {
	Address      string `json:"address"`
	Threshold    int    `json:"threshold"`
	Members      int    `json:"members"`
	Tokens       int    `json:"tokens"`
	SyncInterval string `json:"sync_interval"`
}

// TransactionPage is one page of reconciled transactions.
type TransactionPage struct {
	Transactions []multisig.Record     `json:"transactions"`
	Groups       []multisig.DateGroup  `json:"groups,omitempty"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
	Total        int                   `json:"total"`
	TotalPages   int                   `json:"total_pages"`
	Diagnostics  []multisig.Diagnostic `json:"diagnostics"`
}

// ListOptions controls how a transaction page is computed.
type ListOptions struct {
	// Group adds the page's records bucketed by creation date.
	Group bool
	// Refresh bypasses the server's reconciliation cache.
	Refresh bool
}

// DiagnosticsReport lists reconciliation problems and their counts per kind.
type DiagnosticsReport struct {
	Diagnostics []multisig.Diagnostic `json:"diagnostics"`
	Counts      map[string]int        `json:"counts"`
}

// RegisterAccount stores an account directory and starts syncing it. A zero
// interval uses the server default.
func (c *Client) RegisterAccount(ctx context.Context, account multisig.AccountContext, syncInterval time.Duration) (*Registration, error) {
	reqBody := struct {
		multisig.AccountContext
		SyncInterval string `json:"sync_interval,omitempty"`
	}{AccountContext: account}
	if syncInterval > 0 {
		reqBody.SyncInterval = syncInterval.String()
	}

	var reg Registration
	if err := c.do(ctx, http.MethodPost, "/api/v1/accounts", nil, reqBody, http.StatusCreated, &reg); err != nil {
		return nil, err
	}

	c.logger.Debug("account registered", "address", reg.Address, "sync_interval", reg.SyncInterval)
	return &reg, nil
}

// UnregisterAccount stops syncing an account and deletes it.
func (c *Client) UnregisterAccount(ctx context.Context, address string) error {
	if err := c.do(ctx, http.MethodDelete, accountPath(address), nil, nil, http.StatusNoContent, nil); err != nil {
		return err
	}
	c.logger.Debug("account unregistered", "address", address)
	return nil
}

// GetAccount retrieves the directory of a registered account.
func (c *Client) GetAccount(ctx context.Context, address string) (*multisig.AccountContext, error) {
	var account multisig.AccountContext
	if err := c.do(ctx, http.MethodGet, accountPath(address), nil, nil, http.StatusOK, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListAccounts retrieves the addresses of all registered accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]string, error) {
	var response struct {
		Accounts []string `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts", nil, nil, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response.Accounts, nil
}

// ReplaceInputs replaces the stored input lists of an account.
func (c *Client) ReplaceInputs(ctx context.Context, address string, in multisig.Inputs) error {
	if err := c.do(ctx, http.MethodPut, accountPath(address)+"/inputs", nil, in, http.StatusNoContent, nil); err != nil {
		return err
	}
	c.logger.Debug("account inputs replaced", "address", address, "raw", len(in.Raw))
	return nil
}

// ListTransactions retrieves one page of reconciled transactions.
func (c *Client) ListTransactions(ctx context.Context, address string, params multisig.QueryParams, opts ListOptions) (*TransactionPage, error) {
	query := params.Values()
	if opts.Group {
		query.Set("group", "true")
	}
	if opts.Refresh {
		query.Set("refresh", "true")
	}

	var page TransactionPage
	if err := c.do(ctx, http.MethodGet, accountPath(address)+"/transactions", query, nil, http.StatusOK, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTransaction retrieves one reconciled transaction.
func (c *Client) GetTransaction(ctx context.Context, address, id string) (*multisig.Record, error) {
	var record multisig.Record
	path := accountPath(address) + "/transactions/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, http.StatusOK, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Summary retrieves the per-status counts of an account.
func (c *Client) Summary(ctx context.Context, address string) (*multisig.Summary, error) {
	var summary multisig.Summary
	if err := c.do(ctx, http.MethodGet, accountPath(address)+"/summary", nil, nil, http.StatusOK, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Diagnostics retrieves the problems found while reconciling an account.
func (c *Client) Diagnostics(ctx context.Context, address string) (*DiagnosticsReport, error) {
	var report DiagnosticsReport
	if err := c.do(ctx, http.MethodGet, accountPath(address)+"/diagnostics", nil, nil, http.StatusOK, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Health checks that the service is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, http.StatusOK, nil)
}

func accountPath(address string) string {
	return "/api/v1/accounts/" + url.PathEscape(address)
}

// do sends a request and decodes the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, wantStatus int, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
