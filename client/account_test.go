package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brojonat/quorum/service/multisig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "0x0acc0000000000000000000000000000000000000000000000000000000000aa"

func TestRegisterAccount_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/accounts", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&body)
		require.NoError(t, err)

		assert.Equal(t, account, body["address"])
		assert.Equal(t, float64(1), body["threshold"])
		assert.Equal(t, "5m0s", body["sync_interval"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"address":       account,
			"threshold":     1,
			"members":       1,
			"sync_interval": "5m0s",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	reg, err := client.RegisterAccount(context.Background(), multisig.AccountContext{
		Address:   account,
		Threshold: 1,
		Members:   []multisig.Member{{Address: "0x1"}},
	}, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Members)
	assert.Equal(t, "5m0s", reg.SyncInterval)
}

func TestRegisterAccount_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "threshold must be between 1 and 1, got 3",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.RegisterAccount(context.Background(), multisig.AccountContext{Address: account, Threshold: 3}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold must be between")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestUnregisterAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		if r.URL.Path == "/api/v1/accounts/"+account {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such account"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	assert.NoError(t, client.UnregisterAccount(context.Background(), account))

	err := client.UnregisterAccount(context.Background(), "0xdead")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no such account", apiErr.Message)
}

func TestListAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accounts": []string{account, "0xbeef"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	accounts, err := client.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{account, "0xbeef"}, accounts)
}

func TestReplaceInputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/api/v1/accounts/"+account+"/inputs", r.URL.Path)

		var in multisig.Inputs
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Len(t, in.Raw, 1)
		assert.Equal(t, multisig.TokenSend{Amount: "10"}, in.Payloads[multisig.TypeTokenSend][0])

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	err := client.ReplaceInputs(context.Background(), account, multisig.Inputs{
		Raw: []multisig.RawTransaction{{ID: "1", Type: multisig.TypeTokenSend}},
		Payloads: map[multisig.TypeTag][]multisig.Payload{
			multisig.TypeTokenSend: {multisig.TokenSend{Amount: "10"}},
		},
	})
	assert.NoError(t, err)
}

func TestListTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/"+account+"/transactions", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "Approved", q.Get("status"))
		assert.Equal(t, []string{"0x1", "0x2"}, q["member"])
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "true", q.Get("group"))
		assert.Empty(t, q.Get("refresh"))
		assert.False(t, q.Has("type"))

		w.Write([]byte(`{
			"transactions": [{
				"transaction": {"id": "7", "type": "THRESHOLD_CHANGE", "payload": {"new_threshold": "3"}},
				"status": "Approved",
				"title": "Change threshold",
				"involved": []
			}],
			"page": 2, "page_size": 1, "total": 2, "total_pages": 2,
			"diagnostics": []
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	page, err := client.ListTransactions(context.Background(), account, multisig.QueryParams{
		Status:  "Approved",
		Members: []string{"0x1", "0x2"},
		Page:    2,
	}, ListOptions{Group: true})
	require.NoError(t, err)

	require.Len(t, page.Transactions, 1)
	rec := page.Transactions[0]
	assert.Equal(t, "7", rec.ID())
	assert.Equal(t, multisig.StatusApproved, rec.Status)
	assert.Equal(t, multisig.ThresholdChange{NewThreshold: "3"}, rec.Transaction.Payload)
	assert.Equal(t, 2, page.TotalPages)
}

func TestGetTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/"+account+"/transactions/42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "transaction not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.GetTransaction(context.Background(), account, "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction not found")
}

func TestSummaryAndDiagnostics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/accounts/" + account + "/summary":
			json.NewEncoder(w).Encode(multisig.Summary{Account: account, Total: 3, Executed: 2, Rejected: 1})
		case "/api/v1/accounts/" + account + "/diagnostics":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"diagnostics": []multisig.Diagnostic{{Kind: multisig.DiagMissingPayload, TransactionID: "9"}},
				"counts":      map[string]int{string(multisig.DiagMissingPayload): 1},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)

	summary, err := client.Summary(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Executed)

	report, err := client.Diagnostics(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "9", report.Diagnostics[0].TransactionID)
	assert.Equal(t, 1, report.Counts[string(multisig.DiagMissingPayload)])
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, nil, nil)
	_, err := client.ListAccounts(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("draining"))
	}))
	defer server.Close()

	err := NewClient(server.URL, nil, nil).Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "draining", apiErr.Message)
}
