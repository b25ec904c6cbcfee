package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/brojonat/quorum/service/multisig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJQFilterMatching(t *testing.T) {
	tests := []struct {
		name        string
		input       interface{}
		jqFilter    string
		expectMatch bool
		expectErr   bool
	}{
		{
			name:        "status match",
			input:       map[string]interface{}{"status": "Approved"},
			jqFilter:    `.status == "Approved"`,
			expectMatch: true,
		},
		{
			name:        "status mismatch",
			input:       map[string]interface{}{"status": "Initiated"},
			jqFilter:    `.status == "Approved"`,
			expectMatch: false,
		},
		{
			name:        "nested field",
			input:       map[string]interface{}{"transaction": map[string]interface{}{"type": "TOKEN_SEND"}},
			jqFilter:    `.transaction.type == "TOKEN_SEND"`,
			expectMatch: true,
		},
		{
			name:        "null result is falsy",
			input:       map[string]interface{}{},
			jqFilter:    `.missing`,
			expectMatch: false,
		},
		{
			name:        "number result is truthy",
			input:       map[string]interface{}{"approvals": float64(0)},
			jqFilter:    `.approvals`,
			expectMatch: true,
		},
		{
			name:      "runtime error",
			input:     map[string]interface{}{"status": "Approved"},
			jqFilter:  `.status | keys`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes, err := compileJQ([]string{tt.jqFilter})
			require.NoError(t, err)

			matched, err := matchJQ(codes, tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectMatch, matched)
		})
	}
}

func TestCompileJQ_Invalid(t *testing.T) {
	_, err := compileJQ([]string{".status ==", ".ok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy([]interface{}{}))
}

func TestFilterRecords(t *testing.T) {
	records := []multisig.Record{
		{Transaction: multisig.Transaction{ID: "1"}, Status: multisig.StatusApproved, CanExecute: true},
		{Transaction: multisig.Transaction{ID: "2"}, Status: multisig.StatusInitiated},
		{Transaction: multisig.Transaction{ID: "3"}, Status: multisig.StatusApproved},
	}

	codes, err := compileJQ([]string{`.status == "Approved"`, `.can_execute`})
	require.NoError(t, err)

	out, err := filterRecords(records, codes)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ID())

	out, err = filterRecords(records, nil)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, multisig.Summary{
		Account:    "0x0acc0000000000000000000000000000000000000000000000000000000000aa",
		Threshold:  2,
		Members:    3,
		Total:      4,
		Approved:   1,
		Executed:   3,
		Executable: 1,
	})

	out := buf.String()
	assert.Contains(t, out, "Executed")
	assert.Contains(t, out, "threshold 2 of 3 members, 1 executable")
	assert.Contains(t, out, "0x0acc...00aa")
}

func TestRenderRecordDetail(t *testing.T) {
	executed := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	renderRecordDetail(&buf, multisig.Record{
		Transaction: multisig.Transaction{
			ID:         "5",
			Type:       multisig.TypeTokenSend,
			Proposer:   "0x01f1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f",
			CreatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			ExecutedAt: &executed,
		},
		Status:       multisig.StatusExecuted,
		Title:        "Send 1.5 STRK",
		Amount:       "1.5",
		Token:        "STRK",
		ProposerName: "Alice",
		Approvals:    2,
		Required:     2,
	}, time.UTC)

	out := buf.String()
	assert.Contains(t, out, "Send 1.5 STRK")
	assert.Contains(t, out, "Alice (0x01f1...6e7f)")
	assert.Contains(t, out, "Executed:   2024-03-02T09:00:00Z")
	assert.Contains(t, out, "Approved by: (none)")
}
