package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/brojonat/quorum/service/multisig"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "0x000acc00000000000000000000000000000000000000000000000000000000aa"

func testRecord() multisig.Record {
	return multisig.Record{
		Transaction: multisig.Transaction{ID: "7", Type: multisig.TypeTokenSend},
		Status:      multisig.StatusApproved,
		CanExecute:  true,
		Approvals:   2,
		Required:    2,
		Title:       "Token Transfer",
		Subtitle:    "Send 1.5 STRK",
	}
}

func TestFromRecord(t *testing.T) {
	event := FromRecord(account, testRecord(), multisig.StatusInitiated)

	_, err := uuid.Parse(event.EventID)
	require.NoError(t, err)
	assert.Equal(t, multisig.NormalizeAddress(account), event.Account)
	assert.Equal(t, "7", event.TransactionID)
	assert.Equal(t, multisig.TypeTokenSend, event.Type)
	assert.Equal(t, multisig.StatusInitiated, event.PreviousStatus)
	assert.Equal(t, multisig.StatusApproved, event.Status)
	assert.True(t, event.CanExecute)
	assert.Equal(t, 2, event.Approvals)
	assert.False(t, event.PublishedAt.IsZero())

	other := FromRecord(account, testRecord(), multisig.StatusInitiated)
	assert.NotEqual(t, event.EventID, other.EventID)
}

func TestSubject(t *testing.T) {
	event := FromRecord(account, testRecord(), "")
	assert.Equal(t, "multisig."+multisig.NormalizeAddress(account), event.Subject())
	assert.Equal(t, SubjectFor(account), SubjectFor(multisig.NormalizeAddress(account)))
}

func TestStatusChangeEventJSON(t *testing.T) {
	event := FromRecord(account, testRecord(), "")
	data, err := json.Marshal(event)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "previous_status")
	assert.Equal(t, "Approved", fields["status"])
	assert.Equal(t, "TOKEN_SEND", fields["type"])
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	m := NewMockPublisher()

	require.NoError(t, m.PublishStatusChange(ctx, FromRecord(account, testRecord(), "")))
	require.NoError(t, m.PublishStatusChanges(ctx, []*StatusChangeEvent{
		FromRecord(account, testRecord(), ""),
		FromRecord(account, testRecord(), ""),
	}))
	assert.Len(t, m.Events(), 3)

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishStatusChange(ctx, FromRecord(account, testRecord(), "")))
	assert.Len(t, m.Events(), 3)

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}
