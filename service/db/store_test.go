package db

import (
	"context"
	"testing"

	"github.com/brojonat/quorum/service/multisig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccount = "0x0acc0000000000000000000000000000000000000000000000000000000000aa"
	alice       = "0x01f1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f"
	bob         = "0x02b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0"
	strk        = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"
)

func seedAccount(t *testing.T, store *TestStore) {
	t.Helper()
	err := store.UpsertAccount(context.Background(), multisig.AccountContext{
		Address:   testAccount,
		Threshold: 2,
		Members: []multisig.Member{
			{Address: alice, Name: "Alice", Permissions: 7},
			{Address: bob, Name: "Bob", Permissions: 3},
		},
		Tokens: []multisig.Token{{Address: strk, Symbol: "STRK", Decimals: 18}},
	})
	require.NoError(t, err)
}

func TestAccounts(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	seedAccount(t, store)

	t.Run("get account", func(t *testing.T) {
		account, err := store.GetAccount(ctx, testAccount)
		require.NoError(t, err)

		assert.Equal(t, multisig.NormalizeAddress(testAccount), account.Address)
		assert.Equal(t, 2, account.Threshold)
		require.Len(t, account.Members, 2)
		assert.Equal(t, "Alice", account.Members[0].Name)
		assert.Equal(t, uint8(7), account.Members[0].Permissions)
		require.Len(t, account.Tokens, 1)
		assert.Equal(t, 18, account.Tokens[0].Decimals)
	})

	t.Run("upsert replaces directories", func(t *testing.T) {
		err := store.UpsertAccount(ctx, multisig.AccountContext{
			Address:   testAccount,
			Threshold: 1,
			Members:   []multisig.Member{{Address: bob, Name: "Bob"}},
		})
		require.NoError(t, err)

		account, err := store.GetAccount(ctx, testAccount)
		require.NoError(t, err)
		assert.Equal(t, 1, account.Threshold)
		assert.Len(t, account.Members, 1)
		assert.Empty(t, account.Tokens)
	})

	t.Run("list accounts", func(t *testing.T) {
		accounts, err := store.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{multisig.NormalizeAddress(testAccount)}, accounts)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := store.GetAccount(ctx, "0xdead")
		assert.ErrorIs(t, err, ErrNotFound)

		err = store.DeleteAccount(ctx, "0xdead")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInputs(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	seedAccount(t, store)

	in := multisig.Inputs{
		Raw: []multisig.RawTransaction{
			{ID: "1", Type: multisig.TypeTokenSend, Proposer: alice, ApprovedBy: []string{alice}, DateCreated: "1709294400"},
			{ID: "2", Type: multisig.TypeThresholdChange, Proposer: bob, DateCreated: "1709380800"},
		},
		Payloads: map[multisig.TypeTag][]multisig.Payload{
			multisig.TypeTokenSend:       {multisig.TokenSend{Token: strk, Amount: "1000", Recipient: bob}},
			multisig.TypeThresholdChange: {multisig.ThresholdChange{NewThreshold: "3"}},
		},
	}
	require.NoError(t, store.ReplaceInputs(ctx, testAccount, in))

	t.Run("raw transactions keep order", func(t *testing.T) {
		raw, err := store.ListRawTransactions(ctx, testAccount)
		require.NoError(t, err)
		require.Len(t, raw, 2)
		assert.Equal(t, "1", raw[0].ID)
		assert.Equal(t, []string{alice}, raw[0].ApprovedBy)
		assert.Equal(t, []string{}, raw[1].ApprovedBy)
	})

	t.Run("payloads decode by type", func(t *testing.T) {
		payloads, err := store.ListPayloads(ctx, testAccount, multisig.TypeTokenSend)
		require.NoError(t, err)
		assert.Equal(t, []multisig.Payload{multisig.TokenSend{Token: strk, Amount: "1000", Recipient: bob}}, payloads)

		empty, err := store.ListPayloads(ctx, testAccount, multisig.TypeNFTSend)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("append extends positions", func(t *testing.T) {
		err := store.AppendPayloads(ctx, testAccount, multisig.TypeTokenSend, []multisig.Payload{
			multisig.TokenSend{Token: strk, Amount: "2000", Recipient: alice},
		})
		require.NoError(t, err)

		err = store.AppendRawTransactions(ctx, testAccount, []multisig.RawTransaction{
			{ID: "1", Type: multisig.TypeTokenSend, Proposer: alice, ApprovedBy: []string{alice, bob}, DateCreated: "1709294400"},
			{ID: "3", Type: multisig.TypeTokenSend, Proposer: alice, DateCreated: "1709470800"},
		})
		require.NoError(t, err)

		raw, err := store.ListRawTransactions(ctx, testAccount)
		require.NoError(t, err)
		require.Len(t, raw, 3)
		assert.Equal(t, []string{alice, bob}, raw[0].ApprovedBy)
		assert.Equal(t, "3", raw[2].ID)

		payloads, err := store.ListPayloads(ctx, testAccount, multisig.TypeTokenSend)
		require.NoError(t, err)
		require.Len(t, payloads, 2)
		assert.Equal(t, "2000", payloads[1].(multisig.TokenSend).Amount)
	})
}

func TestTransactionStates(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	seedAccount(t, store)

	states, err := store.GetTransactionStates(ctx, testAccount)
	require.NoError(t, err)
	assert.Empty(t, states)

	require.NoError(t, store.SaveTransactionStates(ctx, testAccount, map[string]multisig.Status{
		"1": multisig.StatusInitiated,
		"2": multisig.StatusApproved,
	}))
	require.NoError(t, store.SaveTransactionStates(ctx, testAccount, map[string]multisig.Status{
		"1": multisig.StatusExecuted,
	}))

	states, err = store.GetTransactionStates(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, map[string]multisig.Status{
		"1": multisig.StatusExecuted,
		"2": multisig.StatusApproved,
	}, states)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/db", migrateURL("postgres://u:p@localhost:5432/db"))
	assert.Equal(t, "pgx5://localhost/db", migrateURL("postgresql://localhost/db"))
	assert.Equal(t, "pgx5://localhost/db", migrateURL("pgx5://localhost/db"))
}
