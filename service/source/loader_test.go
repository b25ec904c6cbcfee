package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/quorum/service/db"
	"github.com/brojonat/quorum/service/multisig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "0x0acc0000000000000000000000000000000000000000000000000000000000aa"

// fakeStore serves fixed lists and fails a configurable number of times per source.
type fakeStore struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
	missing  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{failures: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeStore) hit(source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[source]++
	if f.failures[source] != 0 {
		f.failures[source]--
		return fmt.Errorf("%s unavailable", source)
	}
	return nil
}

func (f *fakeStore) callCount(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[source]
}

func (f *fakeStore) GetAccount(ctx context.Context, address string) (multisig.AccountContext, error) {
	if err := f.hit(AccountSource); err != nil {
		return multisig.AccountContext{}, err
	}
	if f.missing {
		return multisig.AccountContext{}, fmt.Errorf("account %s: %w", address, db.ErrNotFound)
	}
	return multisig.AccountContext{Address: address, Threshold: 2}, nil
}

func (f *fakeStore) ListRawTransactions(ctx context.Context, address string) ([]multisig.RawTransaction, error) {
	if err := f.hit(multisig.RawSource); err != nil {
		return nil, err
	}
	return []multisig.RawTransaction{{ID: "1", Type: multisig.TypeTokenSend, DateCreated: "1"}}, nil
}

func (f *fakeStore) ListPayloads(ctx context.Context, address string, tag multisig.TypeTag) ([]multisig.Payload, error) {
	info, _ := multisig.Lookup(tag)
	if err := f.hit(info.Source); err != nil {
		return nil, err
	}
	if tag == multisig.TypeTokenSend {
		return []multisig.Payload{multisig.TokenSend{Amount: "1"}}, nil
	}
	return []multisig.Payload{}, nil
}

func testLoader(store Store) *Loader {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewLoader(store, logger, WithRetries(2), WithRetryInterval(time.Millisecond))
}

func TestLoad(t *testing.T) {
	store := newFakeStore()

	snap, err := testLoader(store).Load(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Account.Threshold)
	assert.Len(t, snap.Inputs.Raw, 1)
	assert.Len(t, snap.Inputs.Payloads, len(multisig.TypeTags))
	assert.Len(t, snap.Inputs.Payloads[multisig.TypeTokenSend], 1)
	assert.NoError(t, multisig.CheckInputs(snap.Inputs))
}

func TestLoad_RetriesTransientFailure(t *testing.T) {
	store := newFakeStore()
	store.failures["token_send"] = 2

	snap, err := testLoader(store).Load(context.Background(), account)
	require.NoError(t, err)

	assert.Len(t, snap.Inputs.Payloads[multisig.TypeTokenSend], 1)
	assert.Equal(t, 3, store.callCount("token_send"))
	assert.Equal(t, 1, store.callCount("nft_send"))
}

func TestLoad_AggregatesFailures(t *testing.T) {
	store := newFakeStore()
	store.failures[multisig.RawSource] = -1
	store.failures["smart_token_lock"] = -1

	snap, err := testLoader(store).Load(context.Background(), account)
	require.Error(t, err)
	assert.Nil(t, snap)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, []string{multisig.RawSource, "smart_token_lock"}, fetchErr.Sources)
	assert.Len(t, fetchErr.Errs, 2)
	assert.Contains(t, err.Error(), "2 source(s) failed")
	assert.Contains(t, err.Error(), "smart_token_lock unavailable")
	assert.Equal(t, 3, store.callCount(multisig.RawSource))
}

func TestLoad_MissingAccountNotRetried(t *testing.T) {
	store := newFakeStore()
	store.missing = true

	_, err := testLoader(store).Load(context.Background(), account)
	require.Error(t, err)

	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Equal(t, 1, store.callCount(AccountSource))
}

func TestLoad_Cancelled(t *testing.T) {
	store := newFakeStore()
	store.failures["nft_send"] = -1
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewLoader(store, slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		WithRetries(100), WithRetryInterval(time.Hour))
	_, err := loader.Load(ctx, account)

	require.Error(t, err)
	assert.LessOrEqual(t, store.callCount("nft_send"), 1)
}

func TestLoadFile(t *testing.T) {
	snap, err := LoadFile("testdata/snapshot.json")
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Account.Threshold)
	assert.Len(t, snap.Account.Tokens, 1)
	assert.Len(t, snap.Inputs.Raw, 2)
	assert.NoError(t, multisig.CheckInputs(snap.Inputs))

	_, err = LoadFile("testdata/nope.json")
	assert.Error(t, err)
}
