package multisig

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	alice = "0x01f1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f"
	bob   = "0x02b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0"
	carol = "0x03ca401c0ffee0000000000000000000000000000000000000000000000000c0"
	dave  = "0x04da7e00000000000000000000000000000000000000000000000000000000d4"
	erin  = "0x05e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1e1"

	strk = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"
	usdc = "0x053c91253bc9682c04929ca02ed00b3e423f6710d2ee7e0d5ebb06f3ecf368a8"
	nfts = "0x0600000000000000000000000000000000000000000000000000000000000abc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAccount() AccountContext {
	return AccountContext{
		Address:   "0x0acc0000000000000000000000000000000000000000000000000000000000aa",
		Threshold: 2,
		Members: []Member{
			{Address: alice, Name: "Alice", Permissions: 7},
			{Address: bob, Name: "Bob", Permissions: 3},
			{Address: carol, Name: "Carol", Permissions: 2},
		},
		Tokens: []Token{
			{Address: strk, Symbol: "STRK", Decimals: 18},
			{Address: usdc, Symbol: "USDC", Decimals: 6},
		},
	}
}

// day1 is 2024-03-01 12:00 UTC.
var day1 = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func epoch(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func raw(id string, tag TypeTag, created time.Time) RawTransaction {
	return RawTransaction{
		ID:          id,
		Type:        tag,
		Proposer:    alice,
		ApprovedBy:  []string{alice},
		DateCreated: epoch(created),
	}
}

// emptyPayloads returns a payload map with every registered list present and empty.
func emptyPayloads() map[TypeTag][]Payload {
	out := make(map[TypeTag][]Payload, len(TypeTags))
	for _, tag := range TypeTags {
		out[tag] = []Payload{}
	}
	return out
}

func record(id string, tag TypeTag, status Status, created time.Time, amount string) Record {
	return Record{
		Transaction: Transaction{ID: id, Type: tag, CreatedAt: created},
		Status:      status,
		Amount:      amount,
	}
}

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Transaction.ID)
	}
	return out
}

func txIDs(txs []Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}
