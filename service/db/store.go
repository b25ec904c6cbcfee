package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/quorum/service/metrics"
	"github.com/brojonat/quorum/service/multisig"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithMetrics makes the store record query metrics.
func (s *Store) WithMetrics(m *metrics.Metrics) *Store {
	s.metrics = m
	return s
}

// observe starts timing a query. Defer the returned func with the address of
// the method's named error result.
func (s *Store) observe(operation, table string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		if s.metrics != nil {
			s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), *errp)
		}
	}
}

// UpsertAccount creates or replaces an account together with its member and
// token directories.
func (s *Store) UpsertAccount(ctx context.Context, account multisig.AccountContext) (err error) {
	defer s.observe("upsert", "accounts")(&err)

	address := multisig.NormalizeAddress(account.Address)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (address, threshold)
			VALUES ($1, $2)
			ON CONFLICT (address) DO UPDATE
			SET threshold = EXCLUDED.threshold, updated_at = now()`,
			address, account.Threshold)
		if err != nil {
			return fmt.Errorf("upsert account: %w", err)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM account_members WHERE account = $1`, address)
		batch.Queue(`DELETE FROM account_tokens WHERE account = $1`, address)
		for i, m := range account.Members {
			batch.Queue(`
				INSERT INTO account_members (account, address, name, permissions, ordinal)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (account, address) DO NOTHING`,
				address, m.Address, m.Name, int16(m.Permissions), i)
		}
		for _, t := range account.Tokens {
			batch.Queue(`
				INSERT INTO account_tokens (account, address, symbol, decimals)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (account, address) DO NOTHING`,
				address, t.Address, t.Symbol, t.Decimals)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("replace account directories: %w", err)
		}
		return nil
	})
}

// GetAccount returns the account context of address.
func (s *Store) GetAccount(ctx context.Context, address string) (account multisig.AccountContext, err error) {
	defer s.observe("get", "accounts")(&err)

	address = multisig.NormalizeAddress(address)
	account.Address = address
	err = s.pool.QueryRow(ctx, `SELECT threshold FROM accounts WHERE address = $1`, address).Scan(&account.Threshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return multisig.AccountContext{}, fmt.Errorf("account %s: %w", address, ErrNotFound)
	}
	if err != nil {
		return multisig.AccountContext{}, fmt.Errorf("get account: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT address, name, permissions
		FROM account_members
		WHERE account = $1
		ORDER BY ordinal`, address)
	if err != nil {
		return multisig.AccountContext{}, fmt.Errorf("list members: %w", err)
	}
	account.Members, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (multisig.Member, error) {
		var m multisig.Member
		var perms int16
		err := row.Scan(&m.Address, &m.Name, &perms)
		m.Permissions = uint8(perms)
		return m, err
	})
	if err != nil {
		return multisig.AccountContext{}, fmt.Errorf("scan members: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT address, symbol, decimals
		FROM account_tokens
		WHERE account = $1
		ORDER BY symbol`, address)
	if err != nil {
		return multisig.AccountContext{}, fmt.Errorf("list tokens: %w", err)
	}
	account.Tokens, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (multisig.Token, error) {
		var t multisig.Token
		err := row.Scan(&t.Address, &t.Symbol, &t.Decimals)
		return t, err
	})
	if err != nil {
		return multisig.AccountContext{}, fmt.Errorf("scan tokens: %w", err)
	}

	return account, nil
}

// ListAccounts returns every known account address.
func (s *Store) ListAccounts(ctx context.Context) (addresses []string, err error) {
	defer s.observe("list", "accounts")(&err)

	rows, err := s.pool.Query(ctx, `SELECT address FROM accounts ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// DeleteAccount removes an account and everything indexed for it.
func (s *Store) DeleteAccount(ctx context.Context, address string) (err error) {
	defer s.observe("delete", "accounts")(&err)

	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE address = $1`, multisig.NormalizeAddress(address))
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", address, ErrNotFound)
	}
	return nil
}

// ReplaceInputs swaps the indexed raw transactions and payload lists of an
// account for in, atomically.
func (s *Store) ReplaceInputs(ctx context.Context, address string, in multisig.Inputs) (err error) {
	defer s.observe("replace", "raw_transactions")(&err)

	address = multisig.NormalizeAddress(address)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM raw_transactions WHERE account = $1`, address)
		batch.Queue(`DELETE FROM transaction_payloads WHERE account = $1`, address)
		for _, r := range in.Raw {
			queueRawTransaction(batch, address, r)
		}
		for tag, list := range in.Payloads {
			for i, p := range list {
				data, err := json.Marshal(p)
				if err != nil {
					return fmt.Errorf("encode %s payload %d: %w", tag, i, err)
				}
				batch.Queue(`
					INSERT INTO transaction_payloads (account, tx_type, position, payload)
					VALUES ($1, $2, $3, $4)`,
					address, string(tag), i, data)
			}
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("replace inputs: %w", err)
		}
		return nil
	})
}

// AppendRawTransactions adds raw transactions to the end of an account's list.
// Transactions already present have their votes and execution fields updated
// in place, keeping their position.
func (s *Store) AppendRawTransactions(ctx context.Context, address string, raw []multisig.RawTransaction) (err error) {
	defer s.observe("insert", "raw_transactions")(&err)

	address = multisig.NormalizeAddress(address)
	batch := &pgx.Batch{}
	for _, r := range raw {
		queueRawTransaction(batch, address, r)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append raw transactions: %w", err)
	}
	return nil
}

func queueRawTransaction(batch *pgx.Batch, account string, r multisig.RawTransaction) {
	batch.Queue(`
		INSERT INTO raw_transactions
			(account, id, tx_type, tx_status, proposer, executor, approved, rejected, date_created, date_executed, executed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account, id) DO UPDATE SET
			tx_status = EXCLUDED.tx_status,
			executor = EXCLUDED.executor,
			approved = EXCLUDED.approved,
			rejected = EXCLUDED.rejected,
			date_executed = EXCLUDED.date_executed,
			executed = EXCLUDED.executed`,
		account, r.ID, string(r.Type), r.Status, r.Proposer, r.Executor,
		nonNil(r.ApprovedBy), nonNil(r.RejectedBy), r.DateCreated, r.DateExecuted, r.Executed)
}

// ListRawTransactions returns the raw transactions of an account in arrival
// order. The result is never nil.
func (s *Store) ListRawTransactions(ctx context.Context, address string) (raw []multisig.RawTransaction, err error) {
	defer s.observe("list", "raw_transactions")(&err)

	rows, err := s.pool.Query(ctx, `
		SELECT id, tx_type, tx_status, proposer, executor, approved, rejected, date_created, date_executed, executed
		FROM raw_transactions
		WHERE account = $1
		ORDER BY seq`, multisig.NormalizeAddress(address))
	if err != nil {
		return nil, fmt.Errorf("list raw transactions: %w", err)
	}
	raw, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (multisig.RawTransaction, error) {
		var r multisig.RawTransaction
		var tag string
		err := row.Scan(&r.ID, &tag, &r.Status, &r.Proposer, &r.Executor,
			&r.ApprovedBy, &r.RejectedBy, &r.DateCreated, &r.DateExecuted, &r.Executed)
		r.Type = multisig.TypeTag(tag)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan raw transactions: %w", err)
	}
	if raw == nil {
		raw = []multisig.RawTransaction{}
	}
	return raw, nil
}

// AppendPayloads adds payloads to the end of an account's list for tag.
func (s *Store) AppendPayloads(ctx context.Context, address string, tag multisig.TypeTag, payloads []multisig.Payload) (err error) {
	defer s.observe("insert", "transaction_payloads")(&err)

	address = multisig.NormalizeAddress(address)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Serialize appends per list so positions stay dense.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, address+"/"+string(tag)); err != nil {
			return fmt.Errorf("lock payload list: %w", err)
		}

		var next int
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(position) + 1, 0)
			FROM transaction_payloads
			WHERE account = $1 AND tx_type = $2`, address, string(tag)).Scan(&next)
		if err != nil {
			return fmt.Errorf("next payload position: %w", err)
		}

		batch := &pgx.Batch{}
		for i, p := range payloads {
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode %s payload %d: %w", tag, i, err)
			}
			batch.Queue(`
				INSERT INTO transaction_payloads (account, tx_type, position, payload)
				VALUES ($1, $2, $3, $4)`,
				address, string(tag), next+i, data)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("append payloads: %w", err)
		}
		return nil
	})
}

// ListPayloads returns the payload list of tag for an account in position
// order. The result is never nil.
func (s *Store) ListPayloads(ctx context.Context, address string, tag multisig.TypeTag) (payloads []multisig.Payload, err error) {
	defer s.observe("list", "transaction_payloads")(&err)

	rows, err := s.pool.Query(ctx, `
		SELECT payload
		FROM transaction_payloads
		WHERE account = $1 AND tx_type = $2
		ORDER BY position`, multisig.NormalizeAddress(address), string(tag))
	if err != nil {
		return nil, fmt.Errorf("list %s payloads: %w", tag, err)
	}
	payloads, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (multisig.Payload, error) {
		var data []byte
		if err := row.Scan(&data); err != nil {
			return nil, err
		}
		return multisig.DecodePayload(tag, data)
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s payloads: %w", tag, err)
	}
	if payloads == nil {
		payloads = []multisig.Payload{}
	}
	return payloads, nil
}

// GetTransactionStates returns the last saved status of every transaction of
// an account.
func (s *Store) GetTransactionStates(ctx context.Context, address string) (states map[string]multisig.Status, err error) {
	defer s.observe("list", "transaction_states")(&err)

	rows, err := s.pool.Query(ctx, `
		SELECT transaction_id, status
		FROM transaction_states
		WHERE account = $1`, multisig.NormalizeAddress(address))
	if err != nil {
		return nil, fmt.Errorf("list transaction states: %w", err)
	}
	defer rows.Close()

	states = make(map[string]multisig.Status)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan transaction state: %w", err)
		}
		states[id] = multisig.Status(status)
	}
	return states, rows.Err()
}

// SaveTransactionStates upserts the given statuses.
func (s *Store) SaveTransactionStates(ctx context.Context, address string, states map[string]multisig.Status) (err error) {
	defer s.observe("upsert", "transaction_states")(&err)

	address = multisig.NormalizeAddress(address)
	batch := &pgx.Batch{}
	for id, status := range states {
		batch.Queue(`
			INSERT INTO transaction_states (account, transaction_id, status)
			VALUES ($1, $2, $3)
			ON CONFLICT (account, transaction_id) DO UPDATE
			SET status = EXCLUDED.status, updated_at = now()`,
			address, id, string(status))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save transaction states: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
