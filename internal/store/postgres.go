// Package store provides RecordStore implementations: a PostgreSQL-backed
// store for production and an in-memory store for tests.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pcharron/accountvet/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS person_records (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	legislatures JSONB NOT NULL DEFAULT '[]',
	best_match JSONB,
	candidates JSONB NOT NULL DEFAULT '[]',
	usernames_tested JSONB NOT NULL DEFAULT '[]',
	usernames_to_test JSONB NOT NULL DEFAULT '[]',
	verified_by_human BOOLEAN NOT NULL DEFAULT FALSE,
	human_verified_username TEXT,
	no_account_confirmed BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	record_id BIGINT,
	username TEXT,
	detail TEXT,
	ip_address TEXT,
	user_agent TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_log_created_at_idx ON audit_log (created_at DESC);
`

const recordColumns = `id, name, legislatures, best_match, candidates,
	usernames_tested, usernames_to_test,
	verified_by_human, human_verified_username, no_account_confirmed`

// Postgres is the durable RecordStore. Candidate lists and worklists live
// as JSONB inside the record row, so every record mutation is a
// single-row, single-statement write.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a store over an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Init creates the schema if it does not exist yet.
func (s *Postgres) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return storeErr(fmt.Errorf("init schema: %w", err))
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// List returns all records ordered by id, which is build/input order.
func (s *Postgres) List(ctx context.Context) ([]core.PersonRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+` FROM person_records ORDER BY id`)
	if err != nil {
		return nil, storeErr(fmt.Errorf("list records: %w", err))
	}
	defer rows.Close()

	var records []core.PersonRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(fmt.Errorf("list records: %w", err))
	}
	return records, nil
}

// Get returns one record by id.
func (s *Postgres) Get(ctx context.Context, id int64) (*core.PersonRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM person_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return rec, nil
}

// Update runs a read-modify-write on a single record inside a transaction,
// holding the row lock across the apply. Updates to different ids never
// block each other; concurrent updates to one id serialize on the row lock
// and resolve last-write-wins.
func (s *Postgres) Update(ctx context.Context, id int64, apply func(*core.PersonRecord) error) (*core.PersonRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr(fmt.Errorf("begin update: %w", err))
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM person_records WHERE id = $1 FOR UPDATE`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, storeErr(err)
	}

	if err := apply(rec); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE person_records SET
			name = $2,
			legislatures = $3,
			best_match = $4,
			candidates = $5,
			usernames_tested = $6,
			usernames_to_test = $7,
			verified_by_human = $8,
			human_verified_username = $9,
			no_account_confirmed = $10
		WHERE id = $1`,
		rec.ID, rec.Name, rec.Legislatures, rec.BestMatch, rec.Candidates,
		rec.UsernamesTested, rec.UsernamesToTest,
		rec.VerifiedByHuman, rec.HumanVerifiedUsername, rec.NoAccountConfirmed,
	)
	if err != nil {
		return nil, storeErr(fmt.Errorf("update record %d: %w", id, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr(fmt.Errorf("commit update: %w", err))
	}
	return rec, nil
}

// ReplaceAll swaps the entire record set in one exclusive transaction. The
// table lock keeps the reload from interleaving with per-record updates;
// any failure rolls back with no partial replacement.
func (s *Postgres) ReplaceAll(ctx context.Context, records []core.PersonRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(fmt.Errorf("begin reload: %w", err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE person_records IN ACCESS EXCLUSIVE MODE`); err != nil {
		return storeErr(fmt.Errorf("lock records: %w", err))
	}
	if _, err := tx.Exec(ctx, `DELETE FROM person_records`); err != nil {
		return storeErr(fmt.Errorf("clear records: %w", err))
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO person_records (`+recordColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.ID, rec.Name, rec.Legislatures, rec.BestMatch, rec.Candidates,
			rec.UsernamesTested, rec.UsernamesToTest,
			rec.VerifiedByHuman, rec.HumanVerifiedUsername, rec.NoAccountConfirmed,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return storeErr(fmt.Errorf("insert records: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(fmt.Errorf("commit reload: %w", err))
	}
	return nil
}

// Stats aggregates verification counts in a single query.
func (s *Postgres) Stats(ctx context.Context) (core.Stats, error) {
	var st core.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE verified_by_human),
			COUNT(*) FILTER (WHERE NOT verified_by_human),
			COUNT(*) FILTER (WHERE verified_by_human AND human_verified_username IS NOT NULL),
			COUNT(*) FILTER (WHERE no_account_confirmed)
		FROM person_records`,
	).Scan(&st.Total, &st.Verified, &st.Unverified, &st.WithAccount, &st.NoAccount)
	if err != nil {
		return core.Stats{}, storeErr(fmt.Errorf("stats: %w", err))
	}
	return st, nil
}

// AppendAudit inserts one audit entry.
func (s *Postgres) AppendAudit(ctx context.Context, entry core.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, action, record_id, username, detail, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Action, entry.RecordID, entry.Username, entry.Detail,
		entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		return storeErr(fmt.Errorf("append audit: %w", err))
	}
	return nil
}

// RecentAudit returns the newest audit entries, newest first.
func (s *Postgres) RecentAudit(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, action, record_id, username, detail, ip_address, user_agent, created_at
		FROM audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, storeErr(fmt.Errorf("list audit: %w", err))
	}
	defer rows.Close()

	var entries []core.AuditEntry
	for rows.Next() {
		var e core.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.RecordID, &e.Username, &e.Detail,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, storeErr(fmt.Errorf("scan audit: %w", err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(fmt.Errorf("list audit: %w", err))
	}
	return entries, nil
}

func scanRecord(row pgx.Row) (*core.PersonRecord, error) {
	var rec core.PersonRecord
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Legislatures, &rec.BestMatch, &rec.Candidates,
		&rec.UsernamesTested, &rec.UsernamesToTest,
		&rec.VerifiedByHuman, &rec.HumanVerifiedUsername, &rec.NoAccountConfirmed,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// storeErr wraps database failures so callers can treat the store as a
// retryable dependency. NotFound and validation errors pass through typed.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return core.StoreUnavailableError{Err: err}
}
