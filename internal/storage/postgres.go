package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Cryptoprojectsfun/stocktrade/internal/database"
)

// PostgresStore implements KV on two tables: kv_records for keyed values and
// append_records for ordered lists. Update takes a row lock so concurrent
// read-modify-write cycles for the same key serialize inside the database.
//
// Schema:
//
//	CREATE TABLE kv_records (
//	    key   TEXT PRIMARY KEY,
//	    value BYTEA NOT NULL
//	);
//	CREATE TABLE append_records (
//	    id    BIGSERIAL PRIMARY KEY,
//	    key   TEXT NOT NULL,
//	    value BYTEA NOT NULL
//	);
//	CREATE INDEX append_records_key_idx ON append_records (key, id);
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_records WHERE key = $1`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecSafe(ctx, `
		INSERT INTO kv_records (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	return err
}

func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		// FOR UPDATE locks nothing when the row does not exist yet, so
		// two first writers for a key could both read "no row" and upsert
		// over each other. The advisory lock serializes per key either way.
		if _, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return err
		}

		var current []byte
		err := tx.QueryRowContext(ctx,
			`SELECT value FROM kv_records WHERE key = $1 FOR UPDATE`, key,
		).Scan(&current)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO kv_records (key, value)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`, key, next)
		return err
	})
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	return err
}

func (s *PostgresStore) Append(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecSafe(ctx,
		`INSERT INTO append_records (key, value) VALUES ($1, $2)`, key, value)
	return err
}

func (s *PostgresStore) List(ctx context.Context, key string) ([][]byte, error) {
	rows, err := s.db.QuerySafe(ctx,
		`SELECT value FROM append_records WHERE key = $1 ORDER BY id`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}

	return out, rows.Err()
}
