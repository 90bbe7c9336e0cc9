package kvstore

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the kv tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS kv_hash (
  key TEXT NOT NULL,
  field TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (key, field)
);
CREATE INDEX IF NOT EXISTS idx_kv_hash_key ON kv_hash(key);
CREATE TABLE IF NOT EXISTS kv_set (
  key TEXT NOT NULL,
  member TEXT NOT NULL,
  PRIMARY KEY (key, member)
);
`
	_, err := db.Exec(schema)
	return err
}

type sqliteStore struct{ db *sql.DB }

// NewSQLite wraps an opened sqlite database as a Store. The caller owns schema
// bootstrap via EnsureSchema.
func NewSQLite(db *sql.DB) Store { return &sqliteStore{db: db} }

func (s *sqliteStore) GetHash(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM kv_hash WHERE key=?`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields map[string]string
	for rows.Next() {
		var f, v string
		if err := rows.Scan(&f, &v); err != nil {
			return nil, err
		}
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[f] = v
	}
	return fields, rows.Err()
}

func (s *sqliteStore) SetHash(ctx context.Context, key string, fields map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv_hash WHERE key=?`, key); err != nil {
		return err
	}
	for f, v := range fields {
		if _, err := tx.ExecContext(ctx, `INSERT INTO kv_hash(key,field,value) VALUES (?,?,?)`, key, f, v); err != nil {
			return fmt.Errorf("set hash %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) DeleteHash(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_hash WHERE key=?`, key)
	return err
}

func (s *sqliteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT key FROM kv_hash WHERE key LIKE ? ORDER BY key`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *sqliteStore) Members(ctx context.Context, setKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT member FROM kv_set WHERE key=? ORDER BY member`, setKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *sqliteStore) AddMember(ctx context.Context, setKey, member string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_set(key,member) VALUES (?,?) ON CONFLICT(key,member) DO NOTHING`, setKey, member)
	return err
}

func (s *sqliteStore) RemoveMember(ctx context.Context, setKey, member string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_set WHERE key=? AND member=?`, setKey, member)
	return err
}

func (s *sqliteStore) Close() error { return s.db.Close() }
