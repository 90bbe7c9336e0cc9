package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct{ pool *pgxpool.Pool }

// OpenPostgres connects a pgx pool and bootstraps the kv tables. Used when the
// service shares a Postgres instance instead of running on local sqlite.
func OpenPostgres(ctx context.Context, databaseURL string) (Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS kv_hash (
  key TEXT NOT NULL,
  field TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (key, field)
);
CREATE TABLE IF NOT EXISTS kv_set (
  key TEXT NOT NULL,
  member TEXT NOT NULL,
  PRIMARY KEY (key, member)
);`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) GetHash(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT field, value FROM kv_hash WHERE key=$1`, key)
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

func (s *postgresStore) SetHash(ctx context.Context, key string, fields map[string]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM kv_hash WHERE key=$1`, key); err != nil {
		return err
	}
	for f, v := range fields {
		if _, err := tx.Exec(ctx, `INSERT INTO kv_hash(key,field,value) VALUES ($1,$2,$3)`, key, f, v); err != nil {
			return fmt.Errorf("set hash %s: %w", key, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *postgresStore) DeleteHash(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_hash WHERE key=$1`, key)
	return err
}

func (s *postgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT key FROM kv_hash WHERE key LIKE $1 ORDER BY key`, prefix+"%")
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

func (s *postgresStore) Members(ctx context.Context, setKey string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT member FROM kv_set WHERE key=$1 ORDER BY member`, setKey)
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

func (s *postgresStore) AddMember(ctx context.Context, setKey, member string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_set(key,member) VALUES ($1,$2) ON CONFLICT (key,member) DO NOTHING`, setKey, member)
	return err
}

func (s *postgresStore) RemoveMember(ctx context.Context, setKey, member string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_set WHERE key=$1 AND member=$2`, setKey, member)
	return err
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
