package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS catalog_documents (
	name       TEXT PRIMARY KEY,
	body       BYTEA NOT NULL,
	digest     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStorage keeps documents in the catalog_documents table.
type PostgresStorage struct {
	db *sql.DB
}

// BuildPostgresDSNFromEnv assembles a DSN from PG_HOST, PG_PORT, PG_USER,
// PG_PASSWORD, PG_DB and PG_SSLMODE.
func BuildPostgresDSNFromEnv() string {
	get := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}
	dsn := "postgres://" + get("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + get("PG_HOST", "localhost") + ":" + get("PG_PORT", "5432") +
		"/" + get("PG_DB", "geofence") + "?sslmode=" + get("PG_SSLMODE", "disable")
	return dsn
}

// NewPostgresStorage connects to dsn and creates the table if needed.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStorage{db: db}, nil
}

func (s *PostgresStorage) Store(ctx context.Context, name string, data []byte) (Digest, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	digest := ComputeDigest(data)
	_, err := s.db.ExecContext(ctx, `INSERT INTO catalog_documents (name, body, digest)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, digest = EXCLUDED.digest, updated_at = now()`,
		name, data, string(digest))
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return digest, nil
}

func (s *PostgresStorage) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM catalog_documents WHERE name = $1`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return body, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catalog_documents WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *PostgresStorage) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM catalog_documents WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", name, err)
	}
	return exists, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// Open selects a backend: "memory", "file" (location is a directory) or
// "postgres" (location is a DSN; empty reads PG_* variables).
func Open(ctx context.Context, kind, location string) (Storage, error) {
	switch kind {
	case "", "file":
		if location == "" {
			location = "."
		}
		return NewFileStorage(location)
	case "memory":
		return NewMemoryStorage(0), nil
	case "postgres":
		if location == "" {
			location = BuildPostgresDSNFromEnv()
		}
		return NewPostgresStorage(ctx, location)
	}
	return nil, fmt.Errorf("unknown storage backend %q", kind)
}
