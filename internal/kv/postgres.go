package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Postgres stores blobs in a single table keyed by (namespace, key).
// Set stages values in memory; Commit writes them in one transaction.
type Postgres struct {
	conn      *pgx.Conn
	namespace string

	mu     sync.Mutex
	staged map[string][]byte
}

// OpenPostgres establishes a connection and ensures the schema is initialized.
func OpenPostgres(ctx context.Context, connString, namespace string) (*Postgres, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Postgres{conn: conn, namespace: namespace, staged: map[string][]byte{}}, nil
}

// initSchema creates the blob table if it doesn't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS kv_blobs (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := p.conn.QueryRow(ctx, "SELECT value FROM kv_blobs WHERE namespace = $1 AND key = $2", p.namespace, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (p *Postgres) Set(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged[key] = append([]byte(nil), value...)
	return nil
}

func (p *Postgres) Commit(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.staged) == 0 {
		return nil
	}

	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for k, v := range p.staged {
		_, err := tx.Exec(ctx, `
			INSERT INTO kv_blobs (namespace, key, value, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`, p.namespace, k, v)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	clear(p.staged)
	return nil
}

// Reset drops the blob table. The next OpenPostgres recreates it.
func (p *Postgres) Reset(ctx context.Context) error {
	_, err := p.conn.Exec(ctx, `DROP TABLE IF EXISTS kv_blobs CASCADE;`)
	return err
}

// Close terminates the database connection.
// Background context: the caller's context may already be cancelled (Ctrl+C).
func (p *Postgres) Close() error {
	return p.conn.Close(context.Background())
}
