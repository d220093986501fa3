package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/distlock"
)

// PostgresBackend stores one row per stream with the state as JSONB.
type PostgresBackend struct {
	db    *sql.DB
	table string
}

func NewPostgresBackend(db *sql.DB, table string) *PostgresBackend {
	return &PostgresBackend{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the state table when missing.
func (p *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			stream     TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, p.table))
	if err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Load(ctx context.Context, stream string) (*domain.StreamState, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT state FROM %s WHERE stream = $1`, p.table),
		stream,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	var s domain.StreamState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding state row %s: %w", stream, err)
	}
	return &s, nil
}

func (p *PostgresBackend) Save(ctx context.Context, stream string, s *domain.StreamState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	_, err = p.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (stream, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (stream) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`, p.table), stream, data)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresBackend) Close() error {
	return p.db.Close()
}

// Lock returns an advisory lock; ttl is unused since the lock lives as long
// as its session.
func (p *PostgresBackend) Lock(key string, _ time.Duration) distlock.DistLock {
	return distlock.NewPGAdvisoryLock(p.db, key)
}
