package quota

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const usageSchema = `
CREATE TABLE IF NOT EXISTS gateway_usage (
	id            BIGSERIAL PRIMARY KEY,
	user_id       TEXT NOT NULL,
	session_id    TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL,
	provider      TEXT NOT NULL,
	tier          TEXT NOT NULL,
	source        TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS gateway_usage_user_month
	ON gateway_usage (user_id, created_at);
`

// PostgresStore persists quota state in Postgres for shared deployments.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against dsn and ensures the
// usage schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, usageSchema); err != nil {
		return fmt.Errorf("ensure usage schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) TierUsage(ctx context.Context, userID, month string) (map[Tier]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, COUNT(*)
		FROM gateway_usage
		WHERE user_id = $1 AND to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') = $2
		GROUP BY tier`, userID, month)
	if err != nil {
		return nil, fmt.Errorf("query tier usage: %w", err)
	}
	defer rows.Close()

	out := map[Tier]int{}
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("scan tier usage: %w", err)
		}
		out[Tier(tier)] = count
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordUsage(ctx context.Context, row UsageRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gateway_usage
			(user_id, session_id, model, provider, tier, source, input_tokens, output_tokens, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		row.UserID, row.SessionID, row.Model, row.Provider, string(row.Tier),
		row.Source, row.InputTokens, row.OutputTokens, row.Cost, row.At)
	if err != nil {
		return fmt.Errorf("insert usage row: %w", err)
	}
	return nil
}

func (s *PostgresStore) Spend(ctx context.Context, userID, month string) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(cost)
		FROM gateway_usage
		WHERE user_id = $1 AND to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') = $2`,
		userID, month).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query spend: %w", err)
	}
	return total.Float64, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
