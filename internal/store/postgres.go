package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lumisage/chatscribe/pkg/types"
)

// defaultListLimit bounds ListByChannel when the caller passes limit <= 0.
const defaultListLimit = 20

// Schema is the SQL DDL for the summary_history table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS summary_history (
    id            TEXT PRIMARY KEY,
    guild_id      TEXT NOT NULL DEFAULT '',
    channel_id    TEXT NOT NULL,
    message_count INTEGER NOT NULL DEFAULT 0,
    window_start  TIMESTAMPTZ NOT NULL,
    window_end    TIMESTAMPTZ NOT NULL,
    model         TEXT NOT NULL DEFAULT '',
    payload       JSONB NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_summary_history_channel ON summary_history(channel_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_summary_history_guild ON summary_history(guild_id);
CREATE INDEX IF NOT EXISTS idx_summary_history_created ON summary_history(created_at);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. The full
// summary is serialised as JSONB; indexed columns are derived from it on
// every save.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgres creates a [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgres(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// summary_history table and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Save persists a summary result, replacing any existing record with the
// same ID.
func (s *PostgresStore) Save(ctx context.Context, res *types.SummaryResult) error {
	if res == nil {
		return errors.New("store: save: nil result")
	}
	if res.ID == "" {
		return errors.New("store: save: result has no ID")
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("store: marshal summary %q: %w", res.ID, err)
	}

	const query = `
		INSERT INTO summary_history (
			id, guild_id, channel_id, message_count,
			window_start, window_end, model, payload, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			guild_id = EXCLUDED.guild_id,
			channel_id = EXCLUDED.channel_id,
			message_count = EXCLUDED.message_count,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			model = EXCLUDED.model,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`

	_, err = s.db.Exec(ctx, query,
		res.ID, res.GuildID, res.ChannelID, res.MessageCount,
		res.StartTime, res.EndTime, res.Metadata.Model, payload, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save %q: %w", res.ID, err)
	}
	return nil
}

// Get retrieves a summary by ID. It returns (nil, nil) if no summary with
// the given ID exists.
func (s *PostgresStore) Get(ctx context.Context, id string) (*types.SummaryResult, error) {
	const query = `SELECT payload FROM summary_history WHERE id = $1`

	var payload []byte
	err := s.db.QueryRow(ctx, query, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get %q: %w", id, err)
	}

	var res types.SummaryResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("store: unmarshal summary %q: %w", id, err)
	}
	return &res, nil
}

// ListByChannel returns the most recent summaries for a channel, newest
// first.
func (s *PostgresStore) ListByChannel(ctx context.Context, channelID string, limit int) ([]types.SummaryResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	const query = `
		SELECT payload
		FROM summary_history
		WHERE channel_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list channel %q: %w", channelID, err)
	}
	defer rows.Close()

	var results []types.SummaryResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		var res types.SummaryResult
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, fmt.Errorf("store: unmarshal summary: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list channel %q: %w", channelID, err)
	}
	return results, nil
}

// Purge deletes summaries created before cutoff and returns the number of
// rows removed.
func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM summary_history WHERE created_at < $1`

	tag, err := s.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HealthCheck verifies database connectivity with a trivial query.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("store: health check: %w", err)
	}
	return nil
}
