// Package store persists summary history to PostgreSQL.
//
// Persistence is optional: when no DSN is configured the service runs
// cache-only and summaries are lost on restart. The store keeps the full
// [types.SummaryResult] as JSONB alongside a handful of indexed columns
// used for channel history queries and retention purges.
package store

import (
	"context"
	"time"

	"github.com/lumisage/chatscribe/pkg/types"
)

// Store provides read and write access to summary history.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists a summary result. Saving the same ID twice replaces the
	// stored record.
	Save(ctx context.Context, res *types.SummaryResult) error

	// Get retrieves a summary by ID. Returns (nil, nil) if not found.
	Get(ctx context.Context, id string) (*types.SummaryResult, error)

	// ListByChannel returns the most recent summaries for a channel, newest
	// first. A limit <= 0 applies the default of 20.
	ListByChannel(ctx context.Context, channelID string, limit int) ([]types.SummaryResult, error)

	// Purge deletes summaries created before cutoff and returns how many
	// rows were removed.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}
