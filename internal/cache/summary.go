package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lumisage/chatscribe/pkg/types"
)

// keyPrefix is the namespace for all summary cache keys.
const keyPrefix = "summary"

// hourFormat renders a timestamp truncated to the hour, in UTC.
const hourFormat = "2006010215"

// SummaryCache memoizes summarization results keyed by a canonical
// fingerprint of the request. It is a thin typed overlay on a [Backend]:
// values are the JSON wire form of [types.SummaryResult].
//
// Keys take the form
//
//	summary:<channel_id>:<start_hour>:<end_hour>:<options_fp>
//
// where the hour fields are the message range boundaries truncated to the
// hour (UTC, YYYYMMDDHH). Hour truncation deliberately widens the cache-hit
// window for near-identical requests.
type SummaryCache struct {
	backend Backend
	ttl     time.Duration
}

// NewSummaryCache creates a SummaryCache storing entries with the given TTL.
// A TTL <= 0 means entries never expire (subject to backend eviction).
func NewSummaryCache(backend Backend, ttl time.Duration) *SummaryCache {
	return &SummaryCache{backend: backend, ttl: ttl}
}

// Fingerprint returns a stable 8-hex-character digest of the option subset
// that affects LLM output. Options that cannot change the produced summary
// (e.g., min_messages, which only gates execution) are excluded, so requests
// differing only in those share a cache entry.
func Fingerprint(opts types.SummaryOptions) string {
	excluded := append([]string(nil), opts.ExcludedUsers...)
	sort.Strings(excluded)

	var sb strings.Builder
	fmt.Fprintf(&sb, "model=%s;length=%s;temp=%.3f;max_tokens=%d;",
		opts.Model, opts.Length, opts.Temperature, opts.MaxTokens)
	fmt.Fprintf(&sb, "bots=%t;attachments=%t;actions=%t;terms=%t;",
		opts.IncludeBots, opts.IncludeAttachments, opts.ExtractActionItems, opts.ExtractTechnicalTerms)
	fmt.Fprintf(&sb, "excluded=%s", strings.Join(excluded, ","))

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])[:8]
}

// Key builds the canonical cache key for a channel, message time range, and
// option set. Identical inputs always produce identical keys.
func Key(channelID string, start, end time.Time, opts types.SummaryOptions) string {
	return strings.Join([]string{
		keyPrefix,
		channelID,
		start.UTC().Format(hourFormat),
		end.UTC().Format(hourFormat),
		Fingerprint(opts),
	}, ":")
}

// Get returns the cached result for key. Absent, expired, or undecodable
// entries all report a miss; an undecodable entry is removed so it cannot
// poison subsequent lookups.
func (c *SummaryCache) Get(key string) (*types.SummaryResult, bool) {
	raw, ok := c.backend.Get(key)
	if !ok {
		return nil, false
	}

	var result types.SummaryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		slog.Warn("summary cache: dropping undecodable entry", "key", key, "err", err)
		c.backend.Delete(key)
		return nil, false
	}
	return &result, true
}

// Set stores result under key with the cache's TTL.
func (c *SummaryCache) Set(key string, result *types.SummaryResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("summary cache: encode result: %w", err)
	}
	c.backend.Set(key, raw, c.ttl)
	return nil
}

// InvalidateChannel removes every cached summary for the given channel.
// Returns the number of entries removed.
func (c *SummaryCache) InvalidateChannel(channelID string) int {
	return c.backend.Clear(keyPrefix + ":" + channelID + ":")
}

// InvalidateGuild removes every cached summary. Summary keys are not
// guild-scoped, so guild invalidation is deliberately coarse.
func (c *SummaryCache) InvalidateGuild(guildID string) int {
	n := c.backend.Clear(keyPrefix + ":")
	slog.Info("summary cache: guild invalidation cleared all summaries", "guild_id", guildID, "removed", n)
	return n
}

// HealthCheck probes the underlying backend.
func (c *SummaryCache) HealthCheck(ctx context.Context) error {
	return c.backend.HealthCheck(ctx)
}
