// Package optimize prepares message batches for summarization: quality
// filtering, content-hash deduplication, score-based truncation, and batch
// request deduplication.
//
// All transforms are pure with respect to their inputs — they return new
// slices and never mutate the messages they are given.
package optimize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lumisage/chatscribe/internal/cache"
	"github.com/lumisage/chatscribe/pkg/types"
)

// maxMessageAge is the cutoff beyond which messages are dropped regardless
// of content quality.
const maxMessageAge = 90 * 24 * time.Hour

// FilterMessages drops messages that cannot contribute to a summary:
// no substantial content, bot-authored (unless opted in), excluded authors,
// and anything older than 90 days.
func FilterMessages(messages []types.Message, opts types.SummaryOptions) []types.Message {
	cutoff := time.Now().UTC().Add(-maxMessageAge)

	kept := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if !m.HasSubstantialContent(opts.IncludeAttachments) {
			continue
		}
		if m.Bot && !opts.IncludeBots {
			continue
		}
		if opts.ExcludesUser(m.AuthorID) {
			continue
		}
		if m.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// ContentHash returns a 16-hex-character digest identifying a message's
// author and normalised content. Messages with equal hashes are duplicates
// for summarization purposes.
func ContentHash(m types.Message) string {
	content := strings.ToLower(m.Content)
	content = strings.Join(strings.Fields(content), "")
	sum := sha256.Sum256([]byte(strings.ToLower(m.AuthorName) + ":" + content))
	return hex.EncodeToString(sum[:])[:16]
}

// Deduplicate keeps the first occurrence of each content hash, preserving
// the input order of survivors.
func Deduplicate(messages []types.Message) []types.Message {
	seen := make(map[string]struct{}, len(messages))
	kept := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		h := ContentHash(m)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		kept = append(kept, m)
	}
	return kept
}

// scored pairs a message with its relevance score for truncation.
type scored struct {
	msg   types.Message
	score float64
}

// TruncateSmart keeps the n highest-scoring messages and returns them in
// chronological order. When len(messages) <= n the input is returned as a
// copy, unchanged.
//
// The score is additive: content length (up to 10), author activity (up to
// 5), +3 for attachments, +2 for code blocks, +2 for recency within the last
// hour, +3 for starting a thread. Ties break on timestamp then message ID so
// the kept set is stable under reordering of equal-score items.
func TruncateSmart(messages []types.Message, n int) []types.Message {
	if n <= 0 {
		return nil
	}
	if len(messages) <= n {
		out := make([]types.Message, len(messages))
		copy(out, messages)
		return out
	}

	authorCounts := make(map[string]int, len(messages))
	for _, m := range messages {
		authorCounts[m.AuthorID]++
	}

	now := time.Now().UTC()
	ranked := make([]scored, len(messages))
	for i, m := range messages {
		ranked[i] = scored{msg: m, score: scoreMessage(m, authorCounts[m.AuthorID], now)}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if !ranked[i].msg.Timestamp.Equal(ranked[j].msg.Timestamp) {
			return ranked[i].msg.Timestamp.Before(ranked[j].msg.Timestamp)
		}
		return ranked[i].msg.ID < ranked[j].msg.ID
	})

	kept := make([]types.Message, 0, n)
	for _, r := range ranked[:n] {
		kept = append(kept, r.msg)
	}
	sort.Slice(kept, func(i, j int) bool {
		if !kept[i].Timestamp.Equal(kept[j].Timestamp) {
			return kept[i].Timestamp.Before(kept[j].Timestamp)
		}
		return kept[i].ID < kept[j].ID
	})
	return kept
}

// scoreMessage computes the additive relevance score for one message.
func scoreMessage(m types.Message, authorCount int, now time.Time) float64 {
	score := min(float64(len(m.CleanContent()))/100, 10)
	score += min(float64(authorCount)/5, 5)

	if len(m.Attachments) > 0 {
		score += 3
	}
	if len(m.CodeBlocks) > 0 {
		score += 2
	}
	if now.Sub(m.Timestamp) <= time.Hour {
		score += 2
	}
	if m.Thread != nil && m.Thread.StarterID == m.ID {
		score += 3
	}
	return score
}

// RequestSignature identifies a summarize request for batch deduplication.
// Two requests with equal signatures would produce the same summary.
func RequestSignature(req types.SummarizeRequest) string {
	var minTS, maxTS time.Time
	for _, m := range req.Messages {
		if minTS.IsZero() || m.Timestamp.Before(minTS) {
			minTS = m.Timestamp
		}
		if m.Timestamp.After(maxTS) {
			maxTS = m.Timestamp
		}
	}
	return fmt.Sprintf("%s:%s:%d:%s:%d:%d",
		req.ChannelID, req.GuildID, len(req.Messages),
		cache.Fingerprint(req.Options),
		minTS.UTC().Unix(), maxTS.UTC().Unix())
}

// DeduplicateRequests drops requests whose signature has already been seen,
// preserving the order of the first occurrences.
func DeduplicateRequests(reqs []types.SummarizeRequest) []types.SummarizeRequest {
	seen := make(map[string]struct{}, len(reqs))
	kept := make([]types.SummarizeRequest, 0, len(reqs))
	for _, r := range reqs {
		sig := RequestSignature(r)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		kept = append(kept, r)
	}
	return kept
}
