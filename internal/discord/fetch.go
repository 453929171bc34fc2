package discord

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lumisage/chatscribe/pkg/types"
)

// fetchPageSize is the Discord API maximum for a single history page.
const fetchPageSize = 100

// DefaultFetchLimit caps how many messages a single summarization command
// will pull from channel history.
const DefaultFetchLimit = 1000

// codeFence matches fenced code blocks with an optional language tag.
var codeFence = regexp.MustCompile("(?s)```([a-zA-Z0-9+#._-]*)\\n?(.*?)```")

// Window bounds a history fetch. A zero Start means "as far back as the
// limit allows"; a zero End means "up to the newest message".
type Window struct {
	Start time.Time
	End   time.Time
}

// historyAPI is the slice of the Discord API the fetcher needs. A
// *discordgo.Session satisfies it.
type historyAPI interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Fetcher pulls channel history and converts it into the pipeline's
// message representation.
type Fetcher struct {
	api historyAPI
}

// NewFetcher creates a Fetcher backed by the given session.
func NewFetcher(api historyAPI) *Fetcher {
	return &Fetcher{api: api}
}

// FetchWindow returns the channel's messages newer than the window start,
// oldest first. It paginates backwards from the newest message and
// stops at the window boundary or the limit, whichever comes first. A
// limit <= 0 applies [DefaultFetchLimit].
func (f *Fetcher) FetchWindow(ctx context.Context, channelID string, window Window, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	thread := f.threadInfo(channelID)

	var out []types.Message
	beforeID := ""
page:
	for len(out) < limit {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("discord: fetch channel %s: %w", channelID, err)
		}

		size := fetchPageSize
		if remaining := limit - len(out); remaining < size {
			size = remaining
		}

		page, err := f.api.ChannelMessages(channelID, size, beforeID, "", "")
		if err != nil {
			return nil, fmt.Errorf("discord: fetch channel %s: %w", channelID, err)
		}
		if len(page) == 0 {
			break
		}

		// Pages arrive newest first.
		for _, m := range page {
			if !window.Start.IsZero() && m.Timestamp.Before(window.Start) {
				break page
			}
			if !window.End.IsZero() && m.Timestamp.After(window.End) {
				continue
			}
			out = append(out, convertMessage(m, thread))
		}
		beforeID = page[len(page)-1].ID
	}

	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// threadInfo resolves thread metadata when channelID names a thread.
// Lookup failures are tolerated; summaries simply lose the thread tag.
func (f *Fetcher) threadInfo(channelID string) *types.Thread {
	ch, err := f.api.Channel(channelID)
	if err != nil || ch == nil || !ch.IsThread() {
		return nil
	}
	return &types.Thread{
		ID:   ch.ID,
		Name: ch.Name,
	}
}

// convertMessage maps a Discord message onto the pipeline's representation.
func convertMessage(m *discordgo.Message, thread *types.Thread) types.Message {
	msg := types.Message{
		ID:        m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC(),
		Thread:    thread,
	}

	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.Bot = m.Author.Bot
	}
	// Prefer the guild nickname when the member payload carries one.
	if m.Member != nil && m.Member.Nick != "" {
		msg.AuthorName = m.Member.Nick
	}

	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, types.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}

	msg.CodeBlocks = extractCodeBlocks(m.Content)
	return msg
}

// extractCodeBlocks pulls fenced code blocks out of a message body.
func extractCodeBlocks(content string) []types.CodeBlock {
	matches := codeFence.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]types.CodeBlock, 0, len(matches))
	for _, m := range matches {
		code := strings.TrimRight(m[2], "\n")
		if strings.TrimSpace(code) == "" {
			continue
		}
		blocks = append(blocks, types.CodeBlock{
			Language: m[1],
			Code:     code,
		})
	}
	if len(blocks) == 0 {
		return nil
	}
	return blocks
}
