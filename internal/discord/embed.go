package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lumisage/chatscribe/pkg/types"
)

// Discord embed limits.
const (
	embedDescLimit  = 4096
	embedFieldLimit = 1024
)

const embedColor = 0x5865F2 // Discord blurple

// priorityMarkers prefix action items so urgency survives the flattening
// into a single embed field.
var priorityMarkers = map[types.ActionPriority]string{
	types.PriorityHigh:   "🔴",
	types.PriorityMedium: "🟡",
	types.PriorityLow:    "🟢",
}

// SummaryEmbed renders a summary result as a Discord embed. Sections that
// exceed Discord's field limits are truncated with an ellipsis rather than
// dropped.
func SummaryEmbed(res *types.SummaryResult) *discordgo.MessageEmbed {
	title := "Conversation Summary"
	if res.Context != nil && res.Context.ChannelName != "" {
		title = fmt.Sprintf("Summary of #%s", res.Context.ChannelName)
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: truncate(res.SummaryText, embedDescLimit),
		Color:       embedColor,
		Timestamp:   res.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d messages · %s – %s · %s",
				res.MessageCount,
				res.StartTime.Format("Jan 2 15:04"),
				res.EndTime.Format("Jan 2 15:04"),
				res.Metadata.Model,
			),
		},
	}

	if len(res.KeyPoints) > 0 {
		var b strings.Builder
		for _, kp := range res.KeyPoints {
			fmt.Fprintf(&b, "• %s\n", kp)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Key Points",
			Value: truncate(b.String(), embedFieldLimit),
		})
	}

	if len(res.ActionItems) > 0 {
		var b strings.Builder
		for _, item := range res.ActionItems {
			marker := priorityMarkers[item.Priority]
			if marker == "" {
				marker = priorityMarkers[types.PriorityMedium]
			}
			line := item.Description
			if item.Assignee != "" {
				line += " — " + item.Assignee
			}
			if item.Completed {
				line = "~~" + line + "~~"
			}
			fmt.Fprintf(&b, "%s %s\n", marker, line)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Action Items",
			Value: truncate(b.String(), embedFieldLimit),
		})
	}

	if len(res.TechnicalTerms) > 0 {
		var b strings.Builder
		for _, term := range res.TechnicalTerms {
			if term.Definition != "" {
				fmt.Fprintf(&b, "**%s** — %s\n", term.Term, term.Definition)
			} else {
				fmt.Fprintf(&b, "**%s**\n", term.Term)
			}
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Technical Terms",
			Value: truncate(b.String(), embedFieldLimit),
		})
	}

	if len(res.Participants) > 0 {
		var parts []string
		for _, p := range res.Participants {
			parts = append(parts, fmt.Sprintf("%s (%d)", p.DisplayName, p.MessageCount))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Participants",
			Value: truncate(strings.Join(parts, ", "), embedFieldLimit),
		})
	}

	if res.Metadata.Incomplete {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Note",
			Value: "The summary hit the output limit and may be incomplete.",
		})
	}

	return embed
}

// UsageEmbed renders LLM usage statistics as a Discord embed.
func UsageEmbed(stats types.UsageStats) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Summarization Usage",
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Requests", Value: fmt.Sprintf("%d", stats.TotalRequests), Inline: true},
			{Name: "Input Tokens", Value: fmt.Sprintf("%d", stats.TotalInputTokens), Inline: true},
			{Name: "Output Tokens", Value: fmt.Sprintf("%d", stats.TotalOutputTokens), Inline: true},
			{Name: "Total Cost", Value: fmt.Sprintf("$%.4f", stats.TotalCostUSD), Inline: true},
			{Name: "Rate Limit Hits", Value: fmt.Sprintf("%d", stats.RateLimitHits), Inline: true},
			{Name: "Errors", Value: fmt.Sprintf("%d", stats.Errors), Inline: true},
		},
	}
}

// truncate shortens s to at most limit runes, appending an ellipsis when
// anything was cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
