package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lumisage/chatscribe/internal/cache"
	"github.com/lumisage/chatscribe/internal/config"
	"github.com/lumisage/chatscribe/internal/store"
	"github.com/lumisage/chatscribe/pkg/types"
)

// summarizeTimeout bounds one slash-command summarization end to end,
// comfortably inside Discord's 15 minute follow-up window.
const summarizeTimeout = 5 * time.Minute

// maxLookbackHours caps the /summarize hours option at one week.
const maxLookbackHours = 168

// Summarizer is the slice of the summarization engine the command layer
// uses.
type Summarizer interface {
	Summarize(ctx context.Context, req types.SummarizeRequest) (*types.SummaryResult, error)
	Usage() types.UsageStats
}

// Commands wires the summarization engine into slash commands.
type Commands struct {
	engine    Summarizer
	fetcher   *Fetcher
	perms     *PermissionChecker
	summaries *cache.SummaryCache // nil disables cache invalidation
	history   store.Store         // nil disables the history subcommand
	defaults  config.SummariesConfig
	log       *slog.Logger
}

// NewCommands creates the command set. summaries and history may be nil.
func NewCommands(engine Summarizer, fetcher *Fetcher, perms *PermissionChecker, summaries *cache.SummaryCache, history store.Store, defaults config.SummariesConfig, log *slog.Logger) *Commands {
	if log == nil {
		log = slog.Default()
	}
	return &Commands{
		engine:    engine,
		fetcher:   fetcher,
		perms:     perms,
		summaries: summaries,
		history:   history,
		defaults:  defaults,
		log:       log,
	}
}

// Register adds the command definitions and handlers to the router.
func (c *Commands) Register(router *CommandRouter) {
	router.RegisterCommand("summarize", summarizeCommand(), c.handleSummarize)
	router.RegisterCommand("summary/usage", summaryCommand(), c.handleUsage)
	router.RegisterHandler("summary/history", c.handleHistory)
	router.RegisterHandler("summary/invalidate", c.handleInvalidate)
}

func summarizeCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "summarize",
		Description: "Summarize recent conversation in a channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "hours",
				Description: "How many hours of history to summarize (default 24)",
				MinValue:    float64Ptr(1),
				MaxValue:    maxLookbackHours,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "length",
				Description: "Summary length",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Brief", Value: string(types.LengthBrief)},
					{Name: "Detailed", Value: string(types.LengthDetailed)},
					{Name: "Comprehensive", Value: string(types.LengthComprehensive)},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "Channel to summarize (default: current channel)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "include_bots",
				Description: "Include bot messages in the summary",
			},
		},
	}
}

func summaryCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "summary",
		Description: "Summary history and administration",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "usage",
				Description: "Show LLM usage statistics (admin)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "history",
				Description: "List recent summaries for this channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "invalidate",
				Description: "Drop cached summaries for this channel (admin)",
			},
		},
	}
}

// summarizeParams are the parsed /summarize options.
type summarizeParams struct {
	channelID   string
	hours       int
	length      types.SummaryLength
	includeBots bool
	botsSet     bool
}

// parseSummarizeOptions extracts command options, applying defaults from
// the interaction and the service configuration.
func parseSummarizeOptions(i *discordgo.InteractionCreate) summarizeParams {
	p := summarizeParams{
		channelID: i.ChannelID,
		hours:     24,
	}
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "hours":
			p.hours = int(opt.IntValue())
		case "length":
			p.length = types.SummaryLength(opt.StringValue())
		case "channel":
			if ch := opt.ChannelValue(nil); ch != nil {
				p.channelID = ch.ID
			}
		case "include_bots":
			p.includeBots = opt.BoolValue()
			p.botsSet = true
		}
	}
	return p
}

// buildOptions merges the parsed command parameters with the configured
// summarization defaults.
func (c *Commands) buildOptions(p summarizeParams) types.SummaryOptions {
	opts := types.DefaultOptions()
	if c.defaults.DefaultLength != "" {
		opts.Length = types.SummaryLength(c.defaults.DefaultLength)
	}
	if c.defaults.MinMessages > 0 {
		opts.MinMessages = c.defaults.MinMessages
	}
	opts.IncludeBots = c.defaults.IncludeBots
	if c.defaults.Temperature != nil {
		opts.Temperature = *c.defaults.Temperature
	}

	if p.length != "" {
		opts.Length = p.length
	}
	if p.botsSet {
		opts.IncludeBots = p.includeBots
	}
	return opts
}

func (c *Commands) handleSummarize(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := parseSummarizeOptions(i)

	allowed, err := c.perms.CanSummarize(s, i, p.channelID)
	if err != nil {
		c.log.Warn("permission check failed", "channel", p.channelID, "err", err)
		RespondEphemeral(s, i, "Could not verify your channel permissions. Please try again.")
		return
	}
	if !allowed {
		RespondEphemeral(s, i, "You need access to that channel before I can summarize it.")
		return
	}

	DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
	defer cancel()

	window := Window{Start: time.Now().Add(-time.Duration(p.hours) * time.Hour)}
	messages, err := c.fetcher.FetchWindow(ctx, p.channelID, window, DefaultFetchLimit)
	if err != nil {
		c.log.Error("history fetch failed", "channel", p.channelID, "err", err)
		FollowUp(s, i, "Could not fetch the channel history. Please try again.")
		return
	}

	req := types.SummarizeRequest{
		Messages:  messages,
		Options:   c.buildOptions(p),
		ChannelID: p.channelID,
		GuildID:   i.GuildID,
		Context:   c.requestContext(s, p.channelID),
	}

	res, err := c.engine.Summarize(ctx, req)
	if err != nil {
		c.log.Warn("summarization failed",
			"channel", p.channelID,
			"messages", len(messages),
			"err", err,
		)
		FollowUpError(s, i, err)
		return
	}

	if c.history != nil {
		if err := c.history.Save(ctx, res); err != nil {
			c.log.Warn("summary persistence failed", "id", res.ID, "err", err)
		}
	}

	FollowUpEmbed(s, i, SummaryEmbed(res))
}

// requestContext enriches the request with channel metadata when the
// channel is resolvable. Failures just omit the context.
func (c *Commands) requestContext(s *discordgo.Session, channelID string) *types.SummarizationContext {
	ch, err := s.State.Channel(channelID)
	if err != nil || ch == nil {
		return nil
	}
	return &types.SummarizationContext{
		ChannelName: ch.Name,
	}
}

func (c *Commands) handleUsage(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !c.perms.IsAdmin(i) {
		RespondEphemeral(s, i, "This command requires an admin role.")
		return
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{UsageEmbed(c.engine.Usage())},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		c.log.Warn("usage response failed", "err", err)
	}
}

func (c *Commands) handleHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if c.history == nil {
		RespondEphemeral(s, i, "Summary history is not enabled on this server.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := c.history.ListByChannel(ctx, i.ChannelID, 5)
	if err != nil {
		c.log.Warn("history lookup failed", "channel", i.ChannelID, "err", err)
		RespondEphemeral(s, i, "Could not load the summary history. Please try again.")
		return
	}
	if len(results) == 0 {
		RespondEphemeral(s, i, "No summaries recorded for this channel yet.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "Recent Summaries",
		Color: embedColor,
	}
	for _, res := range results {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s · %d messages", res.CreatedAt.Format("Jan 2 15:04"), res.MessageCount),
			Value: truncate(res.SummaryText, embedFieldLimit),
		})
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		c.log.Warn("history response failed", "err", err)
	}
}

func (c *Commands) handleInvalidate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !c.perms.IsAdmin(i) {
		RespondEphemeral(s, i, "This command requires an admin role.")
		return
	}

	dropped := 0
	if c.summaries != nil {
		dropped = c.summaries.InvalidateChannel(i.ChannelID)
	}
	c.perms.InvalidateChannel(i.ChannelID)

	c.log.Info("channel caches invalidated", "channel", i.ChannelID, "summaries", dropped)
	RespondEphemeral(s, i, fmt.Sprintf("Dropped %d cached summaries for this channel.", dropped))
}

func float64Ptr(v float64) *float64 { return &v }
