package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/lumisage/chatscribe/pkg/types"
)

// RespondEphemeral sends an ephemeral text response to an interaction.
func RespondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("discord: failed to send ephemeral response", "err", err)
	}
}

// DeferReply sends a deferred response so a long-running command gets the
// full 15 minutes to follow up. Summaries are posted publicly, so the
// deferral is not ephemeral.
func DeferReply(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		slog.Warn("discord: failed to defer reply", "err", err)
	}
}

// FollowUp sends a follow-up message after a deferred response.
func FollowUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
	})
	if err != nil {
		slog.Warn("discord: failed to send follow-up", "err", err)
	}
}

// FollowUpEmbed sends an embed follow-up message after a deferred response.
func FollowUpEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		slog.Warn("discord: failed to send embed follow-up", "err", err)
	}
}

// FollowUpError reports a failed command after a deferred response. Taxonomy
// errors surface their user-facing message; anything else gets a generic
// apology so internals never leak into chat.
func FollowUpError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	FollowUp(s, i, userMessage(err))
}

// RespondError sends an immediate ephemeral error response.
func RespondError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	RespondEphemeral(s, i, userMessage(err))
}

func userMessage(err error) string {
	if serr, ok := types.AsError(err); ok && serr.UserMessage != "" {
		return serr.UserMessage
	}
	return "Something went wrong while processing your request. Please try again."
}
