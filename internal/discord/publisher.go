package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/lumisage/chatscribe/pkg/types"
)

// messengerAPI is the slice of the Discord API needed to post messages.
// *discordgo.Session satisfies it.
type messengerAPI interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Publisher posts finished summaries to channels outside of an interaction,
// which is how scheduled summaries reach Discord.
type Publisher struct {
	api messengerAPI
}

// NewPublisher creates a Publisher backed by the given session.
func NewPublisher(api messengerAPI) *Publisher {
	return &Publisher{api: api}
}

// Publish renders res as an embed and sends it to the channel.
func (p *Publisher) Publish(channelID string, res *types.SummaryResult) error {
	if _, err := p.api.ChannelMessageSendEmbed(channelID, SummaryEmbed(res)); err != nil {
		return fmt.Errorf("discord: publish summary to channel %s: %w", channelID, err)
	}
	return nil
}
