package discord

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/lumisage/chatscribe/internal/cache"
)

// summarizePerms are the channel permissions a user needs before the bot
// will summarize that channel on their behalf.
const summarizePerms = discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory

// permissionAPI is the slice of the Discord API the checker needs. A
// *discordgo.Session satisfies it.
type permissionAPI interface {
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// PermissionChecker decides whether a user may run summarization commands.
// Decisions are memoized in a [cache.PermissionCache] so repeated commands
// in the same channel do not hit the Discord API every time.
type PermissionChecker struct {
	cache      *cache.PermissionCache
	adminRoles []string
}

// NewPermissionChecker creates a PermissionChecker. The cache may be nil,
// which disables memoization. adminRoles lists role IDs allowed to run
// administrative subcommands; an empty list allows everyone (useful for
// development).
func NewPermissionChecker(permCache *cache.PermissionCache, adminRoles []string) *PermissionChecker {
	return &PermissionChecker{cache: permCache, adminRoles: adminRoles}
}

// permKey builds the memoization key. The segments line up with the
// wildcard patterns used by the invalidation helpers.
func permKey(userID, guildID, channelID, action string) string {
	return fmt.Sprintf("%s:%s:%s:%s", userID, guildID, channelID, action)
}

// CanSummarize checks whether the interaction author may summarize the given
// channel. The result is memoized per user, guild, and channel.
func (p *PermissionChecker) CanSummarize(api permissionAPI, i *discordgo.InteractionCreate, channelID string) (bool, error) {
	if i.Member == nil || i.Member.User == nil {
		return false, nil
	}
	userID := i.Member.User.ID
	key := permKey(userID, i.GuildID, channelID, "summarize")

	if p.cache != nil {
		if allowed, ok := p.cache.Get(key); ok {
			return allowed, nil
		}
	}

	perms, err := api.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false, fmt.Errorf("discord: resolve permissions for user %s in channel %s: %w", userID, channelID, err)
	}
	allowed := perms&summarizePerms == summarizePerms

	if p.cache != nil {
		p.cache.Set(key, allowed)
	}
	return allowed, nil
}

// IsAdmin checks whether the interaction author holds one of the configured
// admin roles. An empty role list treats all users as admins. Returns false
// for interactions without a guild member (e.g., DMs).
func (p *PermissionChecker) IsAdmin(i *discordgo.InteractionCreate) bool {
	if len(p.adminRoles) == 0 {
		return true
	}
	if i.Member == nil {
		return false
	}
	for _, role := range i.Member.Roles {
		if slices.Contains(p.adminRoles, role) {
			return true
		}
	}
	return false
}

// InvalidateUser drops every memoized decision for a user, across all
// guilds and channels. Call this when a user's roles change.
func (p *PermissionChecker) InvalidateUser(userID string) {
	if p.cache == nil {
		return
	}
	n := p.cache.InvalidatePattern(userID + ":*")
	slog.Debug("permission cache invalidated", "user", userID, "entries", n)
}

// InvalidateChannel drops every memoized decision for a channel. Call this
// when channel permission overwrites change.
func (p *PermissionChecker) InvalidateChannel(channelID string) {
	if p.cache == nil {
		return
	}
	n := p.cache.InvalidatePattern("*:*:" + channelID + ":*")
	slog.Debug("permission cache invalidated", "channel", channelID, "entries", n)
}
