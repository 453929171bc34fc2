// Package discord provides the Discord bot layer for Chatscribe. It owns
// the discordgo.Session lifecycle, routes slash command interactions to
// registered handlers, fetches channel history for summarization, and
// memoizes per-user permission checks.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/lumisage/chatscribe/internal/config"
)

// Bot owns the Discord gateway connection and routes interactions
// to registered command handlers.
type Bot struct {
	mu       sync.RWMutex
	session  *discordgo.Session
	router   *CommandRouter
	perms    *PermissionChecker
	guildIDs []string

	// registered maps guild ID (or "" for global) to the commands created
	// there, so Close can unregister them.
	registered map[string][]*discordgo.ApplicationCommand
	closeOnce  sync.Once
}

// New creates a Bot, connects to Discord, and registers the interaction
// handler. The permission checker is shared with command handlers via
// [Bot.Permissions].
func New(_ context.Context, cfg config.DiscordConfig, perms *PermissionChecker) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	b := &Bot{
		session:    session,
		router:     NewCommandRouter(),
		perms:      perms,
		guildIDs:   cfg.GuildIDs,
		registered: make(map[string][]*discordgo.ApplicationCommand),
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})

	return b, nil
}

// Session returns the underlying discordgo session. Used by subsystems
// that need direct Discord API access (e.g., the scheduler posting
// summaries without an interaction).
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Permissions returns the permission checker.
func (b *Bot) Permissions() *PermissionChecker {
	return b.perms
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled. When no guild IDs are configured the commands are
// registered globally.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		scopes := b.guildIDs
		if len(scopes) == 0 {
			scopes = []string{""} // global registration
		}
		for _, guildID := range scopes {
			registered, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, cmds)
			if err != nil {
				return fmt.Errorf("discord: register commands for guild %q: %w", guildID, err)
			}
			b.mu.Lock()
			b.registered[guildID] = registered
			b.mu.Unlock()
			slog.Info("discord commands registered", "guild", guildID, "count", len(registered))
		}
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil {
			appID := b.session.State.User.ID
			for guildID, cmds := range b.registered {
				for _, cmd := range cmds {
					if err := b.session.ApplicationCommandDelete(appID, guildID, cmd.ID); err != nil {
						slog.Warn("discord: failed to delete command", "name", cmd.Name, "guild", guildID, "err", err)
					}
				}
			}
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}
