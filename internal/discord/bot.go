// Package discord is the chat transport of the order bot. It owns the
// discordgo.Session lifecycle, routes chat messages and interactions to
// registered handlers, and applies the access rules.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// intents are the gateway events the bot subscribes to. Message content is
// privileged and must be enabled in the developer portal.
const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Config holds Discord bot configuration.
type Config struct {
	// Token is the bot token without the "Bot " prefix.
	Token string

	// GuildID scopes slash commands to one server. Empty registers them
	// globally, which can take up to an hour to propagate.
	GuildID string

	Access Access
	Logger *slog.Logger
}

// Bot is a connected Discord gateway session plus the router and access
// rules that act on its events.
type Bot struct {
	session *discordgo.Session
	router  *CommandRouter
	perms   *PermissionChecker
	guildID string
	log     *slog.Logger

	online atomic.Bool

	mu         sync.Mutex
	registered []*discordgo.ApplicationCommand

	closeOnce sync.Once
	closeErr  error
}

// New opens the gateway session. Commands added to [Bot.Router] afterwards
// are published by [Bot.Run].
func New(_ context.Context, cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: session: %w", err)
	}
	s.Identify.Intents = intents

	b := &Bot{
		session: s,
		router:  NewCommandRouter(log),
		perms:   NewPermissionChecker(cfg.Access),
		guildID: cfg.GuildID,
		log:     log,
	}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onResumed)
	s.AddHandler(b.onDisconnect)
	s.AddHandler(b.onInteraction)
	s.AddHandler(b.onMessage)

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("discord: connect: %w", err)
	}
	return b, nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.online.Store(true)
	b.log.Info("discord gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
}

func (b *Bot) onResumed(*discordgo.Session, *discordgo.Resumed) { b.online.Store(true) }

func (b *Bot) onDisconnect(*discordgo.Session, *discordgo.Disconnect) {
	b.online.Store(false)
	b.log.Warn("discord gateway disconnected")
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.router.Handle(s, i)
}

// onMessage forwards chat messages except the bot's own.
func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	b.router.HandleMessage(s, m)
}

// Messenger returns the session as a [Messenger].
func (b *Bot) Messenger() Messenger { return b.session }

// Router returns the router that handlers are registered on.
func (b *Bot) Router() *CommandRouter { return b.router }

// Permissions returns the live access rules.
func (b *Bot) Permissions() *PermissionChecker { return b.perms }

// Connected reports whether the gateway session is up.
func (b *Bot) Connected() bool { return b.online.Load() }

// Run publishes the router's slash commands and then blocks until ctx is
// done.
func (b *Bot) Run(ctx context.Context) error {
	if cmds := b.router.ApplicationCommands(); len(cmds) > 0 {
		got, err := b.session.ApplicationCommandBulkOverwrite(b.appID(), b.guildID, cmds, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord: publish commands: %w", err)
		}
		b.mu.Lock()
		b.registered = got
		b.mu.Unlock()
		b.log.Info("slash commands published", "count", len(got), "guild_id", b.guildID)
	}
	<-ctx.Done()
	return ctx.Err()
}

// Close withdraws the published commands and disconnects. Only the first
// call has an effect.
func (b *Bot) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		cmds := b.registered
		b.registered = nil
		b.mu.Unlock()

		appID := b.appID()
		for _, c := range cmds {
			if err := b.session.ApplicationCommandDelete(appID, b.guildID, c.ID); err != nil {
				b.log.Warn("could not withdraw slash command", "command", c.Name, "err", err)
			}
		}
		if err := b.session.Close(); err != nil {
			b.closeErr = fmt.Errorf("discord: disconnect: %w", err)
		}
		b.online.Store(false)
		b.log.Info("discord bot closed")
	})
	return b.closeErr
}

func (b *Bot) appID() string {
	if b.session.State != nil && b.session.State.User != nil {
		return b.session.State.User.ID
	}
	return ""
}
