// Package discord adapts the Discord gateway to the bot's services: it
// dispatches inbound events to the ticket lifecycle and slowmode gate,
// and implements the outbound channel/message surface they drive.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/rekberhub/rekberd/internal/slowmode"
	"github.com/rekberhub/rekberd/internal/ticket"
)

// Config holds the Discord adapter settings.
type Config struct {
	Token            string
	GuildID          string
	TicketCategoryID string   // parent category for ticket channels
	PanelChannelID   string   // where the open-ticket panel lives
	ArchiveChannelID string   // where archive summaries are posted
	PrivilegedRoleID string   // shorter slowmode cooldown
	SlowmodeChannels []string // channels the gate watches
}

// Bot is the Discord-facing half of rekberd.
type Bot struct {
	session  *discordgo.Session
	cfg      Config
	logger   *slog.Logger
	tickets  *ticket.Service
	gate     *slowmode.Gate
	watched  map[string]bool // slowmode channel set
	cancel   context.CancelFunc
}

// New creates the bot and its gateway session. Attach must be called
// before Start.
func New(cfg Config, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: init session: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	watched := make(map[string]bool, len(cfg.SlowmodeChannels))
	for _, id := range cfg.SlowmodeChannels {
		watched[id] = true
	}

	return &Bot{
		session: session,
		cfg:     cfg,
		logger:  logger,
		watched: watched,
	}, nil
}

// Attach wires the services the handlers dispatch to. Separate from New
// because the lifecycle itself needs the bot as its gateway.
func (b *Bot) Attach(tickets *ticket.Service, gate *slowmode.Gate) {
	b.tickets = tickets
	b.gate = gate
}

// Start opens the gateway connection and handles events until the
// context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("discord gateway ready", "bot", r.User.Username)
	})
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	b.logger.Info("discord connector started", "guild", b.cfg.GuildID)

	<-ctx.Done()
	if err := b.session.Close(); err != nil {
		b.logger.Warn("gateway close failed", "error", err)
	}
	b.logger.Info("discord connector stopped")
	return ctx.Err()
}

// Stop tears the gateway connection down.
func (b *Bot) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}

// PostPanel publishes the open-ticket panel into the configured panel
// channel. Run via the -post-panel flag after changing the panel copy.
func (b *Bot) PostPanel(_ context.Context) error {
	if b.cfg.PanelChannelID == "" {
		return fmt.Errorf("discord: panel channel not configured")
	}
	if _, err := b.session.ChannelMessageSendComplex(b.cfg.PanelChannelID, panelMessage()); err != nil {
		return fmt.Errorf("discord: post panel: %w", err)
	}
	b.logger.Info("ticket panel posted", "channel", b.cfg.PanelChannelID)
	return nil
}

// member resolves a guild member, preferring the state cache.
func (b *Bot) member(userID string) *discordgo.Member {
	if m, err := b.session.State.Member(b.cfg.GuildID, userID); err == nil {
		return m
	}
	m, err := b.session.GuildMember(b.cfg.GuildID, userID)
	if err != nil {
		b.logger.Warn("member lookup failed", "user", userID, "error", err)
		return nil
	}
	return m
}
