package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/rekberhub/rekberd/internal/archive"
	"github.com/rekberhub/rekberd/internal/ticket"
)

// memberAccess is what a ticket participant may do in the ticket channel.
const memberAccess = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory

// CreateTicketChannel implements ticket.Gateway. The channel denies
// @everyone and allows only the listed members and the bot itself.
func (b *Bot) CreateTicketChannel(_ context.Context, name string, memberIDs []string) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{
			// The @everyone role shares the guild's id.
			ID:   b.cfg.GuildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    b.session.State.User.ID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberAccess | discordgo.PermissionManageMessages,
		},
	}
	for _, id := range memberIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    id,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberAccess,
		})
	}

	ch, err := b.session.GuildChannelCreateComplex(b.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             b.cfg.TicketCategoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return "", fmt.Errorf("discord: create channel %q: %w", name, err)
	}
	return ch.ID, nil
}

// DeleteChannel implements ticket.Gateway and archive.Notifier.
func (b *Bot) DeleteChannel(_ context.Context, channelID string) error {
	if _, err := b.session.ChannelDelete(channelID); err != nil {
		return fmt.Errorf("discord: delete channel %s: %w", channelID, err)
	}
	return nil
}

// GrantChannelAccess implements ticket.Gateway.
func (b *Bot) GrantChannelAccess(_ context.Context, channelID, userID string) error {
	err := b.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, memberAccess, 0)
	if err != nil {
		return fmt.Errorf("discord: grant access %s to %s: %w", channelID, userID, err)
	}
	return nil
}

// PostSummary implements ticket.Gateway.
func (b *Bot) PostSummary(_ context.Context, t *ticket.Ticket) (string, error) {
	msg, err := b.session.ChannelMessageSendComplex(t.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{summaryEmbed(t)},
		Components: summaryComponents(t.ID, t.Status == ticket.StatusPending),
	})
	if err != nil {
		return "", fmt.Errorf("discord: post summary: %w", err)
	}
	return msg.ID, nil
}

// UpdateSummary implements ticket.Gateway. Terminal tickets get their
// controls disabled so stale presses cannot land.
func (b *Bot) UpdateSummary(_ context.Context, t *ticket.Ticket) error {
	embeds := []*discordgo.MessageEmbed{summaryEmbed(t)}
	components := summaryComponents(t.ID, t.Status == ticket.StatusPending)
	_, err := b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    t.ChannelID,
		ID:         t.MessageID,
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		return fmt.Errorf("discord: edit summary: %w", err)
	}
	return nil
}

// IsAdmin implements ticket.Gateway: guild owner, or any role carrying
// the administrator permission.
func (b *Bot) IsAdmin(userID string) bool {
	if g, err := b.session.State.Guild(b.cfg.GuildID); err == nil && g.OwnerID == userID {
		return true
	}
	m := b.member(userID)
	if m == nil {
		return false
	}
	for _, roleID := range m.Roles {
		role, err := b.session.State.Role(b.cfg.GuildID, roleID)
		if err != nil {
			continue
		}
		if role.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	return false
}

// IsBot implements ticket.Gateway.
func (b *Bot) IsBot(userID string) bool {
	m := b.member(userID)
	return m != nil && m.User != nil && m.User.Bot
}

// PostArchive implements archive.Notifier.
func (b *Bot) PostArchive(_ context.Context, rec archive.Record) error {
	_, err := b.session.ChannelMessageSendEmbed(b.cfg.ArchiveChannelID, archiveEmbed(rec))
	if err != nil {
		return fmt.Errorf("discord: post archive: %w", err)
	}
	return nil
}

// Post implements guard.Poster.
func (b *Bot) Post(_ context.Context, channelID, content string) (string, error) {
	msg, err := b.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", fmt.Errorf("discord: send message: %w", err)
	}
	return msg.ID, nil
}

// Delete implements guard.Poster.
func (b *Bot) Delete(_ context.Context, channelID, messageID string) error {
	if err := b.session.ChannelMessageDelete(channelID, messageID); err != nil {
		return fmt.Errorf("discord: delete message: %w", err)
	}
	return nil
}
