package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/rekberhub/rekberd/internal/guard"
	"github.com/rekberhub/rekberd/internal/slowmode"
	"github.com/rekberhub/rekberd/internal/ticket"
)

// transientTTL is how long slowmode warnings and payment acknowledgements
// stay visible.
const transientTTL = 5 * time.Second

// userMessage maps lifecycle errors to the reply the member sees.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ticket.ErrInvalidAmount):
		return "Nominal tidak valid. Masukkan angka minimal Rp1.000, contoh: 150000."
	case errors.Is(err, ticket.ErrUnauthorized):
		return "Kamu tidak punya izin untuk aksi ini."
	case errors.Is(err, ticket.ErrNotFound):
		return "Tiket tidak ditemukan."
	case errors.Is(err, ticket.ErrInvalidParticipant):
		return "Bot tidak bisa dijadikan pembeli atau penjual."
	default:
		return "Terjadi kesalahan. Coba lagi atau hubungi admin."
	}
}

func interactionUser(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// respondEphemeral replies with a message only the presser sees.
func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("interaction reply failed", "error", err)
	}
}

// ackUpdate acknowledges a component press whose effect shows up in the
// edited summary message, without posting any reply.
func (b *Bot) ackUpdate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		b.logger.Warn("interaction ack failed", "error", err)
	}
}

// onInteractionCreate dispatches panel, summary-control and modal events.
// A panicking handler must not take the gateway reader down with it.
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("interaction handler panicked", "panic", r)
			b.respondEphemeral(s, i, "Terjadi kesalahan. Coba lagi atau hubungi admin.")
		}
	}()

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	case discordgo.InteractionModalSubmit:
		b.handleModalSubmit(s, i)
	}
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	actor := interactionUser(i)
	ctx := context.Background()

	action, id := parseCustomID(data.CustomID)
	switch action {
	case idOpenButton:
		if err := s.InteractionRespond(i.Interaction, openModal()); err != nil {
			b.logger.Warn("modal open failed", "error", err)
		}

	case actionPickBuyer, actionPickSeller:
		if len(data.Values) == 0 {
			b.ackUpdate(s, i)
			return
		}
		role := ticket.RoleBuyer
		if action == actionPickSeller {
			role = ticket.RoleSeller
		}
		if err := b.tickets.AddParticipant(ctx, id, role, data.Values[0], actor); err != nil {
			b.respondEphemeral(s, i, userMessage(err))
			return
		}
		b.ackUpdate(s, i)

	case actionDone:
		if err := b.tickets.Complete(ctx, id, actor); err != nil {
			b.respondEphemeral(s, i, userMessage(err))
			return
		}
		b.respondEphemeral(s, i, "Transaksi ditandai selesai. Channel ini akan dihapus sebentar lagi.")

	case actionCancel:
		if err := b.tickets.Cancel(ctx, id, actor); err != nil {
			b.respondEphemeral(s, i, userMessage(err))
			return
		}
		b.respondEphemeral(s, i, "Tiket dibatalkan. Channel ini akan dihapus sebentar lagi.")
	}
}

func (b *Bot) handleModalSubmit(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	if data.CustomID != idOpenModal {
		return
	}

	form := parseForm(interactionUser(i), data)
	t, err := b.tickets.Open(context.Background(), form)
	if err != nil {
		b.respondEphemeral(s, i, userMessage(err))
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("Tiket #%d dibuat: <#%s>", t.ID, t.ChannelID))
}

// onMessageCreate covers the two message-driven features: payment
// screenshot acknowledgement inside ticket channels, and the per-user
// slowmode on the watched channels.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("message handler panicked", "panic", r)
		}
	}()

	if m.Author == nil || m.Author.Bot {
		return
	}

	ctx := context.Background()

	// Ticket channels are access-restricted already and exempt from
	// slowmode; a posted image there is treated as payment proof.
	if t, ok := b.tickets.Store().ByChannel(m.ChannelID); ok {
		if hasImage(m.Attachments) {
			ack := fmt.Sprintf("✅ Bukti pembayaran diterima untuk tiket #%d. Admin akan memverifikasi.", t.ID)
			if err := guard.Transient(ctx, b, m.ChannelID, ack, transientTTL, b.logger); err != nil {
				b.logger.Warn("payment ack failed", "channel", m.ChannelID, "error", err)
			}
		}
		return
	}

	if !b.watched[m.ChannelID] {
		return
	}

	ok, remaining := b.gate.Check(m.Author.ID, m.ChannelID, b.hasPrivilegedRole(m.Member))
	if ok {
		return
	}

	if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		b.logger.Warn("slowmode delete failed", "channel", m.ChannelID, "message", m.ID, "error", err)
	}
	warn := fmt.Sprintf("<@%s> pelan-pelan! Kamu bisa kirim pesan lagi dalam %s.",
		m.Author.ID, slowmode.FormatRemaining(remaining))
	if err := guard.Transient(ctx, b, m.ChannelID, warn, transientTTL, b.logger); err != nil {
		b.logger.Warn("slowmode warning failed", "channel", m.ChannelID, "error", err)
	}
}

func (b *Bot) hasPrivilegedRole(m *discordgo.Member) bool {
	if m == nil || b.cfg.PrivilegedRoleID == "" {
		return false
	}
	for _, roleID := range m.Roles {
		if roleID == b.cfg.PrivilegedRoleID {
			return true
		}
	}
	return false
}

// hasImage reports whether any attachment looks like a screenshot.
func hasImage(attachments []*discordgo.MessageAttachment) bool {
	for _, a := range attachments {
		if strings.HasPrefix(a.ContentType, "image/") {
			return true
		}
	}
	return false
}
