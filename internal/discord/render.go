package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/rekberhub/rekberd/internal/archive"
	"github.com/rekberhub/rekberd/internal/ticket"
)

// Component and modal custom ids. Per-ticket controls carry the ticket
// id after a colon, e.g. "rekber_done:17".
const (
	idOpenButton = "rekber_open"
	idOpenModal  = "rekber_form"

	idFieldBuyer   = "rekber_field_buyer"
	idFieldSeller  = "rekber_field_seller"
	idFieldItem    = "rekber_field_item"
	idFieldNominal = "rekber_field_nominal"
	idFieldPayment = "rekber_field_payment"

	actionPickBuyer  = "rekber_buyer"
	actionPickSeller = "rekber_seller"
	actionDone       = "rekber_done"
	actionCancel     = "rekber_cancel"
)

const (
	colorPending   = 0xF1C40F
	colorCompleted = 0x2ECC71
	colorCancelled = 0xE74C3C
)

func ticketCustomID(action string, id uint64) string {
	return fmt.Sprintf("%s:%d", action, id)
}

// parseCustomID splits "rekber_done:17" into its action and ticket id.
// Ids without a ticket suffix (the panel button) return id 0.
func parseCustomID(customID string) (action string, id uint64) {
	action, suffix, found := strings.Cut(customID, ":")
	if !found {
		return customID, 0
	}
	id, _ = strconv.ParseUint(suffix, 10, 64)
	return action, id
}

// formatRupiah renders 150000 as "Rp150.000".
func formatRupiah(n int64) string {
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "Rp" + b.String()
}

func statusLabel(s ticket.Status) string {
	switch s {
	case ticket.StatusCompleted:
		return "✅ Selesai"
	case ticket.StatusCancelled:
		return "❌ Dibatalkan"
	default:
		return "⏳ Menunggu"
	}
}

func statusColor(s ticket.Status) int {
	switch s {
	case ticket.StatusCompleted:
		return colorCompleted
	case ticket.StatusCancelled:
		return colorCancelled
	default:
		return colorPending
	}
}

// partyLine shows the free-text label from the form plus the assigned
// member, once staff picked one.
func partyLine(label, userID string) string {
	if userID == "" {
		return label
	}
	return fmt.Sprintf("%s (<@%s>)", label, userID)
}

func summaryEmbed(t *ticket.Ticket) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Tiket Rekber #%d", t.ID),
		Color: statusColor(t.Status),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Barang", Value: t.Item, Inline: true},
			{Name: "Pembayaran", Value: t.PaymentMethod, Inline: true},
			{Name: "Status", Value: statusLabel(t.Status), Inline: true},
			{Name: "Pembeli", Value: partyLine(t.BuyerLabel, t.BuyerID), Inline: true},
			{Name: "Penjual", Value: partyLine(t.SellerLabel, t.SellerID), Inline: true},
			{Name: "Dibuka oleh", Value: fmt.Sprintf("<@%s>", t.CreatorID), Inline: true},
			{Name: "Nominal", Value: formatRupiah(t.Nominal), Inline: true},
			{Name: "Biaya Jasa", Value: formatRupiah(t.Fee), Inline: true},
			{Name: "Total", Value: formatRupiah(t.Total), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Admin menekan Selesai setelah barang dan dana berpindah."},
		Timestamp: t.CreatedAt.Format(time.RFC3339),
	}
}

// summaryComponents builds the buyer/seller pickers and the terminal
// buttons. Inactive (terminal) summaries keep the controls visible but
// disabled.
func summaryComponents(id uint64, active bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.UserSelectMenu,
				CustomID:    ticketCustomID(actionPickBuyer, id),
				Placeholder: "Pilih pembeli",
				Disabled:    !active,
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.UserSelectMenu,
				CustomID:    ticketCustomID(actionPickSeller, id),
				Placeholder: "Pilih penjual",
				Disabled:    !active,
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Selesai",
				Style:    discordgo.SuccessButton,
				CustomID: ticketCustomID(actionDone, id),
				Disabled: !active,
			},
			discordgo.Button{
				Label:    "Batalkan",
				Style:    discordgo.DangerButton,
				CustomID: ticketCustomID(actionCancel, id),
				Disabled: !active,
			},
		}},
	}
}

// panelMessage is the public open-ticket panel.
func panelMessage() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title: "Jasa Rekber",
			Description: "Transaksi aman lewat middleman resmi server.\n" +
				"Tekan tombol di bawah, isi formulir, dan tiket dengan channel khusus akan dibuat.",
			Color: colorPending,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Buka Tiket Rekber",
					Style:    discordgo.PrimaryButton,
					CustomID: idOpenButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "🎫"},
				},
			}},
		},
	}
}

// openModal is the form shown after the panel button.
func openModal() *discordgo.InteractionResponse {
	row := func(field, label, placeholder string) discordgo.ActionsRow {
		return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    field,
				Label:       label,
				Style:       discordgo.TextInputShort,
				Placeholder: placeholder,
				Required:    true,
			},
		}}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: idOpenModal,
			Title:    "Formulir Rekber",
			Components: []discordgo.MessageComponent{
				row(idFieldBuyer, "Pembeli", "nama/tag pembeli"),
				row(idFieldSeller, "Penjual", "nama/tag penjual"),
				row(idFieldItem, "Barang", "contoh: Akun ML Sultan"),
				row(idFieldNominal, "Nominal", "contoh: 150000"),
				row(idFieldPayment, "Metode Pembayaran", "contoh: DANA / GoPay"),
			},
		},
	}
}

// parseForm pulls the modal fields into an OpenForm.
func parseForm(creatorID string, data discordgo.ModalSubmitInteractionData) ticket.OpenForm {
	form := ticket.OpenForm{CreatorID: creatorID}
	for _, comp := range data.Components {
		var inner []discordgo.MessageComponent
		switch row := comp.(type) {
		case *discordgo.ActionsRow:
			inner = row.Components
		case discordgo.ActionsRow:
			inner = row.Components
		default:
			continue
		}
		for _, c := range inner {
			var input *discordgo.TextInput
			switch in := c.(type) {
			case *discordgo.TextInput:
				input = in
			case discordgo.TextInput:
				input = &in
			default:
				continue
			}
			value := strings.TrimSpace(input.Value)
			switch input.CustomID {
			case idFieldBuyer:
				form.BuyerLabel = value
			case idFieldSeller:
				form.SellerLabel = value
			case idFieldItem:
				form.Item = value
			case idFieldNominal:
				form.NominalRaw = value
			case idFieldPayment:
				form.PaymentMethod = value
			}
		}
	}
	return form
}

func archiveEmbed(rec archive.Record) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Arsip Rekber #%d", rec.TicketID),
		Color: statusColor(ticket.Status(rec.Disposition)),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Barang", Value: rec.Item, Inline: true},
			{Name: "Pembayaran", Value: rec.PaymentMethod, Inline: true},
			{Name: "Hasil", Value: statusLabel(ticket.Status(rec.Disposition)), Inline: true},
			{Name: "Pembeli", Value: partyLine(rec.BuyerLabel, rec.BuyerID), Inline: true},
			{Name: "Penjual", Value: partyLine(rec.SellerLabel, rec.SellerID), Inline: true},
			{Name: "Dibuka oleh", Value: fmt.Sprintf("<@%s>", rec.CreatorID), Inline: true},
			{Name: "Nominal", Value: formatRupiah(rec.Nominal), Inline: true},
			{Name: "Biaya Jasa", Value: formatRupiah(rec.Fee), Inline: true},
			{Name: "Total", Value: formatRupiah(rec.Total), Inline: true},
			{Name: "Dibuka", Value: rec.CreatedAt.Format("2006-01-02 15:04"), Inline: true},
			{Name: "Ditutup", Value: rec.ClosedAt.Format("2006-01-02 15:04"), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "ID arsip: " + rec.ID},
	}
}
