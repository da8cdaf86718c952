// Package ticket implements the rekber ticket lifecycle: creation from a
// submitted form, buyer/seller assignment, and the terminal complete/cancel
// transitions with their archival side effects.
package ticket

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a ticket. Transitions only move
// forward: pending is the initial state, completed and cancelled are
// terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Role names a side of the transaction a staff member assigns a user to.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

var (
	// ErrInvalidAmount means the nominal field did not parse to a
	// positive integer of at least 1000.
	ErrInvalidAmount = errors.New("ticket: invalid nominal amount")
	// ErrNotFound means the ticket id is unknown or already removed.
	ErrNotFound = errors.New("ticket: not found")
	// ErrUnauthorized means the acting user lacks the required
	// role or participant membership for the operation.
	ErrUnauthorized = errors.New("ticket: unauthorized")
	// ErrInvalidParticipant means the assignment target is a bot account.
	ErrInvalidParticipant = errors.New("ticket: participant is a bot")
)

// Ticket is one escrow transaction. Fee and Total are fixed at creation;
// the channel is owned exclusively by the ticket for its lifetime.
type Ticket struct {
	ID            uint64    `json:"id"`
	Item          string    `json:"item"`
	PaymentMethod string    `json:"payment_method"`
	BuyerLabel    string    `json:"buyer_label"`
	SellerLabel   string    `json:"seller_label"`
	Nominal       int64     `json:"nominal"`
	Fee           int64     `json:"fee"`
	Total         int64     `json:"total"`
	Status        Status    `json:"status"`
	ChannelID     string    `json:"channel_id"`
	MessageID     string    `json:"message_id"`
	CreatorID     string    `json:"creator_id"`
	BuyerID       string    `json:"buyer_id,omitempty"`
	SellerID      string    `json:"seller_id,omitempty"`
	Participants  []string  `json:"participants"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsParticipant reports whether userID may cancel this ticket.
func (t *Ticket) IsParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// addParticipant inserts userID into the participant set. Adding an
// existing member is a no-op.
func (t *Ticket) addParticipant(userID string) {
	if !t.IsParticipant(userID) {
		t.Participants = append(t.Participants, userID)
	}
}

// ParseAmount strips every non-digit rune from raw ("Rp 30.000" becomes
// 30000) and validates the result against the 1000 minimum.
func ParseAmount(raw string) (int64, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || len(digits) > 15 {
		return 0, ErrInvalidAmount
	}
	var n int64
	for _, r := range digits {
		n = n*10 + int64(r-'0')
	}
	if n < 1_000 {
		return 0, ErrInvalidAmount
	}
	return n, nil
}
