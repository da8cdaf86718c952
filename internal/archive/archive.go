// Package archive records finished rekber tickets durably and tears
// their channels down after a grace delay.
package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rekberhub/rekberd/internal/ticket"
)

// Record is the durable, human-readable summary of one finished ticket.
type Record struct {
	ID            string    `json:"id"`
	TicketID      uint64    `json:"ticket_id"`
	Item          string    `json:"item"`
	PaymentMethod string    `json:"payment_method"`
	BuyerLabel    string    `json:"buyer_label"`
	SellerLabel   string    `json:"seller_label"`
	BuyerID       string    `json:"buyer_id,omitempty"`
	SellerID      string    `json:"seller_id,omitempty"`
	CreatorID     string    `json:"creator_id"`
	Nominal       int64     `json:"nominal"`
	Fee           int64     `json:"fee"`
	Total         int64     `json:"total"`
	Disposition   string    `json:"disposition"`
	CreatedAt     time.Time `json:"created_at"`
	ClosedAt      time.Time `json:"closed_at"`
}

// Notifier posts archive summaries and deletes ticket channels. The
// Discord adapter implements it.
type Notifier interface {
	PostArchive(ctx context.Context, rec Record) error
	DeleteChannel(ctx context.Context, channelID string) error
}

// Sink consumes terminal tickets: it writes the archive record, posts
// the summary to the archive channel, and schedules deletion of the
// ticket channel after the grace delay. Every failure is logged and
// swallowed; the invoking transition never sees an error.
type Sink struct {
	store    *Store
	notifier Notifier
	delay    time.Duration
	logger   *slog.Logger

	// OnFinalize runs after a ticket's channel teardown (whether or not
	// the deletion succeeded). The daemon points it at the lifecycle's
	// Finalize so the live registry entry is released.
	OnFinalize func(ticketID uint64)

	mu     sync.Mutex
	timers map[uint64]*time.Timer
}

// NewSink creates a sink. store may be nil to skip durable records
// (summaries are still posted).
func NewSink(store *Store, notifier Notifier, delay time.Duration, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		store:    store,
		notifier: notifier,
		delay:    delay,
		logger:   logger,
		timers:   make(map[uint64]*time.Timer),
	}
}

// Archive implements the lifecycle's Archiver. The ticket's fields are
// snapshotted synchronously; only the snapshot crosses into the delayed
// teardown, so nothing touches the ticket after its removal.
func (s *Sink) Archive(t *ticket.Ticket, disposition ticket.Status) {
	rec := Record{
		ID:            uuid.NewString(),
		TicketID:      t.ID,
		Item:          t.Item,
		PaymentMethod: t.PaymentMethod,
		BuyerLabel:    t.BuyerLabel,
		SellerLabel:   t.SellerLabel,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		CreatorID:     t.CreatorID,
		Nominal:       t.Nominal,
		Fee:           t.Fee,
		Total:         t.Total,
		Disposition:   string(disposition),
		CreatedAt:     t.CreatedAt,
		ClosedAt:      time.Now(),
	}

	if s.store != nil {
		if err := s.store.Save(rec); err != nil {
			s.logger.Error("archive record write failed", "ticket", rec.TicketID, "error", err)
		}
	}
	if err := s.notifier.PostArchive(context.Background(), rec); err != nil {
		s.logger.Error("archive summary post failed", "ticket", rec.TicketID, "error", err)
	}

	s.scheduleTeardown(rec.TicketID, t.ChannelID)
}

// scheduleTeardown arms the one-shot channel deletion for the ticket.
// Re-arming an already armed ticket replaces the pending timer.
func (s *Sink) scheduleTeardown(ticketID uint64, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[ticketID]; ok {
		old.Stop()
	}
	s.timers[ticketID] = time.AfterFunc(s.delay, func() {
		s.teardown(ticketID, channelID)
	})
}

func (s *Sink) teardown(ticketID uint64, channelID string) {
	s.mu.Lock()
	delete(s.timers, ticketID)
	s.mu.Unlock()

	if err := s.notifier.DeleteChannel(context.Background(), channelID); err != nil {
		// The channel may already be gone; nothing to escalate.
		s.logger.Warn("ticket channel deletion failed", "ticket", ticketID, "channel", channelID, "error", err)
	}
	if s.OnFinalize != nil {
		s.OnFinalize(ticketID)
	}
	s.logger.Info("ticket archived", "ticket", ticketID)
}

// CancelTeardown stops a pending channel deletion, e.g. when the channel
// was already removed by other means. Reports whether a timer was armed.
func (s *Sink) CancelTeardown(ticketID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[ticketID]
	if ok {
		t.Stop()
		delete(s.timers, ticketID)
	}
	return ok
}

// Stop cancels all pending teardowns. Used on daemon shutdown.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
