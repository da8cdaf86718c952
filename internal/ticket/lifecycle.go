package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rekberhub/rekberd/internal/fee"
)

// Gateway is the chat-platform surface the lifecycle drives. The Discord
// adapter implements it; tests supply fakes.
type Gateway interface {
	// CreateTicketChannel creates a channel hidden from everyone except
	// the listed members and the bot itself.
	CreateTicketChannel(ctx context.Context, name string, memberIDs []string) (channelID string, err error)
	// DeleteChannel tears a channel down.
	DeleteChannel(ctx context.Context, channelID string) error
	// GrantChannelAccess gives a user view/send access on a channel.
	GrantChannelAccess(ctx context.Context, channelID, userID string) error
	// PostSummary posts the rendered ticket summary with its controls
	// into the ticket channel.
	PostSummary(ctx context.Context, t *Ticket) (messageID string, err error)
	// UpdateSummary re-renders the summary message in place.
	UpdateSummary(ctx context.Context, t *Ticket) error
	// IsAdmin reports whether the user holds administrator permission.
	IsAdmin(userID string) bool
	// IsBot reports whether the user is a bot account.
	IsBot(userID string) bool
}

// Archiver consumes tickets that reached a terminal state. Archival is
// fire-and-forget: implementations log their own failures and never
// report back into the transition.
type Archiver interface {
	Archive(t *Ticket, disposition Status)
}

// OpenForm carries the fields of a submitted rekber modal.
type OpenForm struct {
	CreatorID     string
	BuyerLabel    string
	SellerLabel   string
	Item          string
	NominalRaw    string
	PaymentMethod string
}

// Service runs the ticket state machine. Discord dispatches gateway
// events on separate goroutines, so every operation on a given ticket id
// goes through a per-id mutex: the status guard and the status write are
// atomic, and two rapid Complete/Cancel presses cannot both fire their
// terminal side effects.
type Service struct {
	store   *Store
	gateway Gateway
	archive Archiver
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewService wires the lifecycle to its store, gateway and archival sink.
func NewService(store *Store, gw Gateway, sink Archiver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		gateway: gw,
		archive: sink,
		logger:  logger,
		now:     time.Now,
		locks:   make(map[uint64]*sync.Mutex),
	}
}

// lock acquires the per-ticket mutex for id and returns its unlock func.
func (s *Service) lock(id uint64) func() {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Open validates a submitted form, computes the fee, allocates the
// dedicated channel and registers the ticket. A channel-creation failure
// aborts before anything is registered; a summary-post failure tears the
// fresh channel back down so no orphaned store entry survives.
func (s *Service) Open(ctx context.Context, form OpenForm) (*Ticket, error) {
	nominal, err := ParseAmount(form.NominalRaw)
	if err != nil {
		return nil, err
	}

	id := s.store.NextID()
	channelID, err := s.gateway.CreateTicketChannel(ctx, fmt.Sprintf("rekber-%d", id), []string{form.CreatorID})
	if err != nil {
		return nil, fmt.Errorf("ticket: create channel: %w", err)
	}

	f := fee.For(nominal)
	t := &Ticket{
		ID:            id,
		Item:          form.Item,
		PaymentMethod: form.PaymentMethod,
		BuyerLabel:    form.BuyerLabel,
		SellerLabel:   form.SellerLabel,
		Nominal:       nominal,
		Fee:           f,
		Total:         nominal + f,
		Status:        StatusPending,
		ChannelID:     channelID,
		CreatorID:     form.CreatorID,
		Participants:  []string{form.CreatorID},
		CreatedAt:     s.now(),
	}

	msgID, err := s.gateway.PostSummary(ctx, t)
	if err != nil {
		if derr := s.gateway.DeleteChannel(ctx, channelID); derr != nil {
			s.logger.Warn("orphan channel cleanup failed", "channel", channelID, "error", derr)
		}
		return nil, fmt.Errorf("ticket: post summary: %w", err)
	}
	t.MessageID = msgID

	s.store.Register(t)
	s.logger.Info("ticket opened",
		"ticket", t.ID,
		"creator", t.CreatorID,
		"nominal", t.Nominal,
		"fee", t.Fee,
	)
	return t, nil
}

// AddParticipant assigns a user to the buyer or seller side, grants them
// access to the ticket channel and lets them cancel the ticket. Adding
// the same user twice is a no-op on the set. Roles are not exclusive and
// reassigning a role does not revoke the previous holder.
func (s *Service) AddParticipant(ctx context.Context, id uint64, role Role, targetID, actorID string) error {
	unlock := s.lock(id)
	defer unlock()

	t, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if s.gateway.IsBot(targetID) {
		return ErrInvalidParticipant
	}
	if t.Status != StatusPending {
		return nil
	}

	if err := s.gateway.GrantChannelAccess(ctx, t.ChannelID, targetID); err != nil {
		return fmt.Errorf("ticket: grant access: %w", err)
	}

	switch role {
	case RoleBuyer:
		t.BuyerID = targetID
	case RoleSeller:
		t.SellerID = targetID
	default:
		return fmt.Errorf("ticket: unknown role %q", role)
	}
	t.addParticipant(targetID)

	if err := s.gateway.UpdateSummary(ctx, t); err != nil {
		s.logger.Warn("summary update failed", "ticket", id, "error", err)
	}
	s.logger.Info("participant added", "ticket", id, "role", role, "user", targetID, "by", actorID)
	return nil
}

// Complete marks a pending ticket as successfully settled. Only an
// administrator can affirm completion. Calling it again once the ticket
// is terminal is a no-op, not a second archival dispatch.
func (s *Service) Complete(ctx context.Context, id uint64, actorID string) error {
	if !s.gateway.IsAdmin(actorID) {
		return ErrUnauthorized
	}
	return s.close(ctx, id, actorID, StatusCompleted)
}

// Cancel aborts a pending ticket. Administrators and ticket participants
// (creator, buyer, seller) may cancel; anyone of the three stakeholders
// has standing to abort a stalled deal.
func (s *Service) Cancel(ctx context.Context, id uint64, actorID string) error {
	unlock := s.lock(id)
	defer unlock()

	t, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if !s.gateway.IsAdmin(actorID) && !t.IsParticipant(actorID) {
		return ErrUnauthorized
	}
	return s.transition(ctx, t, actorID, StatusCancelled)
}

func (s *Service) close(ctx context.Context, id uint64, actorID string, to Status) error {
	unlock := s.lock(id)
	defer unlock()

	t, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	return s.transition(ctx, t, actorID, to)
}

// transition performs the guarded terminal move. Callers hold the
// per-ticket lock.
func (s *Service) transition(ctx context.Context, t *Ticket, actorID string, to Status) error {
	if t.Status != StatusPending {
		return nil
	}
	t.Status = to

	if err := s.gateway.UpdateSummary(ctx, t); err != nil {
		s.logger.Warn("summary update failed", "ticket", t.ID, "error", err)
	}
	s.archive.Archive(t, to)
	s.logger.Info("ticket closed", "ticket", t.ID, "disposition", to, "by", actorID)
	return nil
}

// Finalize removes a ticket once its channel teardown has run. The
// archival sink calls this after the grace delay; no mutation happens
// after removal.
func (s *Service) Finalize(id uint64) {
	s.store.Remove(id)
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	s.logger.Debug("ticket finalized", "ticket", id)
}

// Snapshot returns deep copies of the live tickets for read-only
// surfaces. Each copy is taken under its per-ticket lock, so it never
// observes a half-applied transition and encoding it cannot race with
// one.
func (s *Service) Snapshot() []*Ticket {
	live := s.store.List()
	out := make([]*Ticket, 0, len(live))
	for _, t := range live {
		unlock := s.lock(t.ID)
		c := *t
		c.Participants = append([]string(nil), t.Participants...)
		unlock()
		out = append(out, &c)
	}
	return out
}

// Store exposes the live registry for channel lookups (payment
// acknowledgement). Surfaces that hold onto ticket data across
// lifecycle transitions use Snapshot instead.
func (s *Service) Store() *Store {
	return s.store
}
