// Package guard holds the channel-hygiene features around the ticket
// flow: the repeating anti-scam warning and transient notice messages.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Poster sends and deletes plain channel messages. The Discord adapter
// implements it.
type Poster interface {
	Post(ctx context.Context, channelID, content string) (messageID string, err error)
	Delete(ctx context.Context, channelID, messageID string) error
}

// Repeater reposts the anti-scam warning on a cron schedule, deleting
// the previous posting first so the channel carries exactly one copy.
type Repeater struct {
	cron      *cron.Cron
	poster    Poster
	channelID string
	message   string
	logger    *slog.Logger

	mu     sync.Mutex
	lastID string
}

// NewRepeater creates a repeater for the given channel. schedule is a
// cron expression or a predefined form like "@every 30m".
func NewRepeater(poster Poster, channelID, message, schedule string, logger *slog.Logger) (*Repeater, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repeater{
		cron:      cron.New(),
		poster:    poster,
		channelID: channelID,
		message:   message,
		logger:    logger,
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.post(context.Background()) }); err != nil {
		return nil, fmt.Errorf("guard: invalid schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start posts the warning once, then on every tick. Blocks until the
// context is cancelled.
func (r *Repeater) Start(ctx context.Context) error {
	r.post(ctx)
	r.cron.Start()
	r.logger.Info("warning repeater started", "channel", r.channelID)

	<-ctx.Done()
	r.cron.Stop()
	r.logger.Info("warning repeater stopped")
	return ctx.Err()
}

// post replaces the previous warning with a fresh one. Failures to
// delete the stale copy are swallowed; it may already be gone.
func (r *Repeater) post(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastID != "" {
		if err := r.poster.Delete(ctx, r.channelID, r.lastID); err != nil {
			r.logger.Warn("stale warning delete failed", "channel", r.channelID, "error", err)
		}
		r.lastID = ""
	}

	id, err := r.poster.Post(ctx, r.channelID, r.message)
	if err != nil {
		r.logger.Error("warning post failed", "channel", r.channelID, "error", err)
		return
	}
	r.lastID = id
}

// Transient posts a message and deletes it again after ttl. Used for
// slowmode warnings and payment acknowledgements. The deferred deletion
// is fire-and-forget; its failure is only logged.
func Transient(ctx context.Context, poster Poster, channelID, content string, ttl time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	id, err := poster.Post(ctx, channelID, content)
	if err != nil {
		return fmt.Errorf("guard: transient post: %w", err)
	}
	time.AfterFunc(ttl, func() {
		if err := poster.Delete(context.Background(), channelID, id); err != nil {
			logger.Warn("transient delete failed", "channel", channelID, "message", id, "error", err)
		}
	})
	return nil
}
