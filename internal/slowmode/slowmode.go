// Package slowmode rate-limits messages per user per channel, with a
// shorter cooldown for holders of the privileged role.
package slowmode

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type key struct {
	userID    string
	channelID string
}

// Gate tracks the last accepted message per (user, channel) pair. A
// background sweep evicts pairs that have been quiet longer than the
// larger threshold, so the table does not grow without bound.
type Gate struct {
	mu         sync.Mutex
	last       map[key]time.Time
	normal     time.Duration
	privileged time.Duration
	now        func() time.Time
}

// New creates a gate with the given cooldowns. normal applies to
// everyone else; privileged to holders of the privileged role.
func New(normal, privileged time.Duration) *Gate {
	return &Gate{
		last:       make(map[key]time.Time),
		normal:     normal,
		privileged: privileged,
		now:        time.Now,
	}
}

// Check decides whether the user may post in the channel now. On allow
// the pair's timestamp advances; on deny it does not, so waiting out the
// cooldown is measured from the last accepted message.
func (g *Gate) Check(userID, channelID string, hasPrivilegedRole bool) (ok bool, remaining time.Duration) {
	threshold := g.normal
	if hasPrivilegedRole {
		threshold = g.privileged
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	k := key{userID, channelID}
	now := g.now()
	if last, seen := g.last[k]; seen {
		if elapsed := now.Sub(last); elapsed < threshold {
			return false, threshold - elapsed
		}
	}
	g.last[k] = now
	return true, 0
}

// Sweep drops pairs whose last accepted message is older than the
// normal cooldown; such pairs can no longer influence a Check.
func (g *Gate) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for k, last := range g.last {
		if now.Sub(last) >= g.normal {
			delete(g.last, k)
			removed++
		}
	}
	return removed
}

// Run sweeps on the given interval until the context is cancelled.
func (g *Gate) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Len returns the number of tracked pairs.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}

// FormatRemaining renders a cooldown for the warning message, rounding
// up to whole seconds: 151s becomes "2 menit 31 detik".
func FormatRemaining(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	if secs < 60 {
		return fmt.Sprintf("%d detik", secs)
	}
	return fmt.Sprintf("%d menit %d detik", secs/60, secs%60)
}
