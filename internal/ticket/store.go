package ticket

import "sync"

// Store is the in-memory registry of live tickets. Tickets exist here
// from registration until their channel teardown finalizes; archived
// history lives in the archive store, not here.
type Store struct {
	mu   sync.RWMutex
	seq  uint64
	open map[uint64]*Ticket
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{open: make(map[uint64]*Ticket)}
}

// NextID reserves the next ticket id. Reserved ids that never register
// (e.g. channel creation failed) are simply skipped; ids are monotonic,
// not dense.
func (s *Store) NextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Register adds a ticket under its pre-assigned id.
func (s *Store) Register(t *Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[t.ID] = t
}

// Get returns the ticket with the given id.
func (s *Store) Get(id uint64) (*Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.open[id]
	return t, ok
}

// ByChannel returns the ticket owning the given channel, if any.
func (s *Store) ByChannel(channelID string) (*Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.open {
		if t.ChannelID == channelID {
			return t, true
		}
	}
	return nil, false
}

// Remove deletes the ticket from the registry. Removing an unknown id
// is a no-op.
func (s *Store) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, id)
}

// List returns all live tickets in unspecified order.
func (s *Store) List() []*Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Ticket, 0, len(s.open))
	for _, t := range s.open {
		out = append(out, t)
	}
	return out
}

// Len returns the number of live tickets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.open)
}
