package hub

import (
	"sort"
	"sync"
)

// Channel is one live bidirectional connection the server can push to.
type Channel interface {
	Send(payload []byte) error
	Close(code int, reason string) error
}

// Conn is a Channel that can also be read from.
type Conn interface {
	Channel
	// Receive blocks until the next inbound text frame or a transport error.
	Receive() ([]byte, error)
}

type entry struct {
	ch  Channel
	seq uint64
}

// Registry maps each connected user to their single active channel.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint]entry
	seq     uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[uint]entry),
	}
}

// Register makes ch the active channel for userID. A channel already
// registered for userID is replaced and returned; nil otherwise.
func (r *Registry) Register(userID uint, ch Channel) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.entries[userID]
	r.seq++
	r.entries[userID] = entry{ch: ch, seq: r.seq}

	if prev.ch == ch {
		return nil
	}
	return prev.ch
}

// Unregister removes userID only while ch is still its active channel, so a
// late disconnect from a replaced session can't evict the newer one.
func (r *Registry) Unregister(userID uint, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[userID]; ok && e.ch == ch {
		delete(r.entries, userID)
		return true
	}
	return false
}

// Lookup returns the active channel for userID.
func (r *Registry) Lookup(userID uint) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[userID]
	return e.ch, ok
}

// Channels returns a snapshot of every active channel in registration order.
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	channels := make([]Channel, len(entries))
	for i, e := range entries {
		channels[i] = e.ch
	}
	return channels
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
