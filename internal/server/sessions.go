package server

import (
	"sync"
	"time"

	"github.com/luzgui1/localwhisper/internal/session"
)

// defaultSessionTTL is how long an idle session survives before eviction
// when no explicit TTL is configured.
const defaultSessionTTL = 30 * time.Minute

// sessionEntry pairs a session state with its own lock and idle timestamp.
// Turns within one session are serialized on mu; different sessions proceed
// concurrently.
type sessionEntry struct {
	// mu serializes turns for this session.
	mu sync.Mutex
	// state is the conversation state for this session.
	state *session.State
	// lastSeen is updated on every request for idle eviction.
	lastSeen time.Time
}

// sessionRegistry is an in-memory map of live sessions keyed by session id.
// Idle entries are evicted by a background goroutine to bound memory usage.
type sessionRegistry struct {
	// mu protects the entries map, not the per-session state.
	mu sync.Mutex
	// entries maps session id to its entry.
	entries map[string]*sessionEntry
}

// newSessionRegistry constructs a registry and starts the background eviction
// goroutine. The goroutine exits when the returned stop function is called.
func newSessionRegistry(ttl time.Duration, onEvict func(count int)) (*sessionRegistry, func()) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	r := &sessionRegistry{entries: make(map[string]*sessionEntry)}

	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				evicted := r.evict(ttl)
				if evicted > 0 && onEvict != nil {
					onEvict(r.len())
				}
			}
		}
	}()

	return r, func() { close(stopCh) }
}

// get returns the entry for the given session id, creating a fresh session
// on first use. The second return reports whether the session already existed.
func (r *sessionRegistry) get(id string) (*sessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		entry = &sessionEntry{state: session.New()}
		r.entries[id] = entry
	}
	entry.lastSeen = time.Now()
	return entry, ok
}

// drop removes the session with the given id, discarding its state.
// Returns true if a session existed.
func (r *sessionRegistry) drop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

// len returns the number of live sessions.
func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// evict removes sessions idle for longer than ttl and returns how many were
// removed.
func (r *sessionRegistry) evict(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	evicted := 0
	for id, entry := range r.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}
