// Package session implements SessionMap: per-5-tuple bookkeeping bounded by
// count and idle age. Grounded on
// client/doublezerod/internal/probing/store.go's routeStore — a mutex-free
// (here: engine-owned, single-threaded) bounded map wrapper with
// access-timestamp eviction, adapted from routing keys to TCP/UDP 5-tuples.
package session

import (
	"sort"

	"github.com/netshroud/shroud/internal/mangle/config"
)

// Key is the 5-tuple identifying a session; unexported fields in Session are
// keyed by this.
type Key struct {
	SrcIP, DstIP     [4]byte
	SrcPort, DstPort uint16
	Proto            uint8
}

// Session holds per-5-tuple packet counters.
type Session struct {
	PacketNumber      uint32
	InjectedPktNumber uint32

	accessTimestamp int64
}

// Map is SessionMap: bounded by MaxEntries and MaxIdleSeconds, evicted by
// Manage once per engine tick.
type Map struct {
	entries map[Key]*Session

	MaxEntries     int
	MaxIdleSeconds int64

	env *config.Env
}

// New returns a Map with the given bounds. Grounded on store.go's
// constructor-with-bound-params shape.
func New(env *config.Env, maxEntries int, maxIdleSeconds int64) *Map {
	return &Map{
		entries:        make(map[Key]*Session),
		MaxEntries:     maxEntries,
		MaxIdleSeconds: maxIdleSeconds,
		env:            env,
	}
}

// Len reports the current entry count.
func (m *Map) Len() int { return len(m.entries) }

// Find looks up a session without creating one — used on the NETWORK
// ingress path so a remote peer cannot force map growth (P3).
func (m *Map) Find(key Key) (*Session, bool) {
	s, ok := m.entries[key]
	return s, ok
}

// Get returns the session for key, creating an empty one on demand. Used
// only from the TUNNEL (outgoing) path.
func (m *Map) Get(key Key) *Session {
	s, ok := m.entries[key]
	if !ok {
		s = &Session{}
		m.entries[key] = s
	}
	s.accessTimestamp = m.now()
	return s
}

func (m *Map) now() int64 {
	if m.env == nil || m.env.Clock == nil {
		return 0
	}
	return m.env.Clock.Now()
}

// Manage evicts entries older than MaxIdleSeconds, then — if still over
// MaxEntries — evicts the oldest remaining entries by access timestamp.
// Called once per tick after the SEND-side fixup, matching spec.md §4.3.
func (m *Map) Manage() (evicted int) {
	now := m.now()
	if m.MaxIdleSeconds > 0 {
		for k, s := range m.entries {
			if now-s.accessTimestamp > m.MaxIdleSeconds {
				delete(m.entries, k)
				evicted++
			}
		}
	}

	if m.MaxEntries <= 0 || len(m.entries) <= m.MaxEntries {
		return evicted
	}

	type agedKey struct {
		key   Key
		stamp int64
	}
	aged := make([]agedKey, 0, len(m.entries))
	for k, s := range m.entries {
		aged = append(aged, agedKey{k, s.accessTimestamp})
	}
	sort.Slice(aged, func(i, j int) bool { return aged[i].stamp < aged[j].stamp })
	toEvict := len(m.entries) - m.MaxEntries
	for i := 0; i < toEvict; i++ {
		delete(m.entries, aged[i].key)
		evicted++
	}
	return evicted
}
