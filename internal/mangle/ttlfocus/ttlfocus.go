// Package ttlfocus implements TTLFocusMap: per-destination-IPv4 hop-distance
// learning state. Grounded on original_source/src/service/TCPTrack.cc's
// TTLFocus fields and state machine (injectTTLProbe, execTTLBruteforces,
// analyzeIncomingICMP, analyzeIncomingTCPSynAck), and on
// client/doublezerod/internal/probing/store.go for the bounded-map-with-
// access-timestamp shape.
package ttlfocus

import (
	"sort"

	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/packet"
)

// Status is the TTL-learning state machine's current state.
type Status uint8

const (
	Unknown Status = iota
	Bruteforce
	Known
)

func (s Status) String() string {
	switch s {
	case Bruteforce:
		return "bruteforce"
	case Known:
		return "known"
	default:
		return "unknown"
	}
}

// Tuning constants from TCPTrack.cc, preserved exactly.
const (
	MaxTTLProbe            = 26
	ProbeTimeoutDelta       = 2  // seconds added once sent_probe saturates
	TTLProbeRetryOnUnknown  = 15 // seconds after an exhausted focus resets to UNKNOWN before probing restarts
	BruteforceMaxIdle       = 30 // seconds; execute_ttl_bruteforces only touches recently-active foci
)

// Focus is TTLFocus: per-destination hop-distance state plus the bookkeeping
// needed to forge and recognize probes.
type Focus struct {
	Status      Status
	TTLEstimate uint8 // current upper bound; 0xFF until learned
	TTLSynAck   uint8 // observed peer-to-us TTL when a KNOWN answer arrived

	SentProbe     int
	ReceivedProbe int

	PuppetPort uint16 // random local source port used exclusively for probes
	RandKey    uint32

	ProbeDummy *packet.Buffer // verbatim clone of the first outbound SYN to this destination

	AccessTimestamp int64
	NextProbeTime   int64
	ProbeTimeout    int64

	TopologyMismatch uint64 // supplemental: see NoteObservedTTL
}

// newFocus starts a freshly learned destination straight at Bruteforce: per
// TCPTrack.cc, a nonexistent TTLFocus kicks off a bruteforce session on
// creation rather than waiting a tick in Unknown.
func newFocus(dummy *packet.Buffer, puppetPort uint16, randKey uint32, now int64) *Focus {
	return &Focus{
		Status:          Bruteforce,
		TTLEstimate:     0xFF,
		PuppetPort:      puppetPort,
		RandKey:         randKey,
		ProbeDummy:      dummy,
		AccessTimestamp: now,
	}
}

// NoteObservedTTL is the supplemental topology-change hook SPEC_FULL.md §4.1
// adds: the original's analyzeIncomingTCPTTL compares a KNOWN focus's
// ttl_synack against every later inbound TCP packet's TTL from that peer and
// only logs a mismatch ("probable net topology change"); this increments a
// counter and nothing else — status/ttl_estimate are never altered here,
// consistent with spec.md §9 calling the KNOWN→UNKNOWN demotion a stub.
func (f *Focus) NoteObservedTTL(observed uint8) (mismatch bool) {
	if f.Status != Known {
		return false
	}
	if observed != f.TTLSynAck {
		f.TopologyMismatch++
		return true
	}
	return false
}

// Map is TTLFocusMap, keyed by destination IPv4.
type Map struct {
	entries map[[4]byte]*Focus

	MaxEntries     int
	MaxIdleSeconds int64

	env *config.Env
}

// New returns a Map with the given bounds.
func New(env *config.Env, maxEntries int, maxIdleSeconds int64) *Map {
	return &Map{
		entries:        make(map[[4]byte]*Focus),
		MaxEntries:     maxEntries,
		MaxIdleSeconds: maxIdleSeconds,
		env:            env,
	}
}

// Len reports the current entry count.
func (m *Map) Len() int { return len(m.entries) }

// Find looks up a focus without creating one — used on the NETWORK ingress
// path (ICMP-EXPIRED, SYN+ACK handlers) so a remote peer cannot force map
// growth (P3).
func (m *Map) Find(dst [4]byte) (*Focus, bool) {
	f, ok := m.entries[dst]
	return f, ok
}

// GetOrCreate returns the focus for dst, creating one from dummy (a clone of
// the triggering outbound SYN) if absent. Only the outgoing-analyze path may
// call this — spec.md §4.3: "creation also requires a copyable probe_dummy".
func (m *Map) GetOrCreate(dst [4]byte, dummy func() *packet.Buffer, puppetPort uint16, randKey uint32) *Focus {
	f, ok := m.entries[dst]
	if !ok {
		f = newFocus(dummy(), puppetPort, randKey, m.now())
		m.entries[dst] = f
	}
	f.AccessTimestamp = m.now()
	return f
}

func (m *Map) now() int64 {
	if m.env == nil || m.env.Clock == nil {
		return 0
	}
	return m.env.Clock.Now()
}

// Entries returns every (destination, focus) pair, for execute_ttl_bruteforces
// to sweep.
func (m *Map) Entries() map[[4]byte]*Focus { return m.entries }

// Manage evicts entries older than MaxIdleSeconds, then — if still over
// MaxEntries — evicts the oldest remaining by access timestamp.
func (m *Map) Manage() (evicted int) {
	now := m.now()
	if m.MaxIdleSeconds > 0 {
		for k, f := range m.entries {
			if now-f.AccessTimestamp > m.MaxIdleSeconds {
				delete(m.entries, k)
				evicted++
			}
		}
	}

	if m.MaxEntries <= 0 || len(m.entries) <= m.MaxEntries {
		return evicted
	}

	type agedKey struct {
		key   [4]byte
		stamp int64
	}
	aged := make([]agedKey, 0, len(m.entries))
	for k, f := range m.entries {
		aged = append(aged, agedKey{k, f.AccessTimestamp})
	}
	sort.Slice(aged, func(i, j int) bool { return aged[i].stamp < aged[j].stamp })
	toEvict := len(m.entries) - m.MaxEntries
	for i := 0; i < toEvict; i++ {
		delete(m.entries, aged[i].key)
		evicted++
	}
	return evicted
}
