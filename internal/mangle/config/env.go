package config

import (
	"net/netip"

	"github.com/netshroud/shroud/internal/mangle/clockrand"
)

// Env is the explicit, immutable bundle of process-wide resources the engine
// needs on every tick. spec.md §9 calls out that the original reaches into a
// global `userconf`; this rewrite threads Env through every constructor
// instead of re-globalizing MTU/portconf/rng/clock.
type Env struct {
	MTU        uint32
	PortConf   *Config
	Blacklist  *AddrSet
	Whitelist  *AddrSet
	OnlyPlugin *OnlyPlugin
	RNG        clockrand.RNG
	Clock      clockrand.Clock
	DebugLevel int
}

// DebugLevelPacket gates the fatal-on-plugin-contract-violation behavior
// described in spec.md §7: under this debug level, a malformed injected
// packet aborts the tick instead of being silently dropped, so plugin
// authors notice immediately during development.
const DebugLevelPacket = 2

// FailHardOnPluginViolation reports whether the configured debug level
// requires finalize_packet to treat a plugin contract violation as fatal.
func (e *Env) FailHardOnPluginViolation() bool {
	return e.DebugLevel >= DebugLevelPacket
}

// AggressivityFor resolves the per-destination-port user aggressivity,
// defaulting to AggNone when no PortConf is configured.
func (e *Env) AggressivityFor(port uint16) Aggressivity {
	if e.PortConf == nil {
		return AggNone
	}
	return e.PortConf.AggressivityFor(port)
}

// Blocked reports whether a destination should bypass hack injection
// entirely per the blacklist/whitelist policy (spec.md §6.2, scenario 5).
func (e *Env) Blocked(dst [4]byte) bool {
	addr := addrFromBytes(dst)
	if e.Blacklist != nil {
		if e.Blacklist.Contains(addr) {
			return true
		}
	}
	if e.Whitelist != nil {
		if !e.Whitelist.Contains(addr) {
			return true
		}
	}
	return false
}

func addrFromBytes(b [4]byte) netip.Addr {
	return netip.AddrFrom4(b)
}
