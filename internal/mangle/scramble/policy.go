// Package scramble implements ScramblePolicy (spec.md §4.5) and the
// probability gate (spec.md §4.6), including the fix for the bug
// original_source/src/service/TCPTrack.cc's TCPTrack::percentage actually
// has: see Applies's doc comment.
package scramble

import (
	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/ttlfocus"
)

// Available returns the bitmask of disruption techniques usable against a
// given destination right now. CHECKSUM, MALFORMED, INNOCENT are always
// potentially available; TTL requires a KNOWN TTLFocus for the destination.
// Matches TCPTrack::discernAvailScramble.
func Available(focus *ttlfocus.Focus, focusExists bool) config.Scramble {
	mask := config.ScrambleChecksum | config.ScrambleMalformed | config.ScrambleInnocent
	if focusExists && focus.Status == ttlfocus.Known {
		mask |= config.ScrambleTTL
	}
	return mask
}

// Applies is the probability gate: given the session's packet count, the
// candidate hack's own declared frequency, and the user's per-port
// aggressivity, decide whether this tick fires the hack.
//
// original_source/src/service/TCPTrack.cc's TCPTrack::percentage computes
// aggressivity_percentage from userFrequency but then evaluates an entirely
// different, never-assigned local (this_percentage, which stays 0) against
// the uniform draw — so outside of hackFrequency's AGG_ALWAYS short-circuit
// (used only under --only-plugin) the gate in the original never fires.
// spec.md §4.6 flags this as "almost certainly a bug" and requires
// combining both percentages; this implementation does so via
// max(hackPct, userPct) before the uniform-draw comparison, per spec.md
// §4.6 and SPEC_FULL.md §4.1.
func Applies(packetNumber uint32, hackFrequency, userFrequency config.Aggressivity, clockSeconds int64, draw func() int) bool {
	if hackFrequency&config.AggAlways != 0 {
		return true
	}

	hackPct := config.DerivePercentage(hackFrequency, packetNumber, clockSeconds)
	userPct := config.DerivePercentage(userFrequency, packetNumber, clockSeconds)
	pct := hackPct
	if userPct > pct {
		pct = userPct
	}

	return uint32(draw()) <= pct
}
