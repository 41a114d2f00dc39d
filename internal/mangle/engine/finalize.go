package engine

import (
	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/netshroud/shroud/internal/mangle/ttlfocus"
)

// innocentCoatingPercent is the probability a GOOD packet gets a harmless
// "innocent coating" IP option so a passive observer can't distinguish real
// traffic from option-bearing decoys by shape alone. Matches
// TCPTrack::lastPktFix's RANDOMPERCENT(66) call; the macro's own definition
// was not present in the retrieval pack (see DESIGN.md), so the threshold is
// applied via the same draw()<=pct convention scramble.Applies uses.
const innocentCoatingPercent = 66

// lastPktFix is the final mangling step applied to an outbound TCP packet
// immediately before it reaches SEND: TTL assignment, IP-option
// malformation/coating, checksum fix, and checksum corruption. Matches
// TCPTrack::lastPktFix. The only demotion is MALFORMED → GUILTY: a
// MALFORMED packet whose options can't be injected becomes GUILTY if
// CHECKSUM is in its scramble set and is dropped otherwise; a GUILTY packet
// without CHECKSUM is dropped rather than sent un-mangled. PRESCRIPTION only
// changes the TTL jitter and is never demoted.
func (e *Engine) lastPktFix(pkt *packet.Buffer) bool {
	focus, ok := e.TTLFoci.Find(pkt.DstIP())
	known := ok && focus.Status == ttlfocus.Known

	if known {
		pkt.SetIPTTL(focus.TTLEstimate)
		if pkt.Judge == packet.JudgePrescription {
			delta := e.Env.RNG.Intn(4) - 1 // [-1, +2]
			pkt.SetIPTTL(uint8(int(pkt.IPTTL()) - delta))
		} else {
			delta := e.Env.RNG.Intn(4) // [0, +3]
			pkt.SetIPTTL(uint8(int(pkt.IPTTL()) + delta))
		}
	} else {
		delta := e.Env.RNG.Intn(20) - 10 // [-10, +9]
		pkt.SetIPTTL(uint8(int(pkt.IPTTL()) + delta))
	}

	if pkt.Judge == packet.JudgeMalformed {
		if err := pkt.InjectIPOptions(true, true, e.Env.MTU); err != nil {
			if pkt.Scramble&config.ScrambleChecksum != 0 {
				pkt.Judge = packet.JudgeGuilty
			} else {
				return false
			}
		}
	}

	// Good packets get the same weird-option treatment so real and decoy
	// traffic look equally option-bearing to a passive observer.
	if pkt.Scramble&config.ScrambleMalformed != 0 && pkt.Evil == packet.Good {
		if e.Env.RNG.Uniform1to100() <= innocentCoatingPercent {
			_ = pkt.InjectIPOptions(false, false, e.Env.MTU)
		}
	}

	pkt.FixChecksums()

	// GUILTY is the last resort for a hack that couldn't get any other
	// scramble applied; if CHECKSUM isn't available either, drop it.
	if pkt.Judge == packet.JudgeGuilty {
		if pkt.Scramble&config.ScrambleChecksum != 0 {
			pkt.CorruptChecksum()
		} else {
			return false
		}
	}

	return true
}
