// Package builtin holds a small set of compiled-in reference plugins.
// original_source/src/service ships its plugins as separately compiled
// .so objects (spec.md §6.3); spec.md §9 calls that a deployment choice and
// says the engine depends only on the capability interface, so these are
// registered at build time instead (plugin.Registry) rather than dlopen'd.
package builtin

import (
	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/netshroud/shroud/internal/mangle/plugin"
)

// ChecksumCorrupt is the reference plugin spec.md §8 scenario 4 exercises: it
// clones every eligible TUNNEL-origin TCP data packet, places the clone
// ahead of the original (ANTICIPATION), and marks it GUILTY so finalize
// corrupts its TCP checksum — a passive observer sees a corrupt packet
// immediately followed by the real one.
type ChecksumCorrupt struct {
	enabled config.Scramble
}

func (p *ChecksumCorrupt) Version() string { return plugin.EngineVersion }
func (p *ChecksumCorrupt) Name() string    { return "checksumcorrupt" }
func (p *ChecksumCorrupt) HackName() string { return "decoy-checksum-corrupt" }

func (p *ChecksumCorrupt) SupportedScramble() config.Scramble { return config.ScrambleChecksum }
func (p *ChecksumCorrupt) HackFrequency() config.Aggressivity { return config.AggAlways }
func (p *ChecksumCorrupt) RemoveOrigPkt() bool                { return false }

func (p *ChecksumCorrupt) Init(enabledScrambles config.Scramble) bool {
	p.enabled = enabledScrambles
	return true
}

// Condition only applies to non-fragment TCP packets carrying a payload —
// an empty ACK has nothing worth duplicating.
func (p *ChecksumCorrupt) Condition(pkt *packet.Buffer, available config.Scramble) bool {
	return !pkt.IsFragment && pkt.Proto == packet.ProtoTCP && pkt.PayloadLen() > 0
}

func (p *ChecksumCorrupt) CreateHack(pkt *packet.Buffer, available config.Scramble) []plugin.Hack {
	decoy := pkt.Clone()
	return []plugin.Hack{{
		Packet:   decoy,
		Judge:    packet.JudgeGuilty,
		Scramble: config.ScrambleChecksum,
		Proto:    packet.ProtoTCP,
		Position: packet.Anticipation,
		Chain:    packet.Final,
	}}
}
