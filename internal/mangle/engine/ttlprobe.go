package engine

import (
	"github.com/netshroud/shroud/internal/mangle/metrics"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/netshroud/shroud/internal/mangle/ttlfocus"
)

// injectTTLProbe advances one destination's TTL bruteforce state machine by
// one step, emitting a probe packet when one is due. Matches
// TCPTrack::injectTTLProbe exactly, including the UNKNOWN→BRUTEFORCE
// fallthrough: UNKNOWN promotes to BRUTEFORCE and immediately continues into
// the BRUTEFORCE body in the same call, rather than waiting a tick.
func (e *Engine) injectTTLProbe(focus *ttlfocus.Focus) {
	if focus.Status == ttlfocus.Unknown {
		focus.Status = ttlfocus.Bruteforce
	}
	if focus.Status != ttlfocus.Bruteforce {
		return
	}

	now := e.now()

	if focus.SentProbe == ttlfocus.MaxTTLProbe {
		switch {
		case focus.ProbeTimeout == 0:
			focus.ProbeTimeout = now + ttlfocus.ProbeTimeoutDelta
		case focus.ProbeTimeout < now:
			focus.Status = ttlfocus.Unknown
			focus.SentProbe = 0
			focus.ReceivedProbe = 0
			focus.TTLEstimate = 0xFF
			focus.TTLSynAck = 0
			focus.NextProbeTime = now + ttlfocus.TTLProbeRetryOnUnknown
		}
		return
	}

	focus.SentProbe++
	probe := focus.ProbeDummy.Clone()
	probe.Source = packet.SourceTTLBforce
	probe.Judge = packet.JudgeInnocent
	probe.Evil = packet.Good
	probe.SetIPIdentification(uint16(focus.RandKey%64) + uint16(focus.SentProbe))
	probe.SetIPTTL(uint8(focus.SentProbe))
	probe.SetTCPSrcPort(focus.PuppetPort)
	probe.SetTCPSeq(focus.RandKey + uint32(focus.SentProbe))
	probe.FixChecksums()
	e.Queue.Insert(probe, packet.QueueSend)

	// The next probe is scheduled for the very next tick, not after a delay —
	// bruteforce runs one TTL per tick until it saturates at MAX_TTLPROBE.
	focus.NextProbeTime = now
	metrics.TTLProbesSent.Inc()
}

// executeTTLBruteforces sweeps every tracked destination and advances its
// probe state machine if it's still active, was used recently, and its next
// probe is due. Matches TCPTrack::execTTLBruteforces' three-condition guard.
func (e *Engine) executeTTLBruteforces() {
	now := e.now()
	for _, focus := range e.TTLFoci.Entries() {
		if focus.Status != ttlfocus.Known &&
			focus.AccessTimestamp > now-ttlfocus.BruteforceMaxIdle &&
			focus.NextProbeTime <= now {
			e.injectTTLProbe(focus)
		}
	}
}
