package engine

import (
	"github.com/netshroud/shroud/internal/mangle/metrics"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/netshroud/shroud/internal/mangle/ttlfocus"
)

const icmpTypeTimeExceeded = 11

// handleYoungPackets sweeps YOUNG, routing each packet through the ingress
// analysis appropriate to its source/protocol and then either into SEND or
// (for a TUNNEL packet still waiting on TTL bruteforce) into KEEP. Matches
// TCPTrack::handleYoungPackets.
func (e *Engine) handleYoungPackets() {
	e.Queue.Walk(packet.QueueYoung, func(pkt *packet.Buffer) {
		send := true

		switch {
		case pkt.Source == packet.SourceNetwork && pkt.Proto == packet.ProtoICMP:
			send = e.analyzeIncomingICMP(pkt)
		case pkt.Source == packet.SourceNetwork && pkt.Proto == packet.ProtoTCP:
			// Informational only: does not affect send.
			e.analyzeIncomingTCPTTL(pkt)
			send = e.analyzeIncomingTCPSynAck(pkt)
		case pkt.Source == packet.SourceTunnel && pkt.Proto == packet.ProtoTCP:
			if e.Env.Blocked(pkt.DstIP()) {
				send = true
			} else {
				send = e.analyzeOutgoing(pkt)
			}
		}

		if !send {
			// Either consumed as a probe response (removed from the queue
			// already) or relocated to KEEP by analyzeOutgoing's bruteforce
			// redirect — nothing left to do here.
			return
		}

		if pkt.Source == packet.SourceNetwork || pkt.Proto != packet.ProtoTCP {
			e.Queue.Insert(pkt, packet.QueueSend)
			return
		}
		// A freshly admitted outbound packet is INNOCENT, so lastPktFix
		// cannot refuse it; a refusal here is a contract violation and is
		// fatal, like the original's RUNTIME_EXCEPTION("[T4R4NT1N0]").
		if !e.lastPktFix(pkt) {
			panic("engine: lastPktFix refused a fresh outbound packet [T4R4NT1N0]")
		}
		e.Queue.Insert(pkt, packet.QueueSend)
	})
}

// handleKeepPackets releases to SEND (through lastPktFix) every KEEP packet
// whose destination's focus is currently in Bruteforce; packets whose focus
// is Known or Unknown, or that have no focus, stay on KEEP. Matches
// TCPTrack::handleKeepPackets.
func (e *Engine) handleKeepPackets() {
	e.Queue.Walk(packet.QueueKeep, func(pkt *packet.Buffer) {
		focus, ok := e.TTLFoci.Find(pkt.DstIP())
		if !ok || focus.Status != ttlfocus.Bruteforce {
			return
		}
		if e.lastPktFix(pkt) {
			e.Queue.Insert(pkt, packet.QueueSend)
		}
	})
}

// handleSendPackets injects plugin hacks around every TUNNEL-originated TCP
// packet now on SEND, matching TCPTrack::handleSendPackets.
func (e *Engine) handleSendPackets() {
	e.Queue.Walk(packet.QueueSend, func(pkt *packet.Buffer) {
		if pkt.Source == packet.SourceTunnel && pkt.Proto == packet.ProtoTCP {
			e.injectHack(pkt)
		}
	})
}

// analyzeIncomingICMP recognizes an ICMP TIME_EXCEEDED scattered by our own
// TTL probe and consumes it silently. Matches TCPTrack::analyzeIncomingICMP;
// the no-create find() is deliberate — an inbound ICMP must never be able to
// force TTLFocus map growth.
func (e *Engine) analyzeIncomingICMP(pkt *packet.Buffer) bool {
	if pkt.ICMPType() != icmpTypeTimeExceeded {
		return true
	}

	quoted, err := packet.DecodeICMPQuoted(pkt.Payload())
	if err != nil || !quoted.HasTCP {
		return true
	}

	focus, ok := e.TTLFoci.Find(quoted.InnerDstIP)
	if !ok {
		return true
	}

	expiredTTL := uint8(uint32(quoted.InnerIPID) - focus.RandKey%64)
	expDoubleCheck := uint8(quoted.InnerSeq - focus.RandKey)
	if expiredTTL != expDoubleCheck {
		return true
	}

	if focus.Status == ttlfocus.Bruteforce {
		focus.ReceivedProbe++
		if focus.ProbeTimeout != 0 {
			focus.ProbeTimeout = e.now() + ttlfocus.ProbeTimeoutDelta
		}
		if expiredTTL >= focus.TTLEstimate {
			// Our estimate was wrong; rebuild from this new high-water mark.
			focus.Status = ttlfocus.Unknown
			focus.TTLEstimate = expiredTTL + 1
		}
	}

	e.Queue.Remove(pkt)
	return false
}

// analyzeIncomingTCPTTL is the stat-only topology-change hook: it never
// mutates TTLFocus status, matching TCPTrack::analyzeIncomingTCPTTL's
// log-and-continue behavior (spec.md §9 keeps this a stub).
func (e *Engine) analyzeIncomingTCPTTL(pkt *packet.Buffer) {
	focus, ok := e.TTLFoci.Find(pkt.SrcIP())
	if !ok {
		return
	}
	if focus.NoteObservedTTL(pkt.IPTTL()) {
		metrics.TTLFocusTopologyMismatch.Inc()
	}
}

// analyzeIncomingTCPSynAck recognizes a SYN+ACK scattered by a TTL probe
// (identified by destination port == puppet_port) and consumes it silently,
// learning the hop distance on the way. Matches
// TCPTrack::analyzeIncomingTCPSynAck.
func (e *Engine) analyzeIncomingTCPSynAck(pkt *packet.Buffer) bool {
	focus, ok := e.TTLFoci.Find(pkt.SrcIP())
	if !ok {
		return true
	}
	if pkt.TCPDstPort() != focus.PuppetPort {
		return true
	}

	if focus.Status == ttlfocus.Bruteforce {
		discernTTL := uint8(pkt.TCPAckSeq() - focus.RandKey - 1)
		focus.ReceivedProbe++
		if discernTTL < focus.TTLEstimate {
			focus.TTLEstimate = discernTTL
			focus.TTLSynAck = pkt.IPTTL()
		}
		focus.Status = ttlfocus.Known
	}

	e.Queue.Remove(pkt)
	return false
}

// analyzeOutgoing tracks the outbound TCP packet's session and — if this
// destination's TTL is still being bruteforced — redirects it to KEEP. Only
// an outbound SYN (without ACK) creates a destination's TTLFocus, with a
// clone of that SYN as its probe dummy; other packets only refresh an
// existing focus. Matches TCPTrack::analyzeOutgoing.
func (e *Engine) analyzeOutgoing(pkt *packet.Buffer) bool {
	sess := e.Sessions.Get(sessionKey(pkt))
	sess.PacketNumber++

	dst := pkt.DstIP()
	var focus *ttlfocus.Focus
	if pkt.TCPSYN() && !pkt.TCPACK() {
		focus = e.TTLFoci.GetOrCreate(dst, pkt.Clone, e.newPuppetPort(), e.newRandKey())
	} else if f, ok := e.TTLFoci.Find(dst); ok {
		f.AccessTimestamp = e.now()
		focus = f
	}
	if focus != nil && focus.Status == ttlfocus.Bruteforce {
		e.Queue.Insert(pkt, packet.QueueKeep)
		return false
	}
	return true
}

// newPuppetPort and newRandKey pick the per-destination probe identifiers a
// freshly created TTLFocus needs. original_source/src/service/TTLFocus.cc
// (the file that would ground their exact generation) was not present in the
// retrieval pack — see DESIGN.md; these follow spec.md §4.3's contract
// ("puppet_port: randomly chosen local source port used exclusively for TTL
// probes", "rand_key: 32-bit") using the same RNG every other jitter call
// draws from.
func (e *Engine) newPuppetPort() uint16 {
	const ephemeralBase = 1024
	return uint16(ephemeralBase + e.Env.RNG.Intn(65536-ephemeralBase))
}

func (e *Engine) newRandKey() uint32 {
	var buf [4]byte
	e.Env.RNG.Bytes(buf[:])
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
}
