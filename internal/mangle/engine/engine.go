// Package engine implements HackEngine: the single-threaded cooperative
// orchestrator that drives a packet through the mangling pipeline spec.md §4
// and §5 describe. Grounded on original_source/src/service/TCPTrack.cc's
// TCPTrack (same five-phase per-cycle shape: young → keep → send → map
// maintenance → ttl-probe scheduling) and on
// client/doublezerod/internal/probing/manager.go's phase-ordered Tick model,
// generalized here from "collect → evaluate → publish" to the mangling
// pipeline's own phases.
package engine

import (
	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/metrics"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/netshroud/shroud/internal/mangle/plugin"
	"github.com/netshroud/shroud/internal/mangle/queue"
	"github.com/netshroud/shroud/internal/mangle/session"
	"github.com/netshroud/shroud/internal/mangle/ttlfocus"
)

// Engine ties the packet queue, the session/TTL-focus maps, and the loaded
// plugin pool together behind a single Tick call. It owns no goroutines or
// locks: spec.md §5 runs it from one cooperative loop, called once per
// poll-cycle the way TCPTrack::analyzePacketQueue is called from main.cc's
// poll() block.
type Engine struct {
	Env      *config.Env
	Queue    *queue.Queue
	Sessions *session.Map
	TTLFoci  *ttlfocus.Map
	Plugins  *plugin.Pool
}

// New wires an Engine from its already-constructed collaborators.
func New(env *config.Env, plugins *plugin.Pool, sessions *session.Map, foci *ttlfocus.Map) *Engine {
	return &Engine{
		Env:      env,
		Queue:    queue.New(),
		Sessions: sessions,
		TTLFoci:  foci,
		Plugins:  plugins,
	}
}

// WritePacket admits a raw datagram from source onto the YOUNG list, matching
// TCPTrack::writepacket. A malformed datagram never reaches the queue.
func (e *Engine) WritePacket(source packet.Source, raw []byte) error {
	pkt, err := packet.FromBytes(raw, e.Env.MTU)
	if err != nil {
		return err
	}
	pkt.Source = source
	pkt.Judge = packet.JudgeInnocent
	pkt.Evil = packet.Good
	e.Queue.Insert(pkt, packet.QueueYoung)
	return nil
}

// ReadPacket pops the next SEND-listed packet from the origin bucket
// destSource names. destSource == SourceNetwork returns a packet that
// entered from the network (one headed back up to the tunnel); any other
// value returns a TUNNEL, LOCAL or TTLBFORCE packet (one headed out to the
// wire). The argument selects packets by where they came from, not by where
// they go: passing SourceNetwork never returns a wire-bound packet.
func (e *Engine) ReadPacket(destSource packet.Source) *packet.Buffer {
	for _, pkt := range e.Queue.Select(packet.QueueSend) {
		if destSource == packet.SourceNetwork {
			if pkt.Source == packet.SourceNetwork {
				e.Queue.Remove(pkt)
				return pkt
			}
			continue
		}
		if pkt.Source == packet.SourceTunnel || pkt.Source == packet.SourceLocal || pkt.Source == packet.SourceTTLBforce {
			e.Queue.Remove(pkt)
			return pkt
		}
	}
	return nil
}

// Tick runs one full analyze_packets_queue pass. The phase order is load
// bearing: map maintenance must happen after the SEND-side fixups and before
// probe scheduling (spec.md §4.7) — a destination whose TTLFocus gets
// evicted this tick simply starts a fresh bruteforce next time it's seen.
func (e *Engine) Tick() {
	if e.Queue.Len(packet.QueueYoung)+e.Queue.Len(packet.QueueKeep)+e.Queue.Len(packet.QueueSend) > 0 {
		e.handleYoungPackets()
		e.handleKeepPackets()
		e.handleSendPackets()
	}

	if evicted := e.Sessions.Manage(); evicted > 0 {
		metrics.SessionEvictions.Add(float64(evicted))
	}
	if evicted := e.TTLFoci.Manage(); evicted > 0 {
		metrics.TTLFocusEvictions.Add(float64(evicted))
	}
	e.executeTTLBruteforces()

	metrics.EngineTicks.Inc()
	metrics.QueueLength.WithLabelValues(metrics.LabelStatusYoung).Set(float64(e.Queue.Len(packet.QueueYoung)))
	metrics.QueueLength.WithLabelValues(metrics.LabelStatusKeep).Set(float64(e.Queue.Len(packet.QueueKeep)))
	metrics.QueueLength.WithLabelValues(metrics.LabelStatusSend).Set(float64(e.Queue.Len(packet.QueueSend)))
	metrics.SessionMapSize.Set(float64(e.Sessions.Len()))
	metrics.TTLFocusMapSize.Set(float64(e.TTLFoci.Len()))
}

func (e *Engine) now() int64 {
	return e.Env.Clock.Now()
}

// sessionKey builds the 5-tuple a packet's session is tracked under. Only
// meaningful for TCP/UDP; callers must not invoke it for ICMP/OTHER_IP.
func sessionKey(pkt *packet.Buffer) session.Key {
	return session.Key{
		SrcIP:    pkt.SrcIP(),
		DstIP:    pkt.DstIP(),
		SrcPort:  pkt.TCPSrcPort(),
		DstPort:  pkt.TCPDstPort(),
		Proto:    pkt.IPProtocol(),
	}
}
