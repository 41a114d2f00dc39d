package engine

import (
	"fmt"

	"github.com/netshroud/shroud/internal/mangle/metrics"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/netshroud/shroud/internal/mangle/plugin"
	"github.com/netshroud/shroud/internal/mangle/scramble"
)

// injectHack runs every loaded plugin against origpkt, collects the ones
// that apply, shuffles the order they fire in, and splices each produced
// decoy into the queue around origpkt. Matches TCPTrack::injectHack.
func (e *Engine) injectHack(origpkt *packet.Buffer) {
	if origpkt.IsFragment {
		return
	}

	sess := e.Sessions.Get(sessionKey(origpkt))
	focus, focusExists := e.TTLFoci.Find(origpkt.DstIP())
	available := scramble.Available(focus, focusExists)

	userFreq := e.Env.AggressivityFor(origpkt.TCPDstPort())
	now := e.now()

	var applicable []plugin.Plugin

	for _, loadedPlugin := range e.Plugins.All() {
		if available&loadedPlugin.EnabledScramble() == 0 {
			continue
		}
		if !loadedPlugin.Condition(origpkt, available) {
			continue
		}
		if !scramble.Applies(sess.PacketNumber, loadedPlugin.HackFrequency(), userFreq, now, e.Env.RNG.Uniform1to100) {
			continue
		}
		applicable = append(applicable, loadedPlugin)
	}

	e.shuffle(applicable)

	removeOrig := false
	for _, pl := range applicable {
		hacks := pl.CreateHack(origpkt, available)

		for _, h := range hacks {
			if !selfIntegrityCheck(h) {
				if e.Env.FailHardOnPluginViolation() {
					panic(fmt.Sprintf("invalid packet generated by hack %s", pl.HackName()))
				}
				continue
			}

			injpkt := h.Packet
			injpkt.Judge = h.Judge
			injpkt.Scramble = h.Scramble
			injpkt.Proto = h.Proto
			injpkt.Position = h.Position
			injpkt.Chain = h.Chain

			if !e.lastPktFix(injpkt) {
				continue
			}

			injpkt.Source = packet.SourceLocal
			injpkt.Evil = packet.EvilDecoy
			sess.InjectedPktNumber++
			metrics.InjectedPackets.WithLabelValues(metrics.JudgeLabel(injpkt.Judge)).Inc()

			switch injpkt.Position {
			case packet.Anticipation:
				e.Queue.InsertBefore(injpkt, origpkt)
			case packet.Posticipation:
				e.Queue.InsertAfter(injpkt, origpkt)
			case packet.AnyPosition:
				if e.Env.RNG.Intn(2) == 0 {
					e.Queue.InsertBefore(injpkt, origpkt)
				} else {
					e.Queue.InsertAfter(injpkt, origpkt)
				}
			}
		}

		if pl.RemoveOrigPkt() {
			removeOrig = true
		}
	}

	// A hack requesting origpkt's removal is honored only here, at the end,
	// so every plugin gets a chance to react to the still-present original.
	if removeOrig {
		e.Queue.Remove(origpkt)
	}
}

// selfIntegrityCheck is the engine-side half of the plugin contract check:
// every field finalize_packet and the queue splice depend on must be set.
// Matches Packet::selfIntegrityCheck.
func selfIntegrityCheck(h plugin.Hack) bool {
	return h.Packet != nil &&
		h.Judge != packet.JudgeUnassigned &&
		h.Scramble != 0 &&
		h.Proto != packet.ProtoUnassigned &&
		h.Position != packet.PositionUnassigned &&
		h.Chain != packet.ChainUnassigned
}

// shuffle performs an in-place Fisher-Yates shuffle using the engine's own
// RNG, matching TCPTrack::injectHack's random_shuffle(applicable_hacks) call
// with the single PRNG spec.md §9 requires instead of reaching for a second,
// implicit source of randomness.
func (e *Engine) shuffle(items []plugin.Plugin) {
	for i := len(items) - 1; i > 0; i-- {
		j := e.Env.RNG.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
