package engine

import (
	"testing"

	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/netshroud/shroud/internal/mangle/plugin"
	"github.com/stretchr/testify/require"
)

// stubPlugin always applies and always produces a single ANTICIPATION clone
// marked GUILTY/CHECKSUM, mirroring builtin.ChecksumCorrupt's shape without
// importing it (would be an import cycle: builtin depends on plugin, not
// engine).
type stubPlugin struct {
	removeOrig bool
}

func (p *stubPlugin) Version() string                               { return plugin.EngineVersion }
func (p *stubPlugin) Name() string                                  { return "stub" }
func (p *stubPlugin) HackName() string                               { return "stub-hack" }
func (p *stubPlugin) SupportedScramble() config.Scramble             { return config.ScrambleChecksum }
func (p *stubPlugin) HackFrequency() config.Aggressivity             { return config.AggAlways }
func (p *stubPlugin) RemoveOrigPkt() bool                            { return p.removeOrig }
func (p *stubPlugin) Init(config.Scramble) bool                      { return true }
func (p *stubPlugin) Condition(*packet.Buffer, config.Scramble) bool { return true }
func (p *stubPlugin) CreateHack(pkt *packet.Buffer, available config.Scramble) []plugin.Hack {
	return []plugin.Hack{{
		Packet:   pkt.Clone(),
		Judge:    packet.JudgeGuilty,
		Scramble: config.ScrambleChecksum,
		Proto:    packet.ProtoTCP,
		Position: packet.Anticipation,
		Chain:    packet.Final,
	}}
}

func TestInjectHackSplicesAnticipationBeforeOriginal(t *testing.T) {
	e, _ := newTestEngine()
	var pool plugin.Pool
	err := pool.LoadOnly(config.OnlyPlugin{Name: "stub", Scrambles: config.ScrambleChecksum},
		plugin.Registry{"stub": func() plugin.Plugin { return &stubPlugin{} }})
	require.NoError(t, err)
	e.Plugins = &pool

	orig, err := packet.FromBytes(tunnelTCP([]byte("data")), 1500)
	require.NoError(t, err)
	orig.Source = packet.SourceTunnel
	e.Queue.Insert(orig, packet.QueueSend)

	e.injectHack(orig)

	ids := e.Queue.Select(packet.QueueSend)
	require.Len(t, ids, 2, "want decoy + original")
	require.NotEqual(t, orig.ID, ids[0].ID, "ANTICIPATION decoy must be spliced before the original")
	require.Equal(t, orig.ID, ids[1].ID, "original must still follow its decoy")
	require.Equal(t, packet.JudgeGuilty, ids[0].Judge)
}

func TestInjectHackHonorsRemoveOrigPkt(t *testing.T) {
	e, _ := newTestEngine()
	var pool plugin.Pool
	err := pool.LoadOnly(config.OnlyPlugin{Name: "stub", Scrambles: config.ScrambleChecksum},
		plugin.Registry{"stub": func() plugin.Plugin { return &stubPlugin{removeOrig: true} }})
	require.NoError(t, err)
	e.Plugins = &pool

	orig, _ := packet.FromBytes(tunnelTCP([]byte("data")), 1500)
	orig.Source = packet.SourceTunnel
	e.Queue.Insert(orig, packet.QueueSend)

	e.injectHack(orig)

	ids := e.Queue.Select(packet.QueueSend)
	require.Len(t, ids, 1, "want decoy only, original removed")
	require.NotEqual(t, orig.ID, ids[0].ID, "original should have been removed")
}
