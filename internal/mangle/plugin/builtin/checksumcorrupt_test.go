package builtin

import (
	"testing"

	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/netshroud/shroud/internal/mangle/plugin"
	"github.com/stretchr/testify/require"
)

func buildTCPPacket(t *testing.T, payload []byte) *packet.Buffer {
	t.Helper()
	total := 20 + 20 + len(payload)
	buf := make([]byte, total)
	buf[0] = 0x45
	buf[2] = byte(total >> 8)
	buf[3] = byte(total)
	buf[8] = 64
	buf[9] = 6
	copy(buf[12:16], []byte{10, 0, 0, 1})
	copy(buf[16:20], []byte{8, 8, 8, 8})
	tcp := buf[20:40]
	tcp[12] = 5 << 4
	tcp[13] = 0x18
	copy(buf[40:], payload)

	b, err := packet.FromBytes(buf, 1500)
	require.NoError(t, err, "setup FromBytes")
	return b
}

func TestChecksumCorruptConditionRequiresPayload(t *testing.T) {
	p := &ChecksumCorrupt{}
	p.Init(config.ScrambleChecksum)

	withPayload := buildTCPPacket(t, []byte("data"))
	require.True(t, p.Condition(withPayload, config.ScrambleChecksum), "expected Condition to apply to a non-empty TCP data packet")

	empty := buildTCPPacket(t, nil)
	require.False(t, p.Condition(empty, config.ScrambleChecksum), "expected Condition to reject a payload-less packet")
}

func TestChecksumCorruptCreateHackProducesAnticipatedGuiltyClone(t *testing.T) {
	p := &ChecksumCorrupt{}
	p.Init(config.ScrambleChecksum)

	orig := buildTCPPacket(t, []byte("data"))
	hacks := p.CreateHack(orig, config.ScrambleChecksum)

	require.Len(t, hacks, 1)
	h := hacks[0]
	require.Equal(t, packet.JudgeGuilty, h.Judge)
	require.Equal(t, packet.Anticipation, h.Position)
	require.Equal(t, packet.Final, h.Chain)
	require.NotEqual(t, orig.ID, h.Packet.ID, "hack packet must be a distinct clone, not the original")
}

func TestChecksumCorruptDeclaresContract(t *testing.T) {
	p := &ChecksumCorrupt{}
	require.Equal(t, plugin.EngineVersion, p.Version())
	require.False(t, p.RemoveOrigPkt(), "RemoveOrigPkt() must be false: the clone supplements, not replaces")
	require.Equal(t, config.ScrambleChecksum, p.SupportedScramble())
}
