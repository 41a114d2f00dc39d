package packet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeICMPQuotedRejectsShortInput(t *testing.T) {
	_, err := DecodeICMPQuoted([]byte{1, 2, 3})
	require.Error(t, err, "expected error decoding a truncated quoted header")
}

func TestDecodeICMPQuotedParsesInnerTCP(t *testing.T) {
	quoted := buildTCP([]byte("x"))
	// ICMP only ever needs to quote the first 8 bytes of the inner L4 header,
	// but a full datagram is also valid input to DecodeICMPQuoted.
	q, err := DecodeICMPQuoted(quoted)
	require.NoError(t, err)
	require.True(t, q.HasTCP, "expected HasTCP for a quoted TCP datagram")
	require.Equal(t, [4]byte{8, 8, 8, 8}, q.InnerDstIP)
	require.EqualValues(t, 0x1234, q.InnerIPID)
}
