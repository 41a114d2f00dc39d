package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakePortInjectThenRead(t *testing.T) {
	p := NewFakePort()
	p.Inject([]byte{1, 2, 3})

	buf := make([]byte, 16)
	n, err := p.ReadPacket(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = p.ReadPacket(buf)
	require.NoError(t, err, "ReadPacket on empty queue")
	require.Zero(t, n, "expected no packet")
}

func TestFakePortWriteDrain(t *testing.T) {
	p := NewFakePort()
	require.NoError(t, p.WritePacket([]byte{9, 9}))
	require.NoError(t, p.WritePacket([]byte{1}))

	got := p.Drain()
	require.Len(t, got, 2)
	require.Empty(t, p.Drain(), "Drain should be empty after draining once")
}

func TestFakePortClosedRejectsIO(t *testing.T) {
	p := NewFakePort()
	require.NoError(t, p.Close())

	err := p.WritePacket([]byte{1})
	require.ErrorIs(t, err, ErrClosed)

	_, err = p.ReadPacket(make([]byte, 4))
	require.ErrorIs(t, err, ErrClosed)
}
