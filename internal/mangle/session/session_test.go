package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindDoesNotCreate(t *testing.T) {
	m := New(nil, 0, 0)
	key := Key{SrcIP: [4]byte{10, 0, 0, 1}, DstIP: [4]byte{8, 8, 8, 8}, SrcPort: 1, DstPort: 2, Proto: 6}

	_, ok := m.Find(key)
	require.False(t, ok, "Find on empty map reported a hit")
	require.Zero(t, m.Len(), "Find must never grow the map (P3)")
}

func TestGetCreatesAndReuses(t *testing.T) {
	m := New(nil, 0, 0)
	key := Key{SrcIP: [4]byte{10, 0, 0, 1}, DstIP: [4]byte{8, 8, 8, 8}, SrcPort: 1, DstPort: 2, Proto: 6}

	s1 := m.Get(key)
	s1.PacketNumber = 5
	s2 := m.Get(key)

	require.EqualValues(t, 5, s2.PacketNumber, "Get returned a distinct session for the same key")
	require.Equal(t, 1, m.Len())
}

func TestManageEvictsOverEntryBound(t *testing.T) {
	m := New(nil, 2, 0)
	m.Get(Key{SrcPort: 1})
	m.Get(Key{SrcPort: 2})
	m.Get(Key{SrcPort: 3})

	evicted := m.Manage()
	require.Equal(t, 1, evicted)
	require.Equal(t, 2, m.Len())
}

func TestManageEvictsIdleEntries(t *testing.T) {
	m := New(nil, 0, 10)
	s := m.Get(Key{SrcPort: 1})
	s.accessTimestamp = -100 // far in the past relative to now()==0 with nil env

	evicted := m.Manage()
	require.Equal(t, 1, evicted)
	require.Zero(t, m.Len())
}
