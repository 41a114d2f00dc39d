package queue

import (
	"testing"

	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/stretchr/testify/require"
)

func newBuf(id uint32) *packet.Buffer {
	b := &packet.Buffer{ID: id}
	return b
}

func ids(bufs []*packet.Buffer) []uint32 {
	out := make([]uint32, len(bufs))
	for i, b := range bufs {
		out[i] = b.ID
	}
	return out
}

func TestInsertAppendsInOrder(t *testing.T) {
	q := New()
	a, b, c := newBuf(1), newBuf(2), newBuf(3)
	q.Insert(a, packet.QueueYoung)
	q.Insert(b, packet.QueueYoung)
	q.Insert(c, packet.QueueYoung)

	require.Equal(t, []uint32{1, 2, 3}, ids(q.Select(packet.QueueYoung)))
	require.Equal(t, 3, q.Len(packet.QueueYoung))
}

func TestInsertMovesBetweenLists(t *testing.T) {
	q := New()
	a := newBuf(1)
	q.Insert(a, packet.QueueYoung)
	q.Insert(a, packet.QueueSend)

	require.Zero(t, q.Len(packet.QueueYoung), "YOUNG must be empty after the move")
	require.Equal(t, 1, q.Len(packet.QueueSend))
}

func TestInsertBeforeAndAfter(t *testing.T) {
	q := New()
	orig := newBuf(1)
	q.Insert(orig, packet.QueueSend)

	before := newBuf(2)
	after := newBuf(3)
	q.InsertBefore(before, orig)
	q.InsertAfter(after, orig)

	require.Equal(t, []uint32{2, 1, 3}, ids(q.Select(packet.QueueSend)))
}

func TestRemoveUnlinksWithoutDestroying(t *testing.T) {
	q := New()
	a, b, c := newBuf(1), newBuf(2), newBuf(3)
	q.Insert(a, packet.QueueYoung)
	q.Insert(b, packet.QueueYoung)
	q.Insert(c, packet.QueueYoung)

	q.Remove(b)

	require.Equal(t, []uint32{1, 3}, ids(q.Select(packet.QueueYoung)))
	require.Equal(t, packet.QueueUnassigned, b.Queue)
}

// TestWalkDoesNotRevisitMidSweepInsertions matches spec.md §4.2/§5: a
// callback inserting new packets must never cause the current sweep to pick
// them up, whether inserted at the head or the tail.
func TestWalkDoesNotRevisitMidSweepInsertions(t *testing.T) {
	q := New()
	a, b, c := newBuf(1), newBuf(2), newBuf(3)
	q.Insert(a, packet.QueueYoung)
	q.Insert(b, packet.QueueYoung)
	q.Insert(c, packet.QueueYoung)

	var visited []uint32
	q.Walk(packet.QueueYoung, func(p *packet.Buffer) {
		visited = append(visited, p.ID)
		if p.ID == 2 {
			q.Insert(newBuf(99), packet.QueueYoung) // tail insertion mid-sweep
			q.InsertBefore(newBuf(98), a)            // head-ish insertion mid-sweep
		}
	})

	require.Equal(t, []uint32{1, 2, 3}, visited, "mid-sweep insertions must not be revisited")
	require.Equal(t, 5, q.Len(packet.QueueYoung))
}

func TestWalkAllowsRemovingCurrent(t *testing.T) {
	q := New()
	a, b, c := newBuf(1), newBuf(2), newBuf(3)
	q.Insert(a, packet.QueueYoung)
	q.Insert(b, packet.QueueYoung)
	q.Insert(c, packet.QueueYoung)

	q.Walk(packet.QueueYoung, func(p *packet.Buffer) {
		if p.ID == 2 {
			q.Remove(p)
		}
	})

	require.Equal(t, []uint32{1, 3}, ids(q.Select(packet.QueueYoung)))
}
