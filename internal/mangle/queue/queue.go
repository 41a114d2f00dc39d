// Package queue implements PacketQueue: three intrusive doubly-linked lists
// (YOUNG, KEEP, SEND) over packet.Buffer, using the Prev/Next pointer pair
// packet.Buffer exposes for exactly this purpose. Grounded on spec.md §4.2;
// the "intrusive list of heap-owned nodes, cross-list moves transfer
// ownership atomically" re-architecture spec.md §9 calls for is the natural
// shape in Go once Prev/Next are ordinary GC-traced pointers instead of the
// original's raw-pointer-plus-manual-delete pairs — no arena or generational
// index is needed, the garbage collector is the arena.
package queue

import "github.com/netshroud/shroud/internal/mangle/packet"

type list struct {
	head, tail *packet.Buffer
	length     int
}

// Queue holds the three lifecycle lists: YOUNG, KEEP, SEND.
type Queue struct {
	lists [4]list // indexed by packet.QueueStatus; index 0 (Unassigned) unused
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Len reports the number of packets currently on the given list.
func (q *Queue) Len(status packet.QueueStatus) int {
	return q.lists[status].length
}

// Insert appends p at the tail of status's list in O(1), unlinking it from
// whatever list it previously belonged to. Matches PacketQueue::insert.
func (q *Queue) Insert(p *packet.Buffer, status packet.QueueStatus) {
	q.unlink(p)
	p.Queue = status
	l := &q.lists[status]
	p.Prev = l.tail
	p.Next = nil
	if l.tail != nil {
		l.tail.Next = p
	} else {
		l.head = p
	}
	l.tail = p
	l.length++
}

// InsertBefore splices p immediately before pivot, inheriting pivot's
// status. Matches PacketQueue::insert_before.
func (q *Queue) InsertBefore(p, pivot *packet.Buffer) {
	q.unlink(p)
	status := pivot.Queue
	p.Queue = status
	l := &q.lists[status]

	p.Prev = pivot.Prev
	p.Next = pivot
	if pivot.Prev != nil {
		pivot.Prev.Next = p
	} else {
		l.head = p
	}
	pivot.Prev = p
	l.length++
}

// InsertAfter splices p immediately after pivot, inheriting pivot's status.
// Matches PacketQueue::insert_after.
func (q *Queue) InsertAfter(p, pivot *packet.Buffer) {
	q.unlink(p)
	status := pivot.Queue
	p.Queue = status
	l := &q.lists[status]

	p.Next = pivot.Next
	p.Prev = pivot
	if pivot.Next != nil {
		pivot.Next.Prev = p
	} else {
		l.tail = p
	}
	pivot.Next = p
	l.length++
}

// Remove unlinks p from whichever list it's on. It does not destroy p:
// ownership simply returns to the caller, matching PacketQueue::remove's
// "unlinks; does not destroy" contract.
func (q *Queue) Remove(p *packet.Buffer) {
	q.unlink(p)
	p.Queue = packet.QueueUnassigned
}

func (q *Queue) unlink(p *packet.Buffer) {
	if p.Queue == packet.QueueUnassigned {
		return
	}
	l := &q.lists[p.Queue]
	if p.Prev != nil {
		p.Prev.Next = p.Next
	} else {
		l.head = p.Next
	}
	if p.Next != nil {
		p.Next.Prev = p.Prev
	} else {
		l.tail = p.Prev
	}
	p.Prev, p.Next = nil, nil
	l.length--
}

// Walk sweeps status's list front to back, calling fn on each packet present
// at the moment the sweep began. Per spec.md §4.2/§5: the next pointer is
// captured before fn runs, and the sweep stops once it has processed the
// element that was the tail when Walk started — so fn inserting new packets
// at the head or tail of this (or any other) list never causes the current
// sweep to revisit or pick up those insertions, while fn removing or
// repositioning the current packet is always safe.
func (q *Queue) Walk(status packet.QueueStatus, fn func(*packet.Buffer)) {
	l := &q.lists[status]
	stopAfter := l.tail
	cur := l.head
	for cur != nil {
		next := cur.Next
		fn(cur)
		if cur == stopAfter {
			break
		}
		cur = next
	}
}

// Select returns a snapshot slice of status's list, front to back. Use Walk
// for the iteration-safe mutate-while-scanning path; Select is for read-only
// inspection (tests, metrics).
func (q *Queue) Select(status packet.QueueStatus) []*packet.Buffer {
	var out []*packet.Buffer
	for cur := q.lists[status].head; cur != nil; cur = cur.Next {
		out = append(out, cur)
	}
	return out
}
