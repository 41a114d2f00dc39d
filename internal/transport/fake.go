package transport

import (
	"errors"
	"sync"
)

// ErrClosed is returned by FakePort methods once Close has been called.
var ErrClosed = errors.New("transport: port closed")

// FakePort is an in-memory TunnelPort/NetworkPort double: WritePacket
// appends to an Outbound queue a test can inspect, and Inject makes a
// datagram available to the next ReadPacket call. Used in place of a real
// TUN device or raw socket wherever a test needs to drive HackEngine without
// CAP_NET_RAW/CAP_NET_ADMIN.
type FakePort struct {
	mu       sync.Mutex
	inbound  [][]byte
	Outbound [][]byte
	closed   bool
}

// NewFakePort returns a ready-to-use FakePort.
func NewFakePort() *FakePort { return &FakePort{} }

// Inject queues pkt to be returned by the next ReadPacket call.
func (f *FakePort) Inject(pkt []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(pkt))
	copy(cp, pkt)
	f.inbound = append(f.inbound, cp)
}

func (f *FakePort) ReadPacket(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}
	if len(f.inbound) == 0 {
		return 0, nil
	}
	pkt := f.inbound[0]
	f.inbound = f.inbound[1:]
	return copy(buf, pkt), nil
}

func (f *FakePort) WritePacket(pkt []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	cp := make([]byte, len(pkt))
	copy(cp, pkt)
	f.Outbound = append(f.Outbound, cp)
	return nil
}

func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Drain removes and returns every packet WritePacket has accumulated so far.
func (f *FakePort) Drain() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.Outbound
	f.Outbound = nil
	return out
}
