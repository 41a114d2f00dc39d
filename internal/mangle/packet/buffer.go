package packet

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// idCounter assigns the process-monotonic identifier spec.md's Packet.id
// names; grounded on Packet::SjPacketIdCounter in
// original_source/src/service/Packet.cc, which is likewise a single
// process-wide counter shared by every Packet constructor.
var idCounter uint32

func nextID() uint32 {
	return atomic.AddUint32(&idCounter, 1)
}

const (
	minIPHeaderLen  = 20
	minTCPHeaderLen = 20
	minUDPHeaderLen = 8
	minICMPHeaderLen = 8

	ipOptNOP  = 0x01
	tcpOptNOP = 0x01
)

// Buffer owns one IPv4 datagram's bytes plus the header offsets/lengths
// derived from them, and the scramble-disposition metadata the engine and
// plugins attach. It is the Go analogue of original_source's Packet: same
// fields, same invariants (I1–I5 in spec.md §3), reached by direct []byte
// indexing instead of C struct-pointer aliasing.
type Buffer struct {
	bytes []byte

	ipHdrLen  int
	l4HdrLen  int
	l4Off     int // byte offset of the L4 header within bytes (== ipHdrLen)
	payOff    int // byte offset of the L4 payload
	payLen    int

	ID         uint32
	Source     Source
	Proto      Proto
	IsFragment bool
	Judge      Judge
	Evil       Evil
	Position   Position
	Chain      Chain
	Scramble   scramble // choosable_scramble bitmask a plugin or finalize may apply
	Queue      QueueStatus

	// Prev/Next are owned by PacketQueue; see queue.List. Exported so the
	// queue package (which must live outside this one to avoid an import
	// cycle with config) can splice directly, but callers outside queue
	// must not mutate them.
	Prev, Next *Buffer
}

// FromBytes parses raw as an IPv4 datagram, validating I1–I3 the way
// Packet::updatePacketMetadata does: it recomputes every cached offset and
// raises MalformedInput on any length inconsistency instead of reading past
// the buffer. mtu enforces the upper half of I1.
func FromBytes(raw []byte, mtu uint32) (*Buffer, error) {
	b := &Buffer{
		bytes:  append([]byte(nil), raw...),
		ID:     nextID(),
		Source: SourceUnassigned,
	}
	if err := b.deriveMetadata(mtu); err != nil {
		return nil, err
	}
	return b, nil
}

// Clone deep-copies the packet, assigning a fresh ID, matching Packet's copy
// constructor (original keeps chainflag, resets everything else including
// queue linkage and scramble metadata).
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{
		bytes:  append([]byte(nil), b.bytes...),
		ID:     nextID(),
		Source: SourceUnassigned,
		Chain:  b.Chain,
	}
	// deriveMetadata cannot fail on bytes that already parsed once.
	_ = c.deriveMetadata(0)
	return c
}

// Bytes returns the current wire representation. Callers must not retain a
// reference across a resize call; take a fresh Bytes() after mutating.
func (b *Buffer) Bytes() []byte { return b.bytes }

// Len is the current total datagram length.
func (b *Buffer) Len() int { return len(b.bytes) }

// IPHeaderLen is IHL*4.
func (b *Buffer) IPHeaderLen() int { return b.ipHdrLen }

// L4HeaderLen is the TCP/UDP/ICMP header length, 0 if fragment or OTHER_IP.
func (b *Buffer) L4HeaderLen() int { return b.l4HdrLen }

// PayloadLen is the L4 payload length (or the whole IP payload for
// fragments/OTHER_IP).
func (b *Buffer) PayloadLen() int { return b.payLen }

// deriveMetadata re-derives every cached offset from b.bytes, exactly
// mirroring Packet::updatePacketMetadata's validation order and exception
// points (I1–I3). mtu==0 skips the MTU half of I1 (used by Clone, which
// clones an already-valid buffer).
func (b *Buffer) deriveMetadata(mtu uint32) error {
	n := len(b.bytes)
	if n < minIPHeaderLen {
		return fmt.Errorf("%w: packet length %d < minimum IP header 20", ErrMalformedInput, n)
	}
	if mtu != 0 && n > int(mtu) {
		return fmt.Errorf("%w: packet length %d > mtu %d", ErrMalformedInput, n, mtu)
	}

	ihl := int(b.bytes[0] & 0x0F)
	b.ipHdrLen = ihl * 4
	if b.ipHdrLen < minIPHeaderLen {
		return fmt.Errorf("%w: IHL %d < 5", ErrMalformedInput, ihl)
	}
	if n < b.ipHdrLen {
		return fmt.Errorf("%w: packet length %d < IP header length %d", ErrMalformedInput, n, b.ipHdrLen)
	}

	totLen := int(binary.BigEndian.Uint16(b.bytes[2:4]))
	if n != totLen {
		return fmt.Errorf("%w: packet length %d != ip.tot_len %d", ErrMalformedInput, n, totLen)
	}

	fragOff := binary.BigEndian.Uint16(b.bytes[6:8])
	b.IsFragment = fragOff&0x3FFF != 0
	if b.IsFragment {
		b.Proto = ProtoOtherIP
		b.l4HdrLen = 0
		b.l4Off = b.ipHdrLen
		b.payOff = b.ipHdrLen
		b.payLen = n - b.ipHdrLen
		return nil
	}

	protoByte := b.bytes[9]
	b.l4Off = b.ipHdrLen
	switch protoByte {
	case 6: // TCP
		b.Proto = ProtoTCP
		if n < b.ipHdrLen+minTCPHeaderLen {
			return fmt.Errorf("%w: packet length %d < ip+min tcp header", ErrMalformedInput, n)
		}
		doff := int(b.bytes[b.l4Off+12]>>4) * 4
		if doff < minTCPHeaderLen {
			return fmt.Errorf("%w: tcp doff %d < 20", ErrMalformedInput, doff)
		}
		if n < b.ipHdrLen+doff {
			return fmt.Errorf("%w: packet length %d < ip+tcp header %d", ErrMalformedInput, n, b.ipHdrLen+doff)
		}
		b.l4HdrLen = doff
	case 17: // UDP
		b.Proto = ProtoUDP
		if n < b.ipHdrLen+minUDPHeaderLen {
			return fmt.Errorf("%w: packet length %d < ip+udp header", ErrMalformedInput, n)
		}
		udpLen := int(binary.BigEndian.Uint16(b.bytes[b.l4Off+4 : b.l4Off+6]))
		if n < b.ipHdrLen+udpLen {
			return fmt.Errorf("%w: packet length %d < ip header + udp.len %d", ErrMalformedInput, n, udpLen)
		}
		b.l4HdrLen = minUDPHeaderLen
	case 1: // ICMP
		b.Proto = ProtoICMP
		if n < b.ipHdrLen+minICMPHeaderLen {
			return fmt.Errorf("%w: packet length %d < ip+icmp header", ErrMalformedInput, n)
		}
		b.l4HdrLen = minICMPHeaderLen
	default:
		b.Proto = ProtoOtherIP
		b.l4HdrLen = 0
	}

	b.payOff = b.l4Off + b.l4HdrLen
	b.payLen = n - b.payOff
	return nil
}

// IPField accessors — read/write directly on the backing bytes, matching
// Packet's iphdr pointer field access.

func (b *Buffer) IPTotalLen() uint16 { return binary.BigEndian.Uint16(b.bytes[2:4]) }
func (b *Buffer) setIPTotalLen(v uint16) { binary.BigEndian.PutUint16(b.bytes[2:4], v) }

func (b *Buffer) IPIdentification() uint16 { return binary.BigEndian.Uint16(b.bytes[4:6]) }
func (b *Buffer) SetIPIdentification(v uint16) {
	binary.BigEndian.PutUint16(b.bytes[4:6], v)
}

func (b *Buffer) IPTTL() uint8     { return b.bytes[8] }
func (b *Buffer) SetIPTTL(v uint8) { b.bytes[8] = v }

func (b *Buffer) IPProtocol() uint8 { return b.bytes[9] }

func (b *Buffer) IPChecksum() uint16 { return binary.BigEndian.Uint16(b.bytes[10:12]) }
func (b *Buffer) setIPChecksum(v uint16) {
	binary.BigEndian.PutUint16(b.bytes[10:12], v)
}

func (b *Buffer) SrcIP() [4]byte {
	var a [4]byte
	copy(a[:], b.bytes[12:16])
	return a
}

func (b *Buffer) DstIP() [4]byte {
	var a [4]byte
	copy(a[:], b.bytes[16:20])
	return a
}

// TCP field accessors — valid only when Proto == ProtoTCP.

func (b *Buffer) TCPSrcPort() uint16 {
	return binary.BigEndian.Uint16(b.bytes[b.l4Off : b.l4Off+2])
}
func (b *Buffer) SetTCPSrcPort(v uint16) {
	binary.BigEndian.PutUint16(b.bytes[b.l4Off:b.l4Off+2], v)
}

func (b *Buffer) TCPDstPort() uint16 {
	return binary.BigEndian.Uint16(b.bytes[b.l4Off+2 : b.l4Off+4])
}

func (b *Buffer) TCPSeq() uint32 {
	return binary.BigEndian.Uint32(b.bytes[b.l4Off+4 : b.l4Off+8])
}
func (b *Buffer) SetTCPSeq(v uint32) {
	binary.BigEndian.PutUint32(b.bytes[b.l4Off+4:b.l4Off+8], v)
}

func (b *Buffer) TCPAckSeq() uint32 {
	return binary.BigEndian.Uint32(b.bytes[b.l4Off+8 : b.l4Off+12])
}

func (b *Buffer) TCPFlags() uint8 { return b.bytes[b.l4Off+13] }

func (b *Buffer) TCPSYN() bool { return b.TCPFlags()&0x02 != 0 }
func (b *Buffer) TCPACK() bool { return b.TCPFlags()&0x10 != 0 }

func (b *Buffer) TCPChecksum() uint16 {
	return binary.BigEndian.Uint16(b.bytes[b.l4Off+16 : b.l4Off+18])
}
func (b *Buffer) setTCPChecksum(v uint16) {
	binary.BigEndian.PutUint16(b.bytes[b.l4Off+16:b.l4Off+18], v)
}

// UDP field accessors — valid only when Proto == ProtoUDP.

func (b *Buffer) UDPChecksum() uint16 {
	return binary.BigEndian.Uint16(b.bytes[b.l4Off+6 : b.l4Off+8])
}
func (b *Buffer) setUDPChecksum(v uint16) {
	binary.BigEndian.PutUint16(b.bytes[b.l4Off+6:b.l4Off+8], v)
}
func (b *Buffer) setUDPLen(v uint16) {
	binary.BigEndian.PutUint16(b.bytes[b.l4Off+4:b.l4Off+6], v)
}

// ICMP field accessors — valid only when Proto == ProtoICMP.

func (b *Buffer) ICMPType() uint8 { return b.bytes[b.l4Off] }
func (b *Buffer) ICMPCode() uint8 { return b.bytes[b.l4Off+1] }

func (b *Buffer) setICMPChecksum(v uint16) {
	binary.BigEndian.PutUint16(b.bytes[b.l4Off+2:b.l4Off+4], v)
}

// Payload returns the L4 payload (or the IP payload for fragments/OTHER_IP).
func (b *Buffer) Payload() []byte {
	return b.bytes[b.payOff : b.payOff+b.payLen]
}
