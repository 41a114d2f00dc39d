package packet

import "encoding/binary"

// computeHalfSum folds data into a running 32-bit accumulator of 16-bit
// big-endian words, padding a trailing odd byte as the high byte of its own
// word. Grounded on Packet::computeHalfSum
// (original_source/src/service/Packet.cc) — same algorithm, same padding
// rule, just without the carry fold (that's computeSum's job, kept separate
// so pseudo-header and payload sums can be accumulated before folding once).
func computeHalfSum(data []byte) uint32 {
	var sum uint32
	n := len(data)
	i := 0
	for ; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if i < n {
		sum += uint32(data[i]) << 8
	}
	return sum
}

// computeSum folds a 32-bit accumulator down to the 1's-complement 16-bit
// checksum: end-around carry twice, then complement. Mirrors
// Packet::computeSum exactly.
func computeSum(sum uint32) uint16 {
	sum = (sum >> 16) + (sum & 0xFFFF)
	sum += sum >> 16
	return ^uint16(sum)
}

// fixIPChecksum recomputes the IP header checksum over the (variable-length,
// options included) IP header with the checksum field zeroed first.
func (b *Buffer) fixIPChecksum() {
	b.setIPChecksum(0)
	sum := computeHalfSum(b.bytes[:b.ipHdrLen])
	b.setIPChecksum(computeSum(sum))
}

// pseudoHeaderSum sums saddr+daddr (8 bytes) plus htons(proto+payloadLen),
// matching fixIPTCPSum/fixIPUDPSum's pseudo-header construction exactly
// (proto and length are summed together as one 16-bit word, not as two
// separate fields — this is what the original's
// `htons(IPPROTO_TCP + ippayloadlen)` line does, and it is preserved here
// rather than "corrected" to the textbook RFC 793 layout, to match the
// original system's actual on-wire behavior).
func (b *Buffer) pseudoHeaderSum(proto uint8, payloadLen int) uint32 {
	sum := computeHalfSum(b.bytes[12:20])
	sum += uint32(uint16(int(proto) + payloadLen))
	return sum
}

// fixTCPChecksum recomputes the IP and TCP checksums, matching
// Packet::fixIPTCPSum.
func (b *Buffer) fixTCPChecksum() {
	b.fixIPChecksum()
	b.setTCPChecksum(0)
	l4 := b.bytes[b.l4Off:]
	sum := b.pseudoHeaderSum(6, len(l4))
	sum += computeHalfSum(l4)
	b.setTCPChecksum(computeSum(sum))
}

// fixUDPChecksum recomputes the IP and UDP checksums, matching
// Packet::fixIPUDPSum.
func (b *Buffer) fixUDPChecksum() {
	b.fixIPChecksum()
	b.setUDPChecksum(0)
	l4 := b.bytes[b.l4Off:]
	sum := b.pseudoHeaderSum(17, len(l4))
	sum += computeHalfSum(l4)
	b.setUDPChecksum(computeSum(sum))
}

// fixICMPChecksum recomputes the ICMP checksum over header+payload, with no
// pseudo-header (ICMP has none).
func (b *Buffer) fixICMPChecksum() {
	b.fixIPChecksum()
	b.setICMPChecksum(0)
	sum := computeHalfSum(b.bytes[b.l4Off:])
	b.setICMPChecksum(computeSum(sum))
}

// FixChecksums recomputes every checksum this packet carries: IP always;
// TCP/UDP/ICMP when not a fragment, per the L4 protocol. Matches
// Packet::fixSum's dispatch.
func (b *Buffer) FixChecksums() {
	if b.IsFragment {
		b.fixIPChecksum()
		return
	}
	switch b.Proto {
	case ProtoTCP:
		b.fixTCPChecksum()
	case ProtoUDP:
		b.fixUDPChecksum()
	case ProtoICMP:
		b.fixICMPChecksum()
	default:
		b.fixIPChecksum()
	}
}

// CorruptChecksum adds the constant 0xD34D to the L4 checksum for
// non-fragment TCP/UDP, or to the IP checksum otherwise (fragments,
// ICMP, OTHER_IP). Matches Packet::corruptSum exactly, including its
// unconditional wraparound add (no re-fold — a corrupted checksum is by
// definition not a valid 1's-complement sum any more).
func (b *Buffer) CorruptChecksum() {
	if b.IsFragment {
		b.setIPChecksum(b.IPChecksum() + 0xD34D)
		return
	}
	switch b.Proto {
	case ProtoTCP:
		b.setTCPChecksum(b.TCPChecksum() + 0xD34D)
	case ProtoUDP:
		b.setUDPChecksum(b.UDPChecksum() + 0xD34D)
	default:
		b.setIPChecksum(b.IPChecksum() + 0xD34D)
	}
}

// RandomizeIPID sets a new IP identification field as old_id - 10 +
// uniform[0,19], i.e. jitter in [-10,+9]. spec.md §9 flags this as
// asymmetric-looking but preserves it rather than "fixing" it to a symmetric
// jitter; matches Packet::randomizeID exactly.
func (b *Buffer) RandomizeIPID(jitter0to19 int) {
	id := int(b.IPIdentification())
	id = id - 10 + jitter0to19
	b.SetIPIdentification(uint16(id))
}
