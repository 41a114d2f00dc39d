package packet

import "fmt"

// IPHeaderResize changes the IP header length to newLen (must be a multiple
// of 4, >= 20, <= 60, and leave the packet <= mtu — callers are expected to
// have checked this, matching original_source's comment that these checks
// are "delegated to the function caller"). Growing inserts IPOPT_NOOP bytes
// after the fixed header; shrinking truncates. Always re-derives offsets
// afterward. Matches Packet::iphdrResize.
func (b *Buffer) IPHeaderResize(newLen int, mtu uint32) error {
	if newLen == b.ipHdrLen {
		return nil
	}
	oldLen := len(b.bytes)

	b.bytes[0] = b.bytes[0]&0xF0 | byte(newLen/4)

	if b.ipHdrLen < newLen {
		grow := newLen - b.ipHdrLen
		if mtu != 0 && oldLen+grow > int(mtu) {
			return fmt.Errorf("%w: ip header grow would exceed mtu", ErrMalformedInput)
		}
		b.setIPTotalLen(uint16(oldLen + grow))
		b.bytes = insertAt(b.bytes, b.ipHdrLen, grow, ipOptNOP)
	} else {
		shrink := b.ipHdrLen - newLen
		b.setIPTotalLen(uint16(oldLen - shrink))
		b.bytes = removeRange(b.bytes, newLen, b.ipHdrLen)
	}

	return b.deriveMetadata(mtu)
}

// TCPHeaderResize is IPHeaderResize's TCP analogue: updates doff, inserts or
// removes TCPOPT_NOP bytes, updates ip.tot_len, and re-derives offsets.
// Matches Packet::tcphdrResize; refuses on fragments like the original.
func (b *Buffer) TCPHeaderResize(newLen int, mtu uint32) error {
	if b.IsFragment {
		return fmt.Errorf("%w: cannot resize tcp header on a fragment", ErrMalformedInput)
	}
	if b.Proto != ProtoTCP {
		return fmt.Errorf("%w: cannot resize tcp header on a non-tcp packet", ErrMalformedInput)
	}
	if newLen == b.l4HdrLen {
		return nil
	}
	oldLen := len(b.bytes)

	doffByteOff := b.l4Off + 12
	b.bytes[doffByteOff] = byte(newLen/4) << 4

	hdrAt := b.l4Off
	if b.l4HdrLen < newLen {
		grow := newLen - b.l4HdrLen
		if mtu != 0 && oldLen+grow > int(mtu) {
			return fmt.Errorf("%w: tcp header grow would exceed mtu", ErrMalformedInput)
		}
		b.setIPTotalLen(uint16(oldLen + grow))
		b.bytes = insertAt(b.bytes, hdrAt+b.l4HdrLen, grow, tcpOptNOP)
	} else {
		shrink := b.l4HdrLen - newLen
		b.setIPTotalLen(uint16(oldLen - shrink))
		b.bytes = removeRange(b.bytes, hdrAt+newLen, hdrAt+b.l4HdrLen)
	}

	return b.deriveMetadata(mtu)
}

// IPPayloadResize grows/shrinks the IP payload (used for OTHER_IP/fragment
// packets) to size n, bounded by mtu. Matches Packet::ippayloadResize.
func (b *Buffer) IPPayloadResize(n int, mtu uint32) error {
	return b.resizeTail(b.ipHdrLen, n, mtu, nil)
}

// TCPPayloadResize grows/shrinks the TCP payload to size n. Matches
// Packet::tcppayloadResize.
func (b *Buffer) TCPPayloadResize(n int, mtu uint32) error {
	return b.resizeTail(b.payOff, n, mtu, nil)
}

// UDPPayloadResize grows/shrinks the UDP payload to size n, and additionally
// rewrites udp.len. Matches Packet::udppayloadResize.
func (b *Buffer) UDPPayloadResize(n int, mtu uint32) error {
	return b.resizeTail(b.payOff, n, mtu, func() {
		b.setUDPLen(uint16(b.l4HdrLen + n))
	})
}

// resizeTail resizes the tail of the buffer starting at off to hold n bytes,
// updating ip.tot_len, invoking fixup (if non-nil, for udp.len) before the
// final resize, and re-deriving metadata.
func (b *Buffer) resizeTail(off, n int, mtu uint32, fixup func()) error {
	cur := len(b.bytes) - off
	if n == cur {
		return nil
	}
	newTotal := len(b.bytes) - cur + n
	if mtu != 0 && newTotal > int(mtu) {
		return fmt.Errorf("%w: payload resize to %d would exceed mtu %d", ErrMalformedInput, newTotal, mtu)
	}

	b.setIPTotalLen(uint16(newTotal))
	if fixup != nil {
		fixup()
	}

	if n > cur {
		b.bytes = append(b.bytes, make([]byte, n-cur)...)
	} else {
		b.bytes = b.bytes[:newTotal]
	}

	return b.deriveMetadata(mtu)
}

// PayloadRandomFill overwrites the L4 payload (or IP payload for
// fragments/OTHER_IP) with PRNG output. Matches Packet::payloadRandomFill's
// dispatch — all three per-proto variants write the same region in this
// representation, since payOff/payLen are already L4-payload-relative.
func (b *Buffer) PayloadRandomFill(fill func([]byte)) {
	fill(b.Payload())
}

// insertAt inserts count copies of fill at index idx.
func insertAt(buf []byte, idx, count int, fill byte) []byte {
	out := make([]byte, len(buf)+count)
	copy(out, buf[:idx])
	for i := 0; i < count; i++ {
		out[idx+i] = fill
	}
	copy(out[idx+count:], buf[idx:])
	return out
}

// removeRange deletes buf[from:to].
func removeRange(buf []byte, from, to int) []byte {
	out := make([]byte, 0, len(buf)-(to-from))
	out = append(out, buf[:from]...)
	out = append(out, buf[to:]...)
	return out
}
