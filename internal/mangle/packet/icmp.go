package packet

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// QuotedHeader is the inner IP/TCP header an ICMP TIME_EXCEEDED message
// quotes back from the datagram that expired. TCPTrack::analyzeIncomingICMP
// (original_source/src/service/TCPTrack.cc) reads this by re-interpreting
// raw bytes through C struct pointers; here the quoted blob is itself a
// nested datagram, so it is decoded with gopacket/layers rather than
// hand-rolled a second time — a genuinely separate parse from the Buffer
// surgery above, the same way client/doublezerod/internal/pim decodes
// nested PIM-within-IP structures with gopacket instead of manual offsets.
type QuotedHeader struct {
	InnerDstIP [4]byte
	InnerIPID  uint16
	HasTCP     bool
	InnerSeq   uint32
}

// DecodeICMPQuoted parses the IP header (and, if present, TCP header)
// quoted inside an ICMP error message's payload. Returns an error wrapping
// ErrMalformedInput if the quoted bytes don't even contain a full IP header.
func DecodeICMPQuoted(icmpPayload []byte) (*QuotedHeader, error) {
	pkt := gopacket.NewPacket(icmpPayload, layers.LayerTypeIPv4, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	ipLayer := pkt.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return nil, fmt.Errorf("%w: icmp quoted payload has no ip layer", ErrMalformedInput)
	}
	ip, ok := ipLayer.(*layers.IPv4)
	if !ok {
		return nil, fmt.Errorf("%w: icmp quoted ip layer decode failed", ErrMalformedInput)
	}

	q := &QuotedHeader{InnerIPID: uint16(ip.Id)}
	copy(q.InnerDstIP[:], ip.DstIP.To4())

	if tcpLayer := pkt.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		if tcp, ok := tcpLayer.(*layers.TCP); ok {
			q.HasTCP = true
			q.InnerSeq = tcp.Seq
		}
	}

	return q, nil
}
