package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// NetworkPort is the wire side HackEngine calls "network": raw, fully
// formed IPv4 datagrams in and out, with no kernel-side header construction
// or reassembly. Matches the raw-socket shape
// tools/uping/pkg/uping/sender.go's Sender and listener.go's Listener both
// build on, narrowed to plain read/write.
type NetworkPort interface {
	ReadPacket(buf []byte) (int, error)
	WritePacket(pkt []byte) error
	Close() error
}

// rawSocket is a NetworkPort backed by an AF_INET/SOCK_RAW/IPPROTO_RAW
// socket with IP_HDRINCL set, so every WritePacket call sends exactly the
// bytes HackEngine built (including its own IP header) without the kernel
// re-deriving one. Grounded on
// tools/uping/pkg/uping/listener.go's IP_HDRINCL+SO_BINDTODEVICE setup,
// generalized from ICMP-only traffic to arbitrary IP protocols.
type rawSocket struct {
	fd    int
	iface string
}

// OpenNetworkPort opens a raw IP socket bound to ifName. bindToDevice scopes
// both RX and TX to that interface, the same SO_BINDTODEVICE use
// listener.go makes to keep echo replies on the probe's ingress link.
func OpenNetworkPort(ifName string) (NetworkPort, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("transport: raw socket: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		return nil, fmt.Errorf("transport: IP_HDRINCL: %w", err)
	}
	if err := unix.SetsockoptString(fd, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifName); err != nil {
		return nil, fmt.Errorf("transport: bind-to-device %q: %w", ifName, err)
	}

	ok = true
	return &rawSocket{fd: fd, iface: ifName}, nil
}

// ReadPacket reads one datagram off the wire into buf, including its IP
// header (HDRINCL's RX-side counterpart).
func (r *rawSocket) ReadPacket(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(r.fd, buf, 0)
	return n, err
}

// WritePacket sends pkt as-is. The destination is read out of pkt's own IP
// header, matching IP_HDRINCL semantics: the kernel routes on the header
// HackEngine already wrote, rather than one derived from a sockaddr arg.
func (r *rawSocket) WritePacket(pkt []byte) error {
	if len(pkt) < 20 {
		return fmt.Errorf("transport: short packet: %d bytes", len(pkt))
	}
	dst := net.IP(pkt[16:20]).To4()
	var sa unix.SockaddrInet4
	copy(sa.Addr[:], dst)
	return unix.Sendto(r.fd, pkt, 0, &sa)
}

func (r *rawSocket) Close() error { return unix.Close(r.fd) }
