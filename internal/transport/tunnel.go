package transport

import (
	"fmt"
	"net"
	"os"
	"unsafe"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// TunnelPort is the local side HackEngine calls "tunnel": a TCP/IP stack
// emitting outbound datagrams and accepting inbound ones. Whatever concrete
// device it's backed by, only raw IP datagrams cross this interface.
// Matches the Interface.ReadPacket/WritePacket shape other_examples'
// mistsys-tuntap package exposes, narrowed to the methods the engine loop
// actually calls.
type TunnelPort interface {
	ReadPacket(buf []byte) (int, error)
	WritePacket(pkt []byte) error
	Close() error
}

const (
	devNetTun  = "/dev/net/tun"
	ifnameSize = unix.IFNAMSIZ

	// Kernel TUN/TAP ioctl ABI (linux/if_tun.h); not configurable, so these
	// stay as unexported constants rather than threaded through Config.
	iffTun     = 0x0001
	iffNoPI    = 0x1000
	tunSetIFF  = 0x400454ca
	tunDevPath = devNetTun
)

// ifReq mirrors linux's struct ifreq for the TUNSETIFF ioctl: a 16-byte
// interface name followed by a flags union.
type ifReq struct {
	Name  [ifnameSize]byte
	Flags uint16
	_     [22]byte
}

// tunDevice is a TunnelPort backed by a kernel TUN device opened in
// IFF_TUN|IFF_NO_PI mode (no per-packet protocol-family prefix, matching
// spec.md's "each unit of the queue is one bare IP datagram" contract).
type tunDevice struct {
	name string
	file *os.File
}

// OpenTunnel creates (or attaches to) a TUN interface named ifName, brings
// it administratively up via netlink, and returns a TunnelPort reading and
// writing raw IPv4/IPv6 datagrams on it. Grounded on
// client/doublezerod/internal/netlink/tunnel.go's device-naming/up-bringing
// style; the ioctl device-open mechanics follow the same /dev/net/tun
// open-then-configure shape other_examples' mistsys-tuntap.Open wraps.
func OpenTunnel(ifName string) (TunnelPort, error) {
	f, err := os.OpenFile(tunDevPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", tunDevPath, err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	var req ifReq
	copy(req.Name[:], ifName)
	req.Flags = iffTun | iffNoPI

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), tunSetIFF, uintptr(unsafe.Pointer(&req))); errno != 0 {
		return nil, fmt.Errorf("transport: TUNSETIFF %s: %w", ifName, errno)
	}

	link, err := netlink.LinkByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("transport: lookup link %s after create: %w", ifName, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return nil, fmt.Errorf("transport: bring up %s: %w", ifName, err)
	}

	ok = true
	return &tunDevice{name: ifName, file: f}, nil
}

func (t *tunDevice) ReadPacket(buf []byte) (int, error) {
	return t.file.Read(buf)
}

func (t *tunDevice) WritePacket(pkt []byte) error {
	n, err := t.file.Write(pkt)
	if err != nil {
		return err
	}
	if n != len(pkt) {
		return fmt.Errorf("transport: short write to %s: wrote %d of %d bytes", t.name, n, len(pkt))
	}
	return nil
}

func (t *tunDevice) Close() error { return t.file.Close() }

// AssignOverlayAddress attaches a point-to-point /31 overlay address to an
// already-created TUN link. The caller supplies both the local and the peer
// address; nothing is derived from one to the other.
func AssignOverlayAddress(ifName string, local, peer net.IP) error {
	link, err := netlink.LinkByName(ifName)
	if err != nil {
		return fmt.Errorf("transport: lookup link %s: %w", ifName, err)
	}
	addr := &netlink.Addr{
		IPNet: &net.IPNet{IP: local, Mask: net.CIDRMask(31, 32)},
		Peer:  &net.IPNet{IP: peer, Mask: net.CIDRMask(31, 32)},
	}
	if err := netlink.AddrAdd(link, addr); err != nil {
		return fmt.Errorf("transport: add addr to %s: %w", ifName, err)
	}
	return nil
}
