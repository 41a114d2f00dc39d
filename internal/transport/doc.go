// Package transport provides the two external collaborators HackEngine reads
// from and writes to: the local tunnel endpoint (TUNNEL/LOCAL traffic) and
// the raw network socket (NETWORK traffic). Neither is part of the mangling
// pipeline itself — spec.md §1 scopes the engine to "given a packet in, a
// packet (or several, or none) out", leaving how packets physically arrive
// and leave to the caller. This package is that caller-side plumbing,
// grounded on client/doublezerod/internal/netlink/tunnel.go's device-naming
// style and tools/uping/pkg/uping/sender.go's raw-socket option handling.
package transport
