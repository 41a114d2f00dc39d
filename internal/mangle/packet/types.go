// Package packet owns the single IPv4 datagram representation the rest of
// the engine mutates: cached header offsets, the scramble-disposition
// metadata a plugin or finalize_packet attaches, and the byte-level surgery
// (resize, checksum fix/corrupt, option injection) original_source/Packet.cc
// performs. Ingest validation (I1–I3) reads the outer header with
// encoding/binary; gopacket/gopacket-layers are used only to decode the
// header quoted inside an ICMP TIME_EXCEEDED payload (icmp.go). The mutation
// routines below operate directly on the backing []byte because neither
// gopacket's SerializeLayers nor ComputeChecksums model "corrupt a checksum
// by a constant" or "insert raw NOP padding while preserving total length".
package packet

import "github.com/netshroud/shroud/internal/mangle/config"

// Source records where a packet entered the engine.
type Source uint8

const (
	SourceUnassigned Source = iota
	SourceTunnel
	SourceNetwork
	SourceLocal
	SourceTTLBforce
)

func (s Source) String() string {
	switch s {
	case SourceTunnel:
		return "tunnel"
	case SourceNetwork:
		return "network"
	case SourceLocal:
		return "local"
	case SourceTTLBforce:
		return "ttlbforce"
	default:
		return "unassigned"
	}
}

// Proto is the L4 protocol the packet carries, or OTHER_IP/fragment.
type Proto uint8

const (
	ProtoUnassigned Proto = iota
	ProtoTCP
	ProtoUDP
	ProtoICMP
	ProtoOtherIP
)

func (p Proto) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	case ProtoICMP:
		return "icmp"
	case ProtoOtherIP:
		return "other_ip"
	default:
		return "unassigned"
	}
}

// Judge is how a decoy is meant to be rejected by the remote peer. Irrelevant
// for GOOD packets.
type Judge uint8

const (
	JudgeUnassigned Judge = iota
	JudgePrescription
	JudgeInnocent
	JudgeGuilty
	JudgeMalformed
)

func (j Judge) String() string {
	switch j {
	case JudgePrescription:
		return "ttlexpire"
	case JudgeInnocent:
		return "innocent"
	case JudgeGuilty:
		return "badcksum"
	case JudgeMalformed:
		return "malformed"
	default:
		return "UNDEF-wtf"
	}
}

// Evil marks a real packet vs. a decoy. Named after the original's "evil
// bit", an RFC 3514 joke that survives as the field name.
type Evil uint8

const (
	Good Evil = iota
	EvilDecoy
)

// Position states where, relative to the original, a plugin-produced packet
// must sit in the queue.
type Position uint8

const (
	PositionUnassigned Position = iota
	Anticipation
	Posticipation
	AnyPosition
)

func (p Position) String() string {
	switch p {
	case Anticipation:
		return "anticipation"
	case Posticipation:
		return "posticipation"
	case AnyPosition:
		return "any"
	default:
		return "unassigned"
	}
}

// Chain states whether a plugin-produced packet may itself be re-mangled.
// Plugins currently only ever produce Final.
type Chain uint8

const (
	ChainUnassigned Chain = iota
	Final
	Rehackable
)

func (c Chain) String() string {
	switch c {
	case Final:
		return "final"
	case Rehackable:
		return "reHackable"
	default:
		return "UNDEF-chain"
	}
}

// QueueStatus is the lifecycle list a Buffer currently sits on, mirroring
// PacketQueue's three lists.
type QueueStatus uint8

const (
	QueueUnassigned QueueStatus = iota
	QueueYoung
	QueueKeep
	QueueSend
)

func (q QueueStatus) String() string {
	switch q {
	case QueueYoung:
		return "young"
	case QueueKeep:
		return "keep"
	case QueueSend:
		return "send"
	default:
		return "unassigned"
	}
}

// scramble is a local alias so this package doesn't need to repeat
// "config." at every call site in the mutation routines.
type scramble = config.Scramble
