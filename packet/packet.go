// Package packet defines the IPv4 datagrams exchanged by the simulated nodes
// and the hook positions at which the network stack reports them.
package packet

import (
	"fmt"
	"net/netip"
	"sync/atomic"

	"github.com/sarchlab/hybridnet/sim"
)

// Protocol is the IPv4 protocol number.
type Protocol uint8

// Transport protocols carried by the network.
const (
	ProtocolTCP Protocol = 6
	ProtocolUDP Protocol = 17
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	default:
		return fmt.Sprintf("proto(%d)", uint8(p))
	}
}

// Header sizes in bytes.
const (
	IPv4HeaderSize = 20
	UDPHeaderSize  = 8
	TCPHeaderSize  = 20
	DefaultTTL     = 64
)

// TCPFlags holds the control bits of a TCP segment.
type TCPFlags uint8

// TCP control bits used by the stack.
const (
	FlagSYN TCPFlags = 1 << iota
	FlagACK
)

// Has tells if all the bits in f are set.
func (fl TCPFlags) Has(f TCPFlags) bool {
	return fl&f == f
}

// FiveTuple identifies a flow.
type FiveTuple struct {
	Src      netip.Addr
	Dst      netip.Addr
	Protocol Protocol
	SrcPort  uint16
	DstPort  uint16
}

func (t FiveTuple) String() string {
	return fmt.Sprintf("%s %s:%d -> %s:%d",
		t.Protocol, t.Src, t.SrcPort, t.Dst, t.DstPort)
}

// Packet is an IPv4 datagram carrying a UDP datagram or a TCP segment.
type Packet struct {
	UID      uint64
	Src      netip.Addr
	Dst      netip.Addr
	Protocol Protocol
	SrcPort  uint16
	DstPort  uint16
	TTL      uint8

	// Payload is the number of application bytes carried.
	Payload int

	// TCP only.
	Seq   uint64
	Ack   uint64
	Flags TCPFlags
}

var nextUID atomic.Uint64

// NewUID returns a process-wide unique packet ID.
func NewUID() uint64 {
	return nextUID.Add(1)
}

// Size returns the size of the datagram including the IPv4 and transport
// headers.
func (p *Packet) Size() int {
	switch p.Protocol {
	case ProtocolTCP:
		return IPv4HeaderSize + TCPHeaderSize + p.Payload
	case ProtocolUDP:
		return IPv4HeaderSize + UDPHeaderSize + p.Payload
	default:
		return IPv4HeaderSize + p.Payload
	}
}

// Tuple returns the flow key of the packet.
func (p *Packet) Tuple() FiveTuple {
	return FiveTuple{
		Src:      p.Src,
		Dst:      p.Dst,
		Protocol: p.Protocol,
		SrcPort:  p.SrcPort,
		DstPort:  p.DstPort,
	}
}

// Clone returns a copy of the packet with the same UID.
func (p *Packet) Clone() *Packet {
	c := *p
	return &c
}

// DropReason tells why the stack discarded a packet.
type DropReason int

// Reasons for dropping a packet.
const (
	DropNoRoute DropReason = iota
	DropTTLExpired
	DropQueueFull
	DropChannelLoss
	numDropReasons
)

// NumDropReasons is the number of distinct drop reasons.
const NumDropReasons = int(numDropReasons)

func (r DropReason) String() string {
	switch r {
	case DropNoRoute:
		return "NoRoute"
	case DropTTLExpired:
		return "TtlExpired"
	case DropQueueFull:
		return "QueueFull"
	case DropChannelLoss:
		return "ChannelLoss"
	default:
		return fmt.Sprintf("drop(%d)", int(r))
	}
}

// Hook positions of the IPv4 stack. The hook item is always a *Packet and the
// hook detail is always an Observation.
var (
	// HookPosSend triggers when the originating node sends a packet.
	HookPosSend = &sim.HookPos{Name: "IPv4Send"}

	// HookPosForward triggers when an intermediate node forwards a packet.
	HookPosForward = &sim.HookPos{Name: "IPv4Forward"}

	// HookPosLocalDeliver triggers when the destination receives a packet.
	HookPosLocalDeliver = &sim.HookPos{Name: "IPv4LocalDeliver"}

	// HookPosDrop triggers when a packet is discarded.
	HookPosDrop = &sim.HookPos{Name: "IPv4Drop"}
)

// Observation tells where a packet was seen.
type Observation struct {
	// Node is the index of the node whose stack reports the packet.
	Node int

	// Reason is only meaningful at HookPosDrop.
	Reason DropReason
}
