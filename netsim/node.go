package netsim

import (
	"math/rand/v2"
	"net/netip"

	"github.com/sarchlab/hybridnet/mobility"
	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
)

// FirstEphemeralPort is the first local port handed to client sockets.
const FirstEphemeralPort = 49153

// Node is a host or a router of the simulated network.
type Node struct {
	id   topology.NodeID
	name string
	net  *Network
	rng  *rand.Rand

	mobility mobility.Model
	devices  []*NetDevice
	ipv4     *IPv4

	udpSockets   map[uint16]*udpSocket
	tcpListeners map[uint16]*tcpListener
	tcpConns     map[tcpKey]*tcpConn
	nextPort     uint16
}

func newNode(n topology.Node, net *Network) *Node {
	node := &Node{
		id:           n.ID,
		name:         n.Name,
		net:          net,
		rng:          rand.New(rand.NewPCG(net.seed, uint64(n.ID)+1)),
		udpSockets:   make(map[uint16]*udpSocket),
		tcpListeners: make(map[uint16]*tcpListener),
		tcpConns:     make(map[tcpKey]*tcpConn),
		nextPort:     FirstEphemeralPort,
	}
	node.ipv4 = newIPv4(node)

	return node
}

// ID returns the node ID.
func (n *Node) ID() topology.NodeID {
	return n.id
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.name
}

// IPv4 returns the network layer of the node.
func (n *Node) IPv4() *IPv4 {
	return n.ipv4
}

// Devices returns the devices of the node in installation order.
func (n *Node) Devices() []*NetDevice {
	return n.devices
}

// Position returns where the node is. Nodes without a mobility model stay at
// the origin.
func (n *Node) Position(now sim.VTimeInSec) mobility.Vector {
	if n.mobility == nil {
		return mobility.Vector{}
	}

	return n.mobility.Position(now)
}

func (n *Node) deviceOn(seg topology.Segment) *NetDevice {
	for _, d := range n.devices {
		if d.segment == seg {
			return d
		}
	}

	return nil
}

func (n *Node) ownsAddr(a netip.Addr) bool {
	for _, d := range n.devices {
		if d.addr == a {
			return true
		}
	}

	return false
}

func (n *Node) allocatePort() uint16 {
	for {
		p := n.nextPort
		n.nextPort++

		if n.nextPort == 0 {
			n.nextPort = FirstEphemeralPort
		}

		_, udpUsed := n.udpSockets[p]
		_, tcpUsed := n.tcpListeners[p]

		if !udpUsed && !tcpUsed {
			return p
		}
	}
}

// deliverLocal hands a packet addressed to this node to its transport.
func (n *Node) deliverLocal(now sim.VTimeInSec, pkt *packet.Packet) error {
	switch pkt.Protocol {
	case packet.ProtocolUDP:
		if s, ok := n.udpSockets[pkt.DstPort]; ok {
			s.receive(now, pkt)
		}

		return nil
	case packet.ProtocolTCP:
		return n.tcpReceive(now, pkt)
	default:
		return nil
	}
}
