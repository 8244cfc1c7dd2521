package netsim

import (
	"fmt"
	"net/netip"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
)

type udpSocket struct {
	node   *Node
	port   uint16
	onRecv func(now sim.VTimeInSec, pkt *packet.Packet)
}

func (n *Node) udpBind(port uint16) (*udpSocket, error) {
	if port == 0 {
		port = n.allocatePort()
	}

	if _, used := n.udpSockets[port]; used {
		return nil, fmt.Errorf("%s: udp port %d already bound", n.name, port)
	}

	s := &udpSocket{node: n, port: port}
	n.udpSockets[port] = s

	return s, nil
}

func (s *udpSocket) close() {
	if s.node.udpSockets[s.port] == s {
		delete(s.node.udpSockets, s.port)
	}
}

func (s *udpSocket) sendTo(now sim.VTimeInSec, remote netip.AddrPort, payload int) error {
	pkt := &packet.Packet{
		UID:      packet.NewUID(),
		Dst:      remote.Addr(),
		Protocol: packet.ProtocolUDP,
		SrcPort:  s.port,
		DstPort:  remote.Port(),
		Payload:  payload,
	}

	return s.node.ipv4.send(now, pkt)
}

func (s *udpSocket) receive(now sim.VTimeInSec, pkt *packet.Packet) {
	if s.onRecv != nil {
		s.onRecv(now, pkt)
	}
}
