package netsim

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
)

// ErrNoRoute is returned when a node sends to a destination it has no route
// for.
var ErrNoRoute = errors.New("no route to host")

type route struct {
	prefix  netip.Prefix
	dev     *NetDevice
	gateway netip.Addr
}

// IPv4 is the network layer of a node. It reports every packet it sends,
// forwards, delivers or drops to its hooks.
type IPv4 struct {
	*sim.HookableBase

	node   *Node
	routes []route
}

func newIPv4(n *Node) *IPv4 {
	return &IPv4{
		HookableBase: sim.NewHookableBase(),
		node:         n,
	}
}

// Name returns the name of the stack.
func (s *IPv4) Name() string {
	return s.node.name + ".IPv4"
}

// NumRoutes returns the size of the routing table.
func (s *IPv4) NumRoutes() int {
	return len(s.routes)
}

func (s *IPv4) lookup(dst netip.Addr) (route, bool) {
	best := -1

	for i, r := range s.routes {
		if !r.prefix.Contains(dst) {
			continue
		}

		if best < 0 || r.prefix.Bits() > s.routes[best].prefix.Bits() {
			best = i
		}
	}

	if best < 0 {
		return route{}, false
	}

	return s.routes[best], true
}

func (s *IPv4) invoke(
	now sim.VTimeInSec,
	pos *sim.HookPos,
	pkt *packet.Packet,
	reason packet.DropReason,
) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Now:    now,
		Pos:    pos,
		Item:   pkt,
		Detail: packet.Observation{Node: int(s.node.id), Reason: reason},
	})
}

// send originates a packet from this node.
func (s *IPv4) send(now sim.VTimeInSec, pkt *packet.Packet) error {
	r, ok := s.lookup(pkt.Dst)
	if !ok {
		return fmt.Errorf("%s: %w %s", s.node.name, ErrNoRoute, pkt.Dst)
	}

	if !pkt.Src.IsValid() {
		pkt.Src = r.dev.addr
	}

	if pkt.TTL == 0 {
		pkt.TTL = packet.DefaultTTL
	}

	s.invoke(now, packet.HookPosSend, pkt, 0)
	s.output(now, pkt, r)

	return nil
}

func (s *IPv4) output(now sim.VTimeInSec, pkt *packet.Packet, r route) {
	nextHop := pkt.Dst
	if r.gateway.IsValid() {
		nextHop = r.gateway
	}

	r.dev.send(now, pkt, nextHop)
}

// receive handles a packet arriving on one of the node's devices.
func (s *IPv4) receive(now sim.VTimeInSec, pkt *packet.Packet, _ *NetDevice) error {
	if s.node.ownsAddr(pkt.Dst) {
		s.invoke(now, packet.HookPosLocalDeliver, pkt, 0)
		return s.node.deliverLocal(now, pkt)
	}

	pkt.TTL--
	if pkt.TTL == 0 {
		s.drop(now, pkt, packet.DropTTLExpired)
		return nil
	}

	r, ok := s.lookup(pkt.Dst)
	if !ok {
		s.drop(now, pkt, packet.DropNoRoute)
		return nil
	}

	s.invoke(now, packet.HookPosForward, pkt, 0)
	s.output(now, pkt, r)

	return nil
}

func (s *IPv4) drop(now sim.VTimeInSec, pkt *packet.Packet, reason packet.DropReason) {
	s.invoke(now, packet.HookPosDrop, pkt, reason)
}
