package netsim

import (
	"net/netip"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
)

// Queue limits of the devices, in packets.
const (
	CsmaQueueLimit = 100
	WifiQueueLimit = 500
)

// NetDevice connects a node to a medium.
type NetDevice struct {
	node    *Node
	segment topology.Segment
	medium  *medium

	addr   netip.Addr
	prefix netip.Prefix

	queue      []*frame
	queueLimit int
}

// Addr returns the address assigned to the device.
func (d *NetDevice) Addr() netip.Addr {
	return d.addr
}

// Segment returns the segment the device is attached to.
func (d *NetDevice) Segment() topology.Segment {
	return d.segment
}

// QueueLen returns the number of frames waiting for the medium.
func (d *NetDevice) QueueLen() int {
	return len(d.queue)
}

// send queues a packet for the neighbor owning nextHop.
func (d *NetDevice) send(now sim.VTimeInSec, pkt *packet.Packet, nextHop netip.Addr) {
	to, ok := d.medium.neighbor(nextHop)
	if !ok {
		d.node.ipv4.drop(now, pkt, packet.DropNoRoute)
		return
	}

	if len(d.queue) >= d.queueLimit {
		d.node.ipv4.drop(now, pkt, packet.DropQueueFull)
		return
	}

	d.queue = append(d.queue, &frame{pkt: pkt, from: d, to: to})
	d.medium.notify(now)
}

func (d *NetDevice) dequeue() *frame {
	f := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]

	return f
}
