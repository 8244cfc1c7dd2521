package netsim

import (
	"fmt"
	"net/netip"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
)

// frame is a packet in transit between two devices of a medium.
type frame struct {
	pkt  *packet.Packet
	from *NetDevice
	to   *NetDevice
}

// transmission is what a physical layer decides for one frame.
type transmission struct {
	// busy is how long the medium stays occupied.
	busy sim.VTimeInSec

	// arrival is when the frame reaches the receiver, relative to the start.
	arrival sim.VTimeInSec

	lost bool
}

// phy models how frames cross a medium.
type phy interface {
	transmit(f *frame, now sim.VTimeInSec) transmission
}

// medium is a channel shared by several devices. Only one frame is on the
// medium at a time. Devices with queued frames take turns.
type medium struct {
	name   string
	engine sim.Engine
	phy    phy

	devices []*NetDevice
	byAddr  map[netip.Addr]*NetDevice

	busy bool
	turn int
}

func newMedium(name string, engine sim.Engine, p phy) *medium {
	return &medium{
		name:   name,
		engine: engine,
		phy:    p,
		byAddr: make(map[netip.Addr]*NetDevice),
	}
}

// Name returns the name of the medium.
func (m *medium) Name() string {
	return m.name
}

func (m *medium) attach(d *NetDevice) {
	m.devices = append(m.devices, d)
}

func (m *medium) bind(d *NetDevice, addr netip.Addr) error {
	if other, found := m.byAddr[addr]; found && other != d {
		return fmt.Errorf("address %s already used on %s by %s",
			addr, m.name, other.node.name)
	}

	m.byAddr[addr] = d

	return nil
}

func (m *medium) neighbor(addr netip.Addr) (*NetDevice, bool) {
	d, ok := m.byAddr[addr]
	return d, ok
}

// Handle handles the arrival and idle events of the medium.
func (m *medium) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *frameArrivalEvent:
		return m.arrive(e)
	case *mediumIdleEvent:
		m.busy = false
		m.startNext(e.Time())

		return nil
	default:
		return fmt.Errorf("%s cannot handle %T", m.name, e)
	}
}

func (m *medium) arrive(e *frameArrivalEvent) error {
	f := e.frame

	if e.lost {
		f.from.node.ipv4.drop(e.Time(), f.pkt, packet.DropChannelLoss)
		return nil
	}

	return f.to.node.ipv4.receive(e.Time(), f.pkt, f.to)
}

// notify tells the medium that a device has a frame to send.
func (m *medium) notify(now sim.VTimeInSec) {
	if !m.busy {
		m.startNext(now)
	}
}

func (m *medium) startNext(now sim.VTimeInSec) {
	n := len(m.devices)

	for i := 0; i < n; i++ {
		d := m.devices[(m.turn+i)%n]
		if len(d.queue) == 0 {
			continue
		}

		m.turn = (m.turn + i + 1) % n
		m.transmit(now, d.dequeue())

		return
	}
}

func (m *medium) transmit(now sim.VTimeInSec, f *frame) {
	m.busy = true

	tx := m.phy.transmit(f, now)

	m.engine.Schedule(newFrameArrivalEvent(now+tx.arrival, m, f, tx.lost))
	m.engine.Schedule(newMediumIdleEvent(now+tx.busy, m))
}
