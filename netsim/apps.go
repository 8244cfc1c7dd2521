package netsim

import (
	"errors"
	"fmt"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/traffic"
)

// Application is a traffic role running on a node.
type Application interface {
	sim.Handler

	// Name returns the name of the application.
	Name() string

	// Node returns the node running the application.
	Node() *Node
}

// PacketSink counts the bytes received on a local port.
type PacketSink struct {
	node *Node
	cfg  traffic.Sink

	sock    *udpSocket
	running bool
	totalRx uint64
}

// Name returns the name of the sink.
func (a *PacketSink) Name() string {
	return fmt.Sprintf("%s.PacketSink[%s/%d]",
		a.node.name, a.cfg.Protocol, a.cfg.Local.Port())
}

// Node returns the node hosting the sink.
func (a *PacketSink) Node() *Node {
	return a.node
}

// TotalRx returns the number of payload bytes received so far.
func (a *PacketSink) TotalRx() uint64 {
	return a.totalRx
}

// Handle starts and stops the sink.
func (a *PacketSink) Handle(e sim.Event) error {
	evt, ok := e.(*appEvent)
	if !ok {
		return fmt.Errorf("%s cannot handle %T", a.Name(), e)
	}

	switch evt.action {
	case appStart:
		return a.start()
	case appStop:
		a.stop()
	}

	return nil
}

func (a *PacketSink) start() error {
	port := a.cfg.Local.Port()

	switch a.cfg.Protocol {
	case packet.ProtocolUDP:
		sock, err := a.node.udpBind(port)
		if err != nil {
			return err
		}

		sock.onRecv = func(_ sim.VTimeInSec, pkt *packet.Packet) {
			a.totalRx += uint64(pkt.Payload)
		}
		a.sock = sock
	case packet.ProtocolTCP:
		err := a.node.tcpListen(port, func(n int) {
			a.totalRx += uint64(n)
		})
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%s: unsupported protocol %s", a.Name(), a.cfg.Protocol)
	}

	a.running = true

	return nil
}

func (a *PacketSink) stop() {
	if !a.running {
		return
	}

	a.running = false

	if a.sock != nil {
		a.sock.close()
		a.sock = nil

		return
	}

	a.node.tcpUnlisten(a.cfg.Local.Port())
}

// OnOffApplication sends fixed-size UDP packets at a constant rate during
// its on periods.
type OnOffApplication struct {
	node *Node
	cfg  traffic.OnOff

	sock    *udpSocket
	running bool
	onUntil sim.VTimeInSec

	txPackets uint64
	noRoute   uint64
}

// Name returns the name of the source.
func (a *OnOffApplication) Name() string {
	return fmt.Sprintf("%s.OnOff[%s]", a.node.name, a.cfg.Remote)
}

// Node returns the sending node.
func (a *OnOffApplication) Node() *Node {
	return a.node
}

// TxPackets returns the number of packets handed to the network layer.
func (a *OnOffApplication) TxPackets() uint64 {
	return a.txPackets
}

// Handle runs the life cycle of the source.
func (a *OnOffApplication) Handle(e sim.Event) error {
	evt, ok := e.(*appEvent)
	if !ok {
		return fmt.Errorf("%s cannot handle %T", a.Name(), e)
	}

	now := evt.Time()

	switch evt.action {
	case appStart:
		return a.start(now)
	case appStop:
		a.stop()
	case appSend:
		return a.send(now)
	}

	return nil
}

func (a *OnOffApplication) start(now sim.VTimeInSec) error {
	sock, err := a.node.udpBind(0)
	if err != nil {
		return err
	}

	a.sock = sock
	a.running = true
	a.onUntil = now + a.cfg.OnTime
	a.scheduleNext(now)

	return nil
}

func (a *OnOffApplication) stop() {
	if !a.running {
		return
	}

	a.running = false
	a.sock.close()
}

func (a *OnOffApplication) scheduleNext(now sim.VTimeInSec) {
	next := now + a.cfg.Interval()

	if a.cfg.OffTime > 0 {
		for next > a.onUntil {
			next += a.cfg.OffTime
			a.onUntil += a.cfg.OffTime + a.cfg.OnTime
		}
	}

	if next >= a.cfg.Active.Stop {
		return
	}

	a.node.net.engine.Schedule(newAppEvent(next, a, appSend))
}

func (a *OnOffApplication) send(now sim.VTimeInSec) error {
	if !a.running {
		return nil
	}

	err := a.sock.sendTo(now, a.cfg.Remote, a.cfg.PacketSize)

	switch {
	case errors.Is(err, ErrNoRoute):
		a.noRoute++
	case err != nil:
		return err
	default:
		a.txPackets++
	}

	a.scheduleNext(now)

	return nil
}

// BulkSendApplication fills a TCP connection for as long as it runs.
type BulkSendApplication struct {
	node *Node
	cfg  traffic.BulkSend
	conn *tcpConn
}

// Name returns the name of the source.
func (a *BulkSendApplication) Name() string {
	return fmt.Sprintf("%s.BulkSend[%s]", a.node.name, a.cfg.Remote)
}

// Node returns the sending node.
func (a *BulkSendApplication) Node() *Node {
	return a.node
}

// Handle opens the connection on start and closes it on stop.
func (a *BulkSendApplication) Handle(e sim.Event) error {
	evt, ok := e.(*appEvent)
	if !ok {
		return fmt.Errorf("%s cannot handle %T", a.Name(), e)
	}

	switch evt.action {
	case appStart:
		conn, err := a.node.tcpConnect(
			evt.Time(), a.cfg.Remote, a.cfg.SegmentSize, a.cfg.MaxBytes)
		if errors.Is(err, ErrNoRoute) {
			return nil
		}

		if err != nil {
			return err
		}

		a.conn = conn
	case appStop:
		if a.conn != nil {
			a.conn.close()
		}
	}

	return nil
}

func newApplication(node *Node, app traffic.Application) (Application, error) {
	switch app := app.(type) {
	case traffic.Sink:
		return &PacketSink{node: node, cfg: app}, nil
	case traffic.OnOff:
		if app.DataRate <= 0 || app.PacketSize <= 0 {
			return nil, fmt.Errorf("onoff on %s: rate and packet size must be positive",
				node.name)
		}

		return &OnOffApplication{node: node, cfg: app}, nil
	case traffic.BulkSend:
		if app.SegmentSize <= 0 {
			return nil, fmt.Errorf("bulksend on %s: segment size must be positive",
				node.name)
		}

		return &BulkSendApplication{node: node, cfg: app}, nil
	default:
		return nil, fmt.Errorf("unsupported application %T", app)
	}
}
