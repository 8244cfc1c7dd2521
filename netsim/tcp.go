package netsim

import (
	"fmt"
	"math"
	"net/netip"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
)

// TCP parameters.
const (
	tcpInitialRTO    = sim.VTimeInSec(1)
	tcpMinRTO        = sim.VTimeInSec(1)
	tcpMaxRTO        = sim.VTimeInSec(60)
	tcpSynRetries    = 6
	tcpReceiveWindow = 131072
	tcpDupAckLimit   = 3
)

type tcpState int

const (
	tcpSynSent tcpState = iota
	tcpSynReceived
	tcpEstablished
	tcpClosed
)

type tcpKey struct {
	localPort uint16
	remote    netip.AddrPort
}

type tcpListener struct {
	port   uint16
	onData func(bytes int)
}

// tcpConn is one end of a TCP connection. The active end sends bulk data
// with slow start, congestion avoidance, fast retransmit and a go-back-N
// retransmission timeout. The passive end acknowledges every segment.
type tcpConn struct {
	node   *Node
	local  uint16
	remote netip.AddrPort
	state  tcpState
	mss    int

	// Sender side. Sequence number 0 is the SYN.
	limit      uint64
	sndUna     uint64
	sndNxt     uint64
	sndMax     uint64
	cwnd       float64
	ssthresh   float64
	dupAcks    int
	inRecovery bool
	recover    uint64
	synRetries int

	rto      sim.VTimeInSec
	srtt     sim.VTimeInSec
	rttvar   sim.VTimeInSec
	timing   bool
	rttSeq   uint64
	rttStart sim.VTimeInSec

	timerGeneration uint64
	timerArmed      bool

	// Receiver side.
	rcvNxt uint64
	ooo    map[uint64]int
	onData func(bytes int)
}

// Name returns the name of the connection.
func (c *tcpConn) Name() string {
	return fmt.Sprintf("%s.TCP[%d->%s]", c.node.name, c.local, c.remote)
}

func (n *Node) tcpListen(port uint16, onData func(int)) error {
	if _, used := n.tcpListeners[port]; used {
		return fmt.Errorf("%s: tcp port %d already listening", n.name, port)
	}

	n.tcpListeners[port] = &tcpListener{port: port, onData: onData}

	return nil
}

func (n *Node) tcpUnlisten(port uint16) {
	delete(n.tcpListeners, port)

	for k, c := range n.tcpConns {
		if k.localPort == port {
			c.state = tcpClosed
			delete(n.tcpConns, k)
		}
	}
}

// tcpConnect opens a connection that sends limit bytes, or an unbounded
// stream when limit is zero.
func (n *Node) tcpConnect(
	now sim.VTimeInSec,
	remote netip.AddrPort,
	mss int,
	limit uint64,
) (*tcpConn, error) {
	c := &tcpConn{
		node:     n,
		local:    n.allocatePort(),
		remote:   remote,
		state:    tcpSynSent,
		mss:      mss,
		limit:    limit,
		cwnd:     float64(mss),
		ssthresh: math.MaxFloat64,
		rto:      tcpInitialRTO,
	}
	n.tcpConns[tcpKey{c.local, remote}] = c

	if err := c.sendSegment(now, 0, 0, packet.FlagSYN); err != nil {
		return nil, err
	}

	c.armTimer(now)

	return c, nil
}

func (n *Node) tcpReceive(now sim.VTimeInSec, pkt *packet.Packet) error {
	remote := netip.AddrPortFrom(pkt.Src, pkt.SrcPort)
	key := tcpKey{pkt.DstPort, remote}

	c, ok := n.tcpConns[key]
	if !ok {
		l, listening := n.tcpListeners[pkt.DstPort]
		if !listening || !pkt.Flags.Has(packet.FlagSYN) {
			return nil
		}

		c = &tcpConn{
			node:   n,
			local:  pkt.DstPort,
			remote: remote,
			state:  tcpSynReceived,
			rcvNxt: pkt.Seq + 1,
			ooo:    make(map[uint64]int),
			onData: l.onData,
		}
		n.tcpConns[key] = c
	}

	return c.receive(now, pkt)
}

func (c *tcpConn) sendSegment(
	now sim.VTimeInSec,
	seq uint64,
	payload int,
	flags packet.TCPFlags,
) error {
	pkt := &packet.Packet{
		UID:      packet.NewUID(),
		Dst:      c.remote.Addr(),
		Protocol: packet.ProtocolTCP,
		SrcPort:  c.local,
		DstPort:  c.remote.Port(),
		Payload:  payload,
		Seq:      seq,
		Ack:      c.rcvNxt,
		Flags:    flags,
	}

	return c.node.ipv4.send(now, pkt)
}

func (c *tcpConn) receive(now sim.VTimeInSec, pkt *packet.Packet) error {
	switch c.state {
	case tcpClosed:
		return nil
	case tcpSynSent:
		if !pkt.Flags.Has(packet.FlagSYN | packet.FlagACK) {
			return nil
		}

		return c.established(now, pkt)
	case tcpSynReceived:
		if pkt.Flags.Has(packet.FlagSYN) {
			return c.sendSegment(now, 0, 0, packet.FlagSYN|packet.FlagACK)
		}

		c.state = tcpEstablished
	}

	if pkt.Payload > 0 {
		c.receiveData(pkt)
		return c.sendSegment(now, c.sndNxt, 0, packet.FlagACK)
	}

	if pkt.Flags.Has(packet.FlagSYN) {
		return nil
	}

	return c.receiveAck(now, pkt)
}

func (c *tcpConn) established(now sim.VTimeInSec, pkt *packet.Packet) error {
	c.state = tcpEstablished
	c.rcvNxt = pkt.Seq + 1
	c.sndUna = 1
	c.sndNxt = 1
	c.sndMax = 1
	c.cancelTimer()

	if err := c.sendSegment(now, c.sndNxt, 0, packet.FlagACK); err != nil {
		return err
	}

	return c.trySend(now)
}

func (c *tcpConn) receiveData(pkt *packet.Packet) {
	switch {
	case pkt.Seq == c.rcvNxt:
		c.deliver(pkt.Payload)

		for {
			size, ok := c.ooo[c.rcvNxt]
			if !ok {
				break
			}

			delete(c.ooo, c.rcvNxt)
			c.deliver(size)
		}
	case pkt.Seq > c.rcvNxt:
		if _, ok := c.ooo[pkt.Seq]; !ok {
			c.ooo[pkt.Seq] = pkt.Payload
		}
	}
}

func (c *tcpConn) deliver(size int) {
	c.rcvNxt += uint64(size)

	if c.onData != nil {
		c.onData(size)
	}
}

func (c *tcpConn) inFlight() uint64 {
	return c.sndNxt - c.sndUna
}

func (c *tcpConn) receiveAck(now sim.VTimeInSec, pkt *packet.Packet) error {
	ack := pkt.Ack

	switch {
	case ack > c.sndUna && ack <= c.sndMax:
		return c.newAck(now, ack)
	case ack == c.sndUna && c.sndMax > c.sndUna:
		return c.dupAck(now)
	default:
		return nil
	}
}

func (c *tcpConn) newAck(now sim.VTimeInSec, ack uint64) error {
	acked := float64(ack - c.sndUna)

	if c.timing && ack >= c.rttSeq {
		c.updateRTO(now - c.rttStart)
		c.timing = false
	}

	c.sndUna = ack
	if c.sndNxt < c.sndUna {
		c.sndNxt = c.sndUna
	}

	c.dupAcks = 0

	switch {
	case c.inRecovery && ack >= c.recover:
		c.inRecovery = false
		c.cwnd = c.ssthresh
	case c.inRecovery:
		if err := c.retransmit(now, c.sndUna); err != nil {
			return err
		}

		c.cwnd = math.Max(c.cwnd-acked+float64(c.mss), float64(c.mss))
	case c.cwnd < c.ssthresh:
		c.cwnd += math.Min(acked, float64(c.mss))
	default:
		c.cwnd += float64(c.mss) * float64(c.mss) / c.cwnd
	}

	if c.sndUna == c.sndMax {
		c.cancelTimer()
	} else {
		c.armTimer(now)
	}

	return c.trySend(now)
}

func (c *tcpConn) dupAck(now sim.VTimeInSec) error {
	c.dupAcks++

	switch {
	case c.dupAcks == tcpDupAckLimit && !c.inRecovery:
		c.ssthresh = math.Max(float64(c.inFlight())/2, 2*float64(c.mss))
		c.recover = c.sndMax
		c.inRecovery = true
		c.cwnd = c.ssthresh + tcpDupAckLimit*float64(c.mss)

		return c.retransmit(now, c.sndUna)
	case c.dupAcks > tcpDupAckLimit && c.inRecovery:
		c.cwnd += float64(c.mss)
		return c.trySend(now)
	}

	return nil
}

func (c *tcpConn) retransmit(now sim.VTimeInSec, seq uint64) error {
	size := c.segmentSize(seq, c.sndMax)
	if size <= 0 {
		return nil
	}

	c.timing = false

	return c.sendSegment(now, seq, size, packet.FlagACK)
}

func (c *tcpConn) segmentSize(seq, end uint64) int {
	if seq >= end {
		return 0
	}

	return int(min(uint64(c.mss), end-seq))
}

func (c *tcpConn) dataEnd() uint64 {
	if c.limit == 0 {
		return math.MaxUint64
	}

	return c.limit + 1
}

func (c *tcpConn) trySend(now sim.VTimeInSec) error {
	if c.state != tcpEstablished {
		return nil
	}

	window := math.Min(c.cwnd, tcpReceiveWindow)

	for {
		size := c.segmentSize(c.sndNxt, c.dataEnd())
		if size == 0 {
			return nil
		}

		if c.inFlight() > 0 && float64(c.inFlight())+float64(size) > window {
			return nil
		}

		if err := c.sendSegment(now, c.sndNxt, size, packet.FlagACK); err != nil {
			return err
		}

		if !c.timing && c.sndNxt >= c.sndMax {
			c.timing = true
			c.rttSeq = c.sndNxt + uint64(size)
			c.rttStart = now
		}

		c.sndNxt += uint64(size)
		if c.sndNxt > c.sndMax {
			c.sndMax = c.sndNxt
		}

		if !c.timerArmed {
			c.armTimer(now)
		}
	}
}

func (c *tcpConn) updateRTO(sample sim.VTimeInSec) {
	if c.srtt == 0 {
		c.srtt = sample
		c.rttvar = sample / 2
	} else {
		diff := sim.VTimeInSec(math.Abs(float64(c.srtt - sample)))
		c.rttvar = c.rttvar*3/4 + diff/4
		c.srtt = c.srtt*7/8 + sample/8
	}

	c.rto = max(tcpMinRTO, min(tcpMaxRTO, c.srtt+4*c.rttvar))
}

func (c *tcpConn) armTimer(now sim.VTimeInSec) {
	c.timerGeneration++
	c.timerArmed = true
	c.node.net.engine.Schedule(
		newRetransmitTimeoutEvent(now+c.rto, c, c.timerGeneration))
}

func (c *tcpConn) cancelTimer() {
	c.timerGeneration++
	c.timerArmed = false
}

// Handle fires the retransmission timer.
func (c *tcpConn) Handle(e sim.Event) error {
	evt, ok := e.(*retransmitTimeoutEvent)
	if !ok {
		return fmt.Errorf("%s cannot handle %T", c.Name(), e)
	}

	if evt.generation != c.timerGeneration || c.state == tcpClosed {
		return nil
	}

	c.timerArmed = false
	now := evt.Time()
	c.rto = min(2*c.rto, tcpMaxRTO)

	switch c.state {
	case tcpSynSent:
		c.synRetries++
		if c.synRetries > tcpSynRetries {
			c.state = tcpClosed
			return nil
		}

		if err := c.sendSegment(now, 0, 0, packet.FlagSYN); err != nil {
			return err
		}

		c.armTimer(now)

		return nil
	case tcpEstablished:
		if c.sndUna == c.sndMax {
			return nil
		}

		c.ssthresh = math.Max(float64(c.inFlight())/2, 2*float64(c.mss))
		c.cwnd = float64(c.mss)
		c.inRecovery = false
		c.dupAcks = 0
		c.timing = false
		c.sndNxt = c.sndUna

		return c.trySend(now)
	}

	return nil
}

// close stops sending new data. Segments still in flight are not
// retransmitted.
func (c *tcpConn) close() {
	c.state = tcpClosed
	c.cancelTimer()
}
