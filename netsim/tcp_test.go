package netsim

import (
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hybridnet/mobility"
	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
)

type stubModel struct {
	pos mobility.Vector
}

func (m *stubModel) Position(sim.VTimeInSec) mobility.Vector { return m.pos }
func (m *stubModel) Velocity(sim.VTimeInSec) mobility.Vector { return mobility.Vector{} }

func udpTestPacket() *packet.Packet {
	return &packet.Packet{
		UID:      packet.NewUID(),
		Src:      netip.MustParseAddr("192.168.0.2"),
		Dst:      netip.MustParseAddr("10.1.1.2"),
		Protocol: packet.ProtocolUDP,
		DstPort:  9,
		Payload:  1024,
		TTL:      packet.DefaultTTL,
	}
}

var _ = Describe("TCP connection", func() {
	var (
		net    *Network
		client *Node
		remote netip.AddrPort
	)

	BeforeEach(func() {
		var topo *topology.Topology

		net, topo = buildNetwork(2, 1)
		client, _ = net.Node(topo.Registry.Clients()[0])
		remote = netip.AddrPortFrom(netip.MustParseAddr("10.1.1.2"), 9)
	})

	It("should send the SYN first", func() {
		c, err := client.tcpConnect(0, remote, 1000, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.state).To(Equal(tcpSynSent))
		Expect(c.timerArmed).To(BeTrue())
		Expect(client.deviceOn(topology.SegmentWireless).QueueLen()).To(BeZero())
	})

	It("should grow the window by one segment per ACK in slow start", func() {
		c := &tcpConn{
			node:     client,
			remote:   remote,
			state:    tcpEstablished,
			mss:      1000,
			cwnd:     1000,
			ssthresh: 1e9,
			rto:      tcpInitialRTO,
			sndUna:   1,
			sndNxt:   1001,
			sndMax:   1001,
		}

		Expect(c.newAck(0, 1001)).To(Succeed())

		Expect(c.cwnd).To(Equal(2000.0))
		Expect(c.sndUna).To(Equal(uint64(1001)))
	})

	It("should enter recovery after three duplicate ACKs", func() {
		c := &tcpConn{
			node:     client,
			remote:   remote,
			state:    tcpEstablished,
			mss:      1000,
			cwnd:     8000,
			ssthresh: 1e9,
			rto:      tcpInitialRTO,
			sndUna:   1,
			sndNxt:   8001,
			sndMax:   8001,
		}

		for i := 0; i < tcpDupAckLimit; i++ {
			Expect(c.dupAck(0)).To(Succeed())
		}

		Expect(c.inRecovery).To(BeTrue())
		Expect(c.ssthresh).To(Equal(4000.0))
		Expect(c.cwnd).To(Equal(7000.0))
		Expect(c.recover).To(Equal(uint64(8001)))
	})

	It("should go back to the first unacknowledged byte on timeout", func() {
		c := &tcpConn{
			node:            client,
			remote:          remote,
			state:           tcpEstablished,
			mss:             1000,
			cwnd:            8000,
			ssthresh:        1e9,
			rto:             tcpInitialRTO,
			sndUna:          1,
			sndNxt:          8001,
			sndMax:          8001,
			timerGeneration: 3,
		}

		Expect(c.Handle(newRetransmitTimeoutEvent(1, c, 3))).To(Succeed())

		Expect(c.cwnd).To(Equal(1000.0))
		Expect(c.ssthresh).To(Equal(4000.0))
		Expect(c.rto).To(Equal(2 * tcpInitialRTO))
		Expect(c.sndNxt).To(Equal(uint64(1001)))
	})

	It("should ignore stale timers", func() {
		c := &tcpConn{
			node:            client,
			state:           tcpEstablished,
			mss:             1000,
			cwnd:            8000,
			rto:             tcpInitialRTO,
			sndUna:          1,
			sndNxt:          8001,
			sndMax:          8001,
			timerGeneration: 4,
		}

		Expect(c.Handle(newRetransmitTimeoutEvent(1, c, 3))).To(Succeed())

		Expect(c.cwnd).To(Equal(8000.0))
	})

	It("should reassemble out-of-order segments", func() {
		var got []int

		c := &tcpConn{
			rcvNxt: 1,
			ooo:    make(map[uint64]int),
			onData: func(n int) { got = append(got, n) },
		}

		c.receiveData(&packet.Packet{Seq: 1001, Payload: 1000})
		Expect(got).To(BeEmpty())

		c.receiveData(&packet.Packet{Seq: 1, Payload: 1000})
		Expect(got).To(Equal([]int{1000, 1000}))
		Expect(c.rcvNxt).To(Equal(uint64(2001)))
	})
})
