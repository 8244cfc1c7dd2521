package flowmon

import (
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
)

func udpPacket(srcPort uint16) *packet.Packet {
	return &packet.Packet{
		UID:      packet.NewUID(),
		Src:      netip.MustParseAddr("192.168.0.2"),
		Dst:      netip.MustParseAddr("10.1.1.10"),
		Protocol: packet.ProtocolUDP,
		SrcPort:  srcPort,
		DstPort:  9,
		Payload:  1024,
	}
}

func observe(
	m *Monitor,
	now sim.VTimeInSec,
	pos *sim.HookPos,
	node int,
	p *packet.Packet,
) {
	m.Func(sim.HookCtx{
		Now:    now,
		Pos:    pos,
		Item:   p,
		Detail: packet.Observation{Node: node},
	})
}

var _ = Describe("Monitor", func() {
	var m *Monitor

	BeforeEach(func() {
		m = NewMonitor()
	})

	It("should ignore items that are not packets", func() {
		m.Func(sim.HookCtx{Pos: packet.HookPosSend, Item: 42})
		Expect(m.NumFlows()).To(BeZero())
	})

	It("should classify by 5-tuple", func() {
		observe(m, 1, packet.HookPosSend, 10, udpPacket(49153))
		observe(m, 1, packet.HookPosSend, 10, udpPacket(49153))
		observe(m, 1, packet.HookPosSend, 11, udpPacket(49154))

		s := m.Statistics()
		Expect(s.Flows).To(HaveLen(2))
		Expect(s.Flows[0].ID).To(Equal(FlowID(1)))
		Expect(s.Flows[0].Stats.TxPackets).To(Equal(uint32(2)))
		Expect(s.Flows[1].Tuple.SrcPort).To(Equal(uint16(49154)))
	})

	It("should measure delay, jitter and forwarding", func() {
		p1 := udpPacket(49153)
		p2 := udpPacket(49153)

		observe(m, 1.0, packet.HookPosSend, 10, p1)
		observe(m, 1.001, packet.HookPosForward, 0, p1)
		observe(m, 1.004, packet.HookPosLocalDeliver, 9, p1)

		observe(m, 2.0, packet.HookPosSend, 10, p2)
		observe(m, 2.001, packet.HookPosForward, 0, p2)
		observe(m, 2.006, packet.HookPosLocalDeliver, 9, p2)

		st := m.Statistics().Flows[0].Stats
		Expect(st.TxPackets).To(Equal(uint32(2)))
		Expect(st.RxPackets).To(Equal(uint32(2)))
		Expect(st.TxBytes).To(Equal(uint64(2 * 1052)))
		Expect(st.RxBytes).To(Equal(uint64(2 * 1052)))
		Expect(float64(st.DelaySum)).To(BeNumerically("~", 0.010, 1e-9))
		Expect(float64(st.JitterSum)).To(BeNumerically("~", 0.002, 1e-9))
		Expect(float64(st.LastDelay)).To(BeNumerically("~", 0.006, 1e-9))
		Expect(st.TimesForwarded).To(Equal(uint32(2)))
		Expect(st.TimeFirstTxPacket).To(Equal(sim.VTimeInSec(1.0)))
		Expect(st.TimeLastTxPacket).To(Equal(sim.VTimeInSec(2.0)))
		Expect(st.TimeFirstRxPacket).To(Equal(sim.VTimeInSec(1.004)))
		Expect(st.TimeLastRxPacket).To(Equal(sim.VTimeInSec(2.006)))
		Expect(st.FlowInterruptionsHistogram.Total()).To(Equal(uint64(1)))
		Expect(m.InFlight()).To(BeZero())
	})

	It("should count drops as lost", func() {
		p := udpPacket(49153)

		observe(m, 1.0, packet.HookPosSend, 10, p)
		m.Func(sim.HookCtx{
			Now:  1.5,
			Pos:  packet.HookPosDrop,
			Item: p,
			Detail: packet.Observation{
				Node:   0,
				Reason: packet.DropQueueFull,
			},
		})

		st := m.Statistics().Flows[0].Stats
		Expect(st.LostPackets).To(Equal(uint32(1)))
		Expect(st.PacketsDropped[packet.DropQueueFull]).To(Equal(uint32(1)))
		Expect(st.BytesDropped[packet.DropQueueFull]).To(Equal(uint64(1052)))
		Expect(m.InFlight()).To(BeZero())
	})

	It("should declare stale packets lost", func() {
		observe(m, 1.0, packet.HookPosSend, 10, udpPacket(49153))
		observe(m, 55.0, packet.HookPosSend, 10, udpPacket(49153))

		m.CheckForLostPackets(61)

		st := m.Statistics().Flows[0].Stats
		Expect(st.LostPackets).To(Equal(uint32(1)))
		Expect(m.InFlight()).To(Equal(1))
	})

	It("should ignore packets it never saw sent", func() {
		observe(m, 1.0, packet.HookPosLocalDeliver, 9, udpPacket(49153))
		Expect(m.Statistics().Flows).To(BeEmpty())
	})

	It("should keep per-node probe counters", func() {
		p := udpPacket(49153)

		observe(m, 1.0, packet.HookPosSend, 10, p)
		observe(m, 1.001, packet.HookPosForward, 0, p)
		observe(m, 1.004, packet.HookPosLocalDeliver, 9, p)

		probes := m.Statistics().Probes
		Expect(probes).To(HaveLen(3))
		Expect(probes[0].Index).To(Equal(0))
		Expect(probes[0].Flows[0].Packets).To(Equal(uint32(1)))
		Expect(float64(probes[0].Flows[0].DelayFromFirstProbeSum)).
			To(BeNumerically("~", 0.001, 1e-9))
		Expect(probes[2].Index).To(Equal(10))
		Expect(probes[2].Flows[0].DelayFromFirstProbeSum).To(BeZero())
	})
})
