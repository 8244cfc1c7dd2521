package flowmon

import (
	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
)

// FlowStats are the counters of one flow.
type FlowStats struct {
	TimeFirstTxPacket sim.VTimeInSec
	TimeFirstRxPacket sim.VTimeInSec
	TimeLastTxPacket  sim.VTimeInSec
	TimeLastRxPacket  sim.VTimeInSec

	// DelaySum is the sum of the end-to-end delays of the received packets.
	DelaySum sim.VTimeInSec

	// JitterSum is the sum of the delay differences between consecutive
	// received packets.
	JitterSum sim.VTimeInSec
	LastDelay sim.VTimeInSec

	TxBytes   uint64
	RxBytes   uint64
	TxPackets uint32
	RxPackets uint32

	// LostPackets counts the dropped packets and the packets not delivered
	// within the maximum per-hop delay.
	LostPackets    uint32
	TimesForwarded uint32

	// Indexed by packet.DropReason.
	PacketsDropped []uint32
	BytesDropped   []uint64

	DelayHistogram             Histogram
	JitterHistogram            Histogram
	PacketSizeHistogram        Histogram
	FlowInterruptionsHistogram Histogram
}

func (s *FlowStats) clone() FlowStats {
	c := *s
	c.PacketsDropped = append([]uint32(nil), s.PacketsDropped...)
	c.BytesDropped = append([]uint64(nil), s.BytesDropped...)
	c.DelayHistogram = s.DelayHistogram.clone()
	c.JitterHistogram = s.JitterHistogram.clone()
	c.PacketSizeHistogram = s.PacketSizeHistogram.clone()
	c.FlowInterruptionsHistogram = s.FlowInterruptionsHistogram.clone()

	return c
}

func (s *FlowStats) addDrop(reason packet.DropReason, size int) {
	for len(s.PacketsDropped) <= int(reason) {
		s.PacketsDropped = append(s.PacketsDropped, 0)
		s.BytesDropped = append(s.BytesDropped, 0)
	}

	s.PacketsDropped[reason]++
	s.BytesDropped[reason] += uint64(size)
}

// ProbeFlowStats are the counters one node keeps for a flow.
type ProbeFlowStats struct {
	FlowID FlowID

	// DelayFromFirstProbeSum sums, over the packets seen by this node, the
	// time elapsed since the packet was sent.
	DelayFromFirstProbeSum sim.VTimeInSec
	Bytes                  uint64
	Packets                uint32

	PacketsDropped []uint32
	BytesDropped   []uint64
}

func (s *ProbeFlowStats) addDrop(reason packet.DropReason, size int) {
	for len(s.PacketsDropped) <= int(reason) {
		s.PacketsDropped = append(s.PacketsDropped, 0)
		s.BytesDropped = append(s.BytesDropped, 0)
	}

	s.PacketsDropped[reason]++
	s.BytesDropped[reason] += uint64(size)
}

// Flow is the classified statistics of one flow.
type Flow struct {
	ID    FlowID
	Tuple packet.FiveTuple
	Stats FlowStats
}

// Probe is what one node observed.
type Probe struct {
	Index int
	Flows []ProbeFlowStats
}

// Statistics is a snapshot of a flow monitor, sorted by flow ID and probe
// index.
type Statistics struct {
	Flows  []Flow
	Probes []Probe
}
