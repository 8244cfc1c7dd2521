// Package flowmon classifies the packets crossing the IPv4 stacks into flows
// and keeps per-flow counters.
package flowmon

import (
	"math"
	"sort"
	"sync"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
)

// Default monitor parameters.
const (
	DefaultMaxPerHopDelay            = sim.VTimeInSec(10)
	DefaultDelayBinWidth             = 0.001
	DefaultJitterBinWidth            = 0.001
	DefaultPacketSizeBinWidth        = 20
	DefaultFlowInterruptionsBinWidth = 0.25
	DefaultFlowInterruptionsMinTime  = sim.VTimeInSec(0.5)
)

type trackedPacket struct {
	flow           FlowID
	firstSeen      sim.VTimeInSec
	lastSeen       sim.VTimeInSec
	timesForwarded uint32
}

// Monitor is a hook that observes the IPv4 stacks of all nodes.
type Monitor struct {
	lock sync.Mutex

	classifier *Classifier
	flows      map[FlowID]*FlowStats
	tracked    map[uint64]*trackedPacket
	probes     map[int]map[FlowID]*ProbeFlowStats

	maxPerHopDelay            sim.VTimeInSec
	delayBinWidth             float64
	jitterBinWidth            float64
	packetSizeBinWidth        float64
	flowInterruptionsBinWidth float64
	flowInterruptionsMinTime  sim.VTimeInSec
}

// NewMonitor creates a monitor with the default parameters.
func NewMonitor() *Monitor {
	return &Monitor{
		classifier:                NewClassifier(),
		flows:                     make(map[FlowID]*FlowStats),
		tracked:                   make(map[uint64]*trackedPacket),
		probes:                    make(map[int]map[FlowID]*ProbeFlowStats),
		maxPerHopDelay:            DefaultMaxPerHopDelay,
		delayBinWidth:             DefaultDelayBinWidth,
		jitterBinWidth:            DefaultJitterBinWidth,
		packetSizeBinWidth:        DefaultPacketSizeBinWidth,
		flowInterruptionsBinWidth: DefaultFlowInterruptionsBinWidth,
		flowInterruptionsMinTime:  DefaultFlowInterruptionsMinTime,
	}
}

// WithMaxPerHopDelay sets the time after which an undelivered packet counts
// as lost.
func (m *Monitor) WithMaxPerHopDelay(d sim.VTimeInSec) *Monitor {
	m.maxPerHopDelay = d
	return m
}

// Func dispatches the IPv4 hook invocations.
func (m *Monitor) Func(ctx sim.HookCtx) {
	pkt, ok := ctx.Item.(*packet.Packet)
	if !ok {
		return
	}

	obs, _ := ctx.Detail.(packet.Observation)

	m.lock.Lock()
	defer m.lock.Unlock()

	switch ctx.Pos {
	case packet.HookPosSend:
		m.reportFirstTx(ctx.Now, obs.Node, pkt)
	case packet.HookPosForward:
		m.reportForwarding(ctx.Now, obs.Node, pkt)
	case packet.HookPosLocalDeliver:
		m.reportLastRx(ctx.Now, obs.Node, pkt)
	case packet.HookPosDrop:
		m.reportDrop(ctx.Now, obs.Node, pkt, obs.Reason)
	}
}

func (m *Monitor) statsOf(id FlowID) *FlowStats {
	s, ok := m.flows[id]
	if !ok {
		s = &FlowStats{
			DelayHistogram:             NewHistogram(m.delayBinWidth),
			JitterHistogram:            NewHistogram(m.jitterBinWidth),
			PacketSizeHistogram:        NewHistogram(m.packetSizeBinWidth),
			FlowInterruptionsHistogram: NewHistogram(m.flowInterruptionsBinWidth),
		}
		m.flows[id] = s
	}

	return s
}

func (m *Monitor) probeOf(node int, id FlowID) *ProbeFlowStats {
	flows, ok := m.probes[node]
	if !ok {
		flows = make(map[FlowID]*ProbeFlowStats)
		m.probes[node] = flows
	}

	s, ok := flows[id]
	if !ok {
		s = &ProbeFlowStats{FlowID: id}
		flows[id] = s
	}

	return s
}

func (m *Monitor) addProbeStats(
	node int,
	id FlowID,
	size int,
	delay sim.VTimeInSec,
) {
	p := m.probeOf(node, id)
	p.DelayFromFirstProbeSum += delay
	p.Bytes += uint64(size)
	p.Packets++
}

func (m *Monitor) reportFirstTx(now sim.VTimeInSec, node int, pkt *packet.Packet) {
	id := m.classifier.Classify(pkt)
	size := pkt.Size()

	m.tracked[pkt.UID] = &trackedPacket{
		flow:      id,
		firstSeen: now,
		lastSeen:  now,
	}

	m.addProbeStats(node, id, size, 0)

	s := m.statsOf(id)
	s.TxBytes += uint64(size)
	s.TxPackets++

	if s.TxPackets == 1 {
		s.TimeFirstTxPacket = now
	}

	s.TimeLastTxPacket = now
}

func (m *Monitor) reportForwarding(now sim.VTimeInSec, node int, pkt *packet.Packet) {
	t, ok := m.tracked[pkt.UID]
	if !ok {
		return
	}

	t.timesForwarded++
	t.lastSeen = now

	m.addProbeStats(node, t.flow, pkt.Size(), now-t.firstSeen)
}

func (m *Monitor) reportLastRx(now sim.VTimeInSec, node int, pkt *packet.Packet) {
	t, ok := m.tracked[pkt.UID]
	if !ok {
		return
	}

	delete(m.tracked, pkt.UID)

	size := pkt.Size()
	delay := now - t.firstSeen
	m.addProbeStats(node, t.flow, size, delay)

	s := m.statsOf(t.flow)
	s.DelaySum += delay
	s.DelayHistogram.AddValue(float64(delay))

	if s.RxPackets > 0 {
		jitter := sim.VTimeInSec(math.Abs(float64(s.LastDelay - delay)))
		s.JitterSum += jitter
		s.JitterHistogram.AddValue(float64(jitter))
	}

	s.LastDelay = delay
	s.RxBytes += uint64(size)
	s.PacketSizeHistogram.AddValue(float64(size))
	s.RxPackets++

	if s.RxPackets == 1 {
		s.TimeFirstRxPacket = now
	} else {
		gap := now - s.TimeLastRxPacket
		if gap > m.flowInterruptionsMinTime {
			s.FlowInterruptionsHistogram.AddValue(float64(gap))
		}
	}

	s.TimeLastRxPacket = now
	s.TimesForwarded += t.timesForwarded
}

func (m *Monitor) reportDrop(
	now sim.VTimeInSec,
	node int,
	pkt *packet.Packet,
	reason packet.DropReason,
) {
	t, ok := m.tracked[pkt.UID]
	if !ok {
		return
	}

	delete(m.tracked, pkt.UID)

	size := pkt.Size()

	p := m.probeOf(node, t.flow)
	p.addDrop(reason, size)

	s := m.statsOf(t.flow)
	s.LostPackets++
	s.addDrop(reason, size)
}

// CheckForLostPackets counts as lost every packet that has not been seen for
// longer than the maximum per-hop delay.
func (m *Monitor) CheckForLostPackets(now sim.VTimeInSec) {
	m.CheckForLostPacketsWithin(now, m.maxPerHopDelay)
}

// CheckForLostPacketsWithin is CheckForLostPackets with an explicit delay.
func (m *Monitor) CheckForLostPacketsWithin(now, maxDelay sim.VTimeInSec) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for uid, t := range m.tracked {
		if now-t.lastSeen >= maxDelay {
			m.statsOf(t.flow).LostPackets++
			delete(m.tracked, uid)
		}
	}
}

// InFlight returns the number of packets sent but not yet delivered, dropped
// or declared lost.
func (m *Monitor) InFlight() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.tracked)
}

// NumFlows returns the number of flows classified so far.
func (m *Monitor) NumFlows() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.classifier.NumFlows()
}

// Statistics returns a copy of the counters.
func (m *Monitor) Statistics() *Statistics {
	m.lock.Lock()
	defer m.lock.Unlock()

	out := &Statistics{}

	ids := make([]FlowID, 0, len(m.flows))
	for id := range m.flows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		out.Flows = append(out.Flows, Flow{
			ID:    id,
			Tuple: m.classifier.Tuple(id),
			Stats: m.flows[id].clone(),
		})
	}

	nodes := make([]int, 0, len(m.probes))
	for n := range m.probes {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)

	for _, n := range nodes {
		probe := Probe{Index: n}

		for _, s := range m.probes[n] {
			c := *s
			c.PacketsDropped = append([]uint32(nil), s.PacketsDropped...)
			c.BytesDropped = append([]uint64(nil), s.BytesDropped...)
			probe.Flows = append(probe.Flows, c)
		}

		sort.Slice(probe.Flows, func(i, j int) bool {
			return probe.Flows[i].FlowID < probe.Flows[j].FlowID
		})

		out.Probes = append(out.Probes, probe)
	}

	return out
}
