package scenario

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/mobility"
	"github.com/sarchlab/hybridnet/netsim"
	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/topology"
	"github.com/sarchlab/hybridnet/traffic"
)

// keptNetwork keeps the nodes around after the run so that they can be
// inspected.
type keptNetwork struct {
	*netsim.Network
}

func (keptNetwork) Destroy() {}

func shortOptions(dir string) Options {
	o := DefaultOptions()
	o.SinkStop = 5
	o.SourceStop = 5
	o.OutputFile = filepath.Join(dir, "flow-monitor.xml")

	return o
}

var _ = Describe("Scenarios on the reference network", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should deliver a single UDP client to the server", func() {
		cfg, err := MakeBuilder().WithOptions(shortOptions(dir)).Build()
		Expect(err).NotTo(HaveOccurred())

		stats, err := Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(stats.Flows).To(HaveLen(1))
		Expect(stats.Flows[0].Tuple.Protocol).To(Equal(packet.ProtocolUDP))

		// 5 Mbps exceeds what the shared wired medium carries once the 2 ms
		// delay is held per frame, so the access point queue overflows and
		// the server sees about one packet per 2.09 ms plus the full queue.
		flow := stats.Flows[0].Stats
		Expect(flow.TxPackets).To(BeNumerically("~", 2441, 2))
		Expect(flow.RxPackets).To(BeNumerically("~", 2017, 5))
		Expect(flow.PacketsDropped[packet.DropQueueFull]).To(Equal(flow.LostPackets))
		Expect(flow.TxPackets).To(Equal(flow.RxPackets + flow.LostPackets))

		read, err := flowmon.ReadXMLFile(cfg.OutputFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(read.Flows).To(HaveLen(1))
		Expect(read.Flows[0].Stats.RxBytes).To(Equal(stats.Flows[0].Stats.RxBytes))
	})

	It("should leave the planned configuration untouched", func() {
		cfg, err := MakeBuilder().
			WithOptions(shortOptions(dir)).
			WithWifiNodes(3).
			WithMobility(mobility.ModeRandomWalk).
			Build()
		Expect(err).NotTo(HaveOccurred())

		placement := make(mobility.Assignment, len(cfg.Placement))
		for id, p := range cfg.Placement {
			placement[id] = p
		}
		apps := append([]traffic.Application(nil), cfg.Traffic.Applications()...)
		nodes := append([]topology.Node(nil), cfg.Topology.Nodes...)

		_, err = Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Placement).To(Equal(placement))
		Expect(cfg.Traffic.Applications()).To(Equal(apps))
		Expect(cfg.Topology.Nodes).To(Equal(nodes))
	})

	It("should carry mixed traffic", func() {
		cfg, err := MakeBuilder().
			WithOptions(shortOptions(dir)).
			WithWifiNodes(4).
			WithProtocol(traffic.ProtocolMixed).
			Build()
		Expect(err).NotTo(HaveOccurred())

		stats, err := Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		udp, tcp := 0, 0
		for _, f := range stats.Flows {
			switch f.Tuple.Protocol {
			case packet.ProtocolUDP:
				udp++
			case packet.ProtocolTCP:
				tcp++
			}
		}

		Expect(udp).To(Equal(2))
		Expect(tcp).To(Equal(4))
		Expect(flowmon.Summarize(stats).ThroughputMbps).To(BeNumerically(">", 0))
	})

	It("should write an output file without clients", func() {
		cfg, err := MakeBuilder().
			WithOptions(shortOptions(dir)).
			WithWifiNodes(0).
			Build()
		Expect(err).NotTo(HaveOccurred())

		stats, err := Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Flows).To(BeEmpty())

		Expect(cfg.OutputFile).To(BeAnExistingFile())
	})

	It("should move every mobile client", func() {
		cfg, err := MakeBuilder().
			WithOptions(shortOptions(dir)).
			WithWifiNodes(3).
			WithMobility(mobility.ModeRandomWalk).
			Build()
		Expect(err).NotTo(HaveOccurred())

		net := netsim.MakeBuilder().WithSeed(cfg.Seed).Build()
		_, err = Run(context.Background(), cfg, WithEngine(keptNetwork{net}))
		Expect(err).NotTo(HaveOccurred())

		bounds := mobility.DefaultParams().WalkBounds
		for _, id := range cfg.Topology.Registry.Clients() {
			start := cfg.Placement[id].(mobility.RandomWalk).Start

			node, ok := net.Node(id)
			Expect(ok).To(BeTrue())

			pos := node.Position(cfg.StopTime)
			Expect(pos).NotTo(Equal(start))
			Expect(bounds.Contains(pos)).To(BeTrue())
			Expect(pos.DistanceTo(start)).To(BeNumerically("<=", 2*float64(cfg.StopTime)))
		}
	})

	It("should stop when the context is cancelled", func() {
		cfg, err := MakeBuilder().WithOptions(shortOptions(dir)).Build()
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = Run(ctx, cfg)

		Expect(err).To(MatchError(context.Canceled))
		Expect(cfg.OutputFile).NotTo(BeAnExistingFile())
	})
})
