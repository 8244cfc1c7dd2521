package netsim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
)

var _ = Describe("WiFi channel", func() {
	It("should follow the free space loss", func() {
		Expect(friisRxPowerDbm(16, topology.DefaultFrequencyHz, 1)).
			To(BeNumerically("~", -30.7, 0.1))
		Expect(friisRxPowerDbm(16, topology.DefaultFrequencyHz, 10)).
			To(BeNumerically("~", -50.7, 0.1))
		Expect(friisRxPowerDbm(16, topology.DefaultFrequencyHz, 0)).
			To(Equal(16.0))
	})

	DescribeTable("rate selection",
		func(snr float64, rate sim.DataRate) {
			Expect(selectWifiRate(snr)).To(Equal(rate))
		},
		Entry("strong signal", 40.0, 54*sim.Mbps),
		Entry("medium signal", 15.0, 24*sim.Mbps),
		Entry("weak signal", 3.0, 6*sim.Mbps),
		Entry("below every threshold", -5.0, 6*sim.Mbps),
	)

	It("should lose frames beyond the sensitivity range", func() {
		net, topo := buildNetwork(2, 1)
		client, _ := net.Node(topo.Registry.Clients()[0])
		ap, _ := net.Node(topo.Registry.AccessPoint())

		far := &stubModel{pos: client.Position(0)}
		far.pos.X += 400
		client.mobility = far

		p := &wifiPhy{link: topo.WirelessLink}
		f := &frame{
			pkt:  udpTestPacket(),
			from: client.deviceOn(topology.SegmentWireless),
			to:   ap.deviceOn(topology.SegmentWireless),
		}

		Expect(p.transmit(f, 0).lost).To(BeTrue())

		far.pos = ap.Position(0)
		tx := p.transmit(f, 0)
		Expect(tx.lost).To(BeFalse())
		Expect(tx.busy).To(BeNumerically(">", tx.arrival))
	})
})
