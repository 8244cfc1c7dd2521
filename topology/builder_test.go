package topology

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Builder", func() {
	It("should build the default topology", func() {
		topo, err := MakeBuilder().Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(topo.Wired).To(HaveLen(DefaultWiredNodes))
		Expect(topo.Wireless).To(HaveLen(DefaultWirelessNodes))
		Expect(topo.NumNodes()).To(Equal(11))

		Expect(topo.Registry.AccessPoint()).To(Equal(topo.Wired[0]))
		Expect(topo.Registry.Server()).To(Equal(topo.Wired[9]))
		Expect(topo.Registry.Interior()).To(Equal(topo.Wired[1:9]))
		Expect(topo.Registry.Clients()).To(Equal(topo.Wireless))
	})

	It("should keep server and access point distinct with two wired nodes", func() {
		topo, err := MakeBuilder().WithWiredNodes(2).WithWirelessNodes(3).Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(topo.Registry.AccessPoint()).NotTo(Equal(topo.Registry.Server()))
		Expect(topo.Registry.Interior()).To(BeEmpty())
		Expect(topo.Node(topo.Registry.Server()).Role).To(Equal(RoleServer))
	})

	It("should reject fewer than two wired nodes", func() {
		_, err := MakeBuilder().WithWiredNodes(1).Build()
		Expect(err).To(MatchError(ErrTooFewWiredNodes))
	})

	It("should reject a negative client count", func() {
		_, err := MakeBuilder().WithWirelessNodes(-1).Build()
		Expect(err).To(MatchError(ErrNegativeClientNum))
	})

	It("should allow zero clients", func() {
		topo, err := MakeBuilder().WithWirelessNodes(0).Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(topo.Wireless).To(BeEmpty())
		Expect(topo.WirelessLink.Stations).To(BeEmpty())
	})

	It("should wire every wired node to the shared link", func() {
		topo, err := MakeBuilder().WithWirelessNodes(4).Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(topo.WiredLink.Members).To(Equal(topo.Wired))
		Expect(topo.WiredLink.DataRate).To(Equal(DefaultWiredDataRate))
		Expect(topo.WirelessLink.AccessPoint).To(Equal(topo.Wired[0]))
		Expect(topo.WirelessLink.Stations).To(Equal(topo.Wireless))
		Expect(topo.WirelessLink.SSID).To(Equal("Equipe8"))
	})

	It("should number nodes in construction order", func() {
		topo, err := MakeBuilder().WithWiredNodes(3).WithWirelessNodes(2).Build()
		Expect(err).NotTo(HaveOccurred())

		for i, n := range topo.Nodes {
			Expect(n.ID).To(Equal(NodeID(i)))
		}
		Expect(topo.Node(3).Name).To(Equal("sta0"))
		Expect(topo.Node(4).Index).To(Equal(1))
	})

	It("should tell the role of each node", func() {
		topo, err := MakeBuilder().WithWiredNodes(3).WithWirelessNodes(1).Build()
		Expect(err).NotTo(HaveOccurred())

		role, ok := topo.Registry.RoleOf(1)
		Expect(ok).To(BeTrue())
		Expect(role).To(Equal(RoleWiredInterior))

		_, ok = topo.Registry.RoleOf(99)
		Expect(ok).To(BeFalse())
	})
})
