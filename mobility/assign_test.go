package mobility

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hybridnet/topology"
)

var _ = Describe("Assign", func() {
	var topo *topology.Topology

	allNodes := func() []topology.NodeID {
		ids := make([]topology.NodeID, 0, topo.NumNodes())
		for _, n := range topo.Nodes {
			ids = append(ids, n.ID)
		}

		return ids
	}

	BeforeEach(func() {
		var err error
		topo, err = topology.MakeBuilder().WithWirelessNodes(5).Build()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should give every node exactly one policy", func() {
		a, err := Assign(topo.Registry, allNodes(), ModeStatic, DefaultParams())
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(HaveLen(topo.NumNodes()))
	})

	It("should anchor the server and the access point", func() {
		a, err := Assign(topo.Registry, allNodes(), ModeStatic, DefaultParams())
		Expect(err).NotTo(HaveOccurred())

		Expect(a[topo.Registry.Server()]).To(Equal(Fixed{Position: Vector{0, 0, 0}}))
		Expect(a[topo.Registry.AccessPoint()]).
			To(Equal(Fixed{Position: Vector{70, 70, 0}}))
	})

	It("should scatter interior nodes", func() {
		a, err := Assign(topo.Registry, allNodes(), ModeStatic, DefaultParams())
		Expect(err).NotTo(HaveOccurred())

		for _, id := range topo.Registry.Interior() {
			Expect(a[id]).To(Equal(RandomUniform{Bounds: Square(140)}))
		}
	})

	It("should place static clients on a row-major grid", func() {
		a, err := Assign(topo.Registry, allNodes(), ModeStatic, DefaultParams())
		Expect(err).NotTo(HaveOccurred())

		clients := topo.Registry.Clients()
		expected := []Vector{
			{70, 70, 0}, {75, 70, 0}, {80, 70, 0}, {70, 75, 0}, {75, 75, 0},
		}

		for i, id := range clients {
			g, ok := a[id].(Grid)
			Expect(ok).To(BeTrue())
			Expect(g.Position()).To(Equal(expected[i]))
		}
	})

	It("should start walking clients at their grid slot", func() {
		a, err := Assign(topo.Registry, allNodes(), ModeRandomWalk, DefaultParams())
		Expect(err).NotTo(HaveOccurred())

		id := topo.Registry.Clients()[4]
		w, ok := a[id].(RandomWalk)
		Expect(ok).To(BeTrue())
		Expect(w.Start).To(Equal(Vector{75, 75, 0}))
		Expect(w.SpeedMin).To(Equal(1.0))
		Expect(w.SpeedMax).To(Equal(2.0))
		Expect(w.Distance).To(Equal(10.0))
	})

	It("should keep walk starts inside the bounds for large client counts", func() {
		var err error
		topo, err = topology.MakeBuilder().WithWirelessNodes(60).Build()
		Expect(err).NotTo(HaveOccurred())

		params := DefaultParams()
		a, err := Assign(topo.Registry, allNodes(), ModeRandomWalk, params)
		Expect(err).NotTo(HaveOccurred())

		for _, id := range topo.Registry.Clients() {
			w := a[id].(RandomWalk)
			Expect(params.WalkBounds.Contains(w.Start)).To(BeTrue())
		}

		last := a[topo.Registry.Clients()[59]].(RandomWalk)
		Expect(last.Start).To(Equal(Vector{80, 140, 0}))
	})

	It("should reject an unknown mode", func() {
		_, err := Assign(topo.Registry, allNodes(), Mode(2), DefaultParams())
		Expect(err).To(MatchError(ErrUnknownMode))
	})

	It("should reject a zero grid width", func() {
		params := DefaultParams()
		params.GridWidth = 0

		_, err := Assign(topo.Registry, allNodes(), ModeRandomWalk, params)
		Expect(err).To(MatchError(ErrInvalidPolicy))
	})

	It("should reject nodes without a role", func() {
		_, err := Assign(topo.Registry, []topology.NodeID{99}, ModeStatic,
			DefaultParams())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Mode", func() {
	DescribeTable("parsing",
		func(in string, expected Mode) {
			m, err := ParseMode(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(expected))
		},
		Entry("zero", "0", ModeStatic),
		Entry("one", "1", ModeRandomWalk),
		Entry("static", "static", ModeStatic),
		Entry("mobile", "Mobile", ModeRandomWalk),
		Entry("random-walk", "random-walk", ModeRandomWalk),
	)

	It("should reject other selectors", func() {
		_, err := ParseMode("2")
		Expect(err).To(MatchError(ErrUnknownMode))

		_, err = ModeFromInt(-1)
		Expect(err).To(MatchError(ErrUnknownMode))
	})
})
