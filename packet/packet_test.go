package packet

import (
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Packet", func() {
	var p *Packet

	BeforeEach(func() {
		p = &Packet{
			UID:      NewUID(),
			Src:      netip.MustParseAddr("192.168.0.2"),
			Dst:      netip.MustParseAddr("10.1.1.10"),
			SrcPort:  49153,
			DstPort:  9,
			Protocol: ProtocolUDP,
			Payload:  1024,
		}
	})

	It("should count headers in the size", func() {
		Expect(p.Size()).To(Equal(1052))

		p.Protocol = ProtocolTCP
		Expect(p.Size()).To(Equal(1064))
	})

	It("should build the flow key", func() {
		t := p.Tuple()
		Expect(t.Src).To(Equal(p.Src))
		Expect(t.DstPort).To(Equal(uint16(9)))
		Expect(t.String()).To(Equal("udp 192.168.0.2:49153 -> 10.1.1.10:9"))
	})

	It("should keep the uid on clone", func() {
		c := p.Clone()
		c.TTL = 3

		Expect(c.UID).To(Equal(p.UID))
		Expect(p.TTL).To(BeZero())
	})

	It("should hand out increasing uids", func() {
		Expect(NewUID()).To(BeNumerically(">", p.UID))
	})

	It("should test flags", func() {
		f := FlagSYN | FlagACK
		Expect(f.Has(FlagSYN)).To(BeTrue())
		Expect(FlagACK.Has(FlagSYN)).To(BeFalse())
	})
})
