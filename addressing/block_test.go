package addressing

import (
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Block", func() {
	It("should build from a base and a dotted mask", func() {
		b, err := NewBlock("10.1.1.0", "255.255.255.0")
		Expect(err).NotTo(HaveOccurred())
		Expect(b.String()).To(Equal("10.1.1.0/24"))
		Expect(b.Mask()).To(Equal("255.255.255.0"))
		Expect(b.Capacity()).To(Equal(254))
	})

	It("should reject a non-contiguous mask", func() {
		_, err := NewBlock("10.1.1.0", "255.0.255.0")
		Expect(err).To(MatchError(ErrInvalidBlock))
	})

	It("should reject host bits", func() {
		_, err := ParseBlock("10.1.1.7/24")
		Expect(err).To(MatchError(ErrInvalidBlock))
	})

	It("should reject IPv6", func() {
		_, err := ParseBlock("fd00::/64")
		Expect(err).To(MatchError(ErrInvalidBlock))
	})

	It("should detect overlaps", func() {
		a := MustParseBlock("10.1.0.0/16")
		b := MustParseBlock("10.1.1.0/24")
		c := MustParseBlock("192.168.0.0/24")

		Expect(a.Overlaps(b)).To(BeTrue())
		Expect(b.Overlaps(c)).To(BeFalse())
	})
})

var _ = Describe("Allocator", func() {
	It("should start after the network address", func() {
		a := NewAllocator(MustParseBlock("192.168.0.0/24"))

		first, err := a.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(netip.MustParseAddr("192.168.0.1")))

		second, _ := a.Next()
		Expect(second).To(Equal(netip.MustParseAddr("192.168.0.2")))
		Expect(a.Allocated()).To(Equal(2))
	})

	It("should never hand out the broadcast address", func() {
		a := NewAllocator(MustParseBlock("10.0.0.0/30"))

		_, err := a.Next()
		Expect(err).NotTo(HaveOccurred())
		last, err := a.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(last).To(Equal(netip.MustParseAddr("10.0.0.2")))

		_, err = a.Next()
		Expect(err).To(MatchError(ErrBlockExhausted))
	})
})
