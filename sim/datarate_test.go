package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DataRate", func() {
	It("should compute the transmission time", func() {
		Expect(float64(DataRate(5 * Mbps).TxTime(1024))).
			To(BeNumerically("~", 0.0016384, 1e-12))
		Expect(float64((100 * Mbps).TxTime(1500))).
			To(BeNumerically("~", 0.00012, 1e-12))
	})

	It("should count the bytes that fit in a duration", func() {
		Expect((8 * Kbps).BytesIn(1)).To(Equal(1000))
	})

	DescribeTable("parsing",
		func(s string, expected DataRate) {
			r, err := ParseDataRate(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(Equal(expected))
		},
		Entry("megabits", "5Mbps", 5*Mbps),
		Entry("hundred megabits", "100Mbps", 100*Mbps),
		Entry("kilobits", "64kbps", 64*Kbps),
		Entry("gigabits", "1Gbps", Gbps),
		Entry("bits", "300bps", DataRate(300)),
	)

	DescribeTable("rejecting",
		func(s string) {
			_, err := ParseDataRate(s)
			Expect(err).To(HaveOccurred())
		},
		Entry("no unit", "5"),
		Entry("negative", "-5Mbps"),
		Entry("garbage", "fastMbps"),
	)

	It("should format with the largest integral unit", func() {
		Expect((5 * Mbps).String()).To(Equal("5Mbps"))
		Expect((1500 * Kbps).String()).To(Equal("1500Kbps"))
		Expect(DataRate(12.5).String()).To(Equal("12.5bps"))
	})

	It("should panic on a zero rate", func() {
		Expect(func() { DataRate(0).TxTime(1) }).To(Panic())
	})
})
