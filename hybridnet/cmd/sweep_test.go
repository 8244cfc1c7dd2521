package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/mobility"
	"github.com/sarchlab/hybridnet/monitoring"
	"github.com/sarchlab/hybridnet/scenario"
	"github.com/sarchlab/hybridnet/traffic"
)

func shortBase() scenario.Options {
	o := scenario.DefaultOptions()
	o.SinkStop = 3
	o.SourceStop = 3

	return o
}

var _ = Describe("Sweep", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should expand the default grid", func() {
		points, err := sweepPoints(
			[]string{"udp", "tcp", "mixed"},
			[]string{"static", "mobile"},
			[]int{1, 2, 4, 8, 16, 32})

		Expect(err).NotTo(HaveOccurred())
		Expect(points).To(HaveLen(36))
		Expect(points[0]).To(Equal(sweepPoint{traffic.ProtocolUDP, mobility.ModeStatic, 1}))
		Expect(points[35]).To(Equal(sweepPoint{traffic.ProtocolMixed, mobility.ModeRandomWalk, 32}))
		Expect(points[35].key().FileName()).To(Equal("flow_mixed_mobile_32.xml"))
	})

	It("should reject unknown selectors", func() {
		_, err := sweepPoints([]string{"sctp"}, []string{"static"}, []int{1})
		Expect(err).To(MatchError(traffic.ErrUnknownProtocol))

		_, err = sweepPoints([]string{"udp"}, []string{"teleport"}, []int{1})
		Expect(err).To(MatchError(mobility.ErrUnknownMode))
	})

	It("should validate every run before starting", func() {
		points := []sweepPoint{
			{traffic.ProtocolUDP, mobility.ModeStatic, 1},
			{traffic.ProtocolUDP, mobility.ModeStatic, -1},
		}

		_, err := sweepConfigs(shortBase(), points, dir)

		var cfgErr *scenario.ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Option).To(Equal("nWifi"))
	})

	It("should run the grid and summarize it", func() {
		points, err := sweepPoints(
			[]string{"udp", "tcp"}, []string{"static"}, []int{1, 2})
		Expect(err).NotTo(HaveOccurred())

		cfgs, err := sweepConfigs(shortBase(), points, dir)
		Expect(err).NotTo(HaveOccurred())

		m := monitoring.NewMonitor()
		s := &sweeper{
			jobs:     2,
			progress: m.CreateProgressBar("sweep", uint64(len(cfgs))),
		}

		Expect(s.run(context.Background(), cfgs)).To(Succeed())
		Expect(s.progress.Finished).To(Equal(uint64(4)))
		Expect(s.progress.InProgress).To(BeZero())

		for _, p := range points {
			Expect(filepath.Join(dir, p.key().FileName())).To(BeAnExistingFile())
		}

		Expect(os.WriteFile(filepath.Join(dir, "flow_notes.xml"), nil, 0o644)).
			To(Succeed())

		rows, err := collectSummaries(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(4))
		Expect(rows[0].Protocol).To(Equal("tcp"))
		Expect(rows[0].Clients).To(Equal(1))
		Expect(rows[2].Protocol).To(Equal("udp"))
		Expect(rows[3].Flows).To(Equal(2))
		Expect(rows[3].ThroughputMbps).To(BeNumerically(">", 0))

		var out bytes.Buffer
		Expect(writeSummary(&out, rows)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Throughput (Mbps)"))
		Expect(out.String()).To(ContainSubstring("static"))

		csvPath := filepath.Join(dir, "summary.csv")
		Expect(flowmon.WriteSummaryCSVFile(csvPath, rows)).To(Succeed())

		f, err := os.Open(csvPath)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		read, err := flowmon.ReadSummaryCSV(f)
		Expect(err).NotTo(HaveOccurred())
		Expect(read).To(HaveLen(4))
	})

	It("should stop on cancellation", func() {
		cfgs, err := sweepConfigs(shortBase(),
			[]sweepPoint{{traffic.ProtocolUDP, mobility.ModeStatic, 1}}, dir)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := &sweeper{jobs: 1}
		Expect(s.run(ctx, cfgs)).To(MatchError(context.Canceled))
	})
})
