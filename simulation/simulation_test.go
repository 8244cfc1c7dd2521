package simulation

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hybridnet/datarecording"
	"github.com/sarchlab/hybridnet/scenario"
)

func shortConfig(dir string, nWifi int) scenario.ScenarioConfig {
	o := scenario.DefaultOptions()
	o.NWifi = nWifi
	o.SinkStop = 3
	o.SourceStop = 3
	o.OutputFile = filepath.Join(dir, "flow-monitor.xml")

	cfg, err := scenario.MakeBuilder().WithOptions(o).Build()
	Expect(err).NotTo(HaveOccurred())

	return cfg
}

var _ = Describe("Simulation", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should refuse monitor options without monitoring", func() {
		Expect(func() {
			_, _ = MakeBuilder().WithoutMonitoring().WithMonitorPort(8080).Build()
		}).To(Panic())
	})

	It("should run a scenario without optional services", func() {
		s, err := MakeBuilder().WithoutMonitoring().Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.GetMonitor()).To(BeNil())
		Expect(s.GetDataRecorder()).To(BeNil())

		stats, err := s.Run(context.Background(), shortConfig(dir, 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Flows).To(HaveLen(1))
		Expect(s.GetFlowMonitor().NumFlows()).To(Equal(1))

		Expect(s.Terminate()).To(Succeed())
	})

	It("should record flows and execution information", func() {
		path := filepath.Join(dir, "run")
		s, err := MakeBuilder().
			WithoutMonitoring().
			WithDatabase(path).
			Build()
		Expect(err).NotTo(HaveOccurred())

		stats, err := s.Run(context.Background(), shortConfig(dir, 2))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Terminate()).To(Succeed())

		r, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		tables, err := r.ListTables(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(tables).To(ContainElements(
			datarecording.FlowTableName, datarecording.ExecTableName))

		flows, err := r.Flows(context.Background(), datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(flows).To(HaveLen(len(stats.Flows)))
		Expect(flows[0].Run).To(Equal("udp_static_2"))
	})

	It("should trace events", func() {
		var trace bytes.Buffer
		s, err := MakeBuilder().
			WithoutMonitoring().
			WithEventTrace(&trace).
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Run(context.Background(), shortConfig(dir, 1))
		Expect(err).NotTo(HaveOccurred())

		Expect(trace.Len()).To(BeNumerically(">", 0))
	})

	It("should serve the monitor while alive", func() {
		s, err := MakeBuilder().Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.GetMonitor()).NotTo(BeNil())

		rsp, err := http.Get(s.MonitorURL() + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		Expect(s.Terminate()).To(Succeed())
	})
})
