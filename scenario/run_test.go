package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/sim"
)

var _ = Describe("Run", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		cfg      ScenarioConfig
		output   string
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		output = filepath.Join(GinkgoT().TempDir(), "flow-monitor.xml")

		var err error
		cfg, err = MakeBuilder().
			WithWiredNodes(3).
			WithWifiNodes(2).
			WithOutputFile(output).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	expectInstall := func() {
		engine.EXPECT().AddNode(gomock.Any()).Return(nil).Times(5)
		engine.EXPECT().InstallWiredLink(cfg.Topology.WiredLink).Return(nil)
		engine.EXPECT().InstallWirelessLink(cfg.Topology.WirelessLink).Return(nil)
		engine.EXPECT().InstallMobility(gomock.Any(), gomock.Any()).Return(nil).Times(5)
		engine.EXPECT().AssignAddress(gomock.Any()).Return(nil).Times(6)
		engine.EXPECT().PopulateRoutingTables().Return(nil)
		engine.EXPECT().EnableFlowMonitor(gomock.Any())
		engine.EXPECT().InstallApplication(gomock.Any()).Return(nil).Times(3)
	}

	It("should install, run, collect, write and tear down in order", func() {
		stats := &flowmon.Statistics{}
		recorder := NewMockFlowRecorder(mockCtrl)

		expectInstall()
		gomock.InOrder(
			engine.EXPECT().StopAt(sim.VTimeInSec(61)),
			engine.EXPECT().Run(gomock.Any()).Return(nil),
			engine.EXPECT().CollectFlowStatistics().Return(stats, nil),
			recorder.EXPECT().RecordFlows("udp_static_2", stats).Return(nil),
			engine.EXPECT().Destroy(),
		)

		got, err := Run(context.Background(), cfg,
			WithEngine(engine), WithRecorder(recorder))

		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(stats))
		Expect(output).To(BeAnExistingFile())
	})

	It("should report engine failures", func() {
		expectInstall()
		engine.EXPECT().StopAt(gomock.Any())
		engine.EXPECT().Run(gomock.Any()).Return(errors.New("boom"))
		engine.EXPECT().Destroy()

		_, err := Run(context.Background(), cfg, WithEngine(engine))

		Expect(err).To(MatchError(ContainSubstring("running simulation: boom")))
		Expect(output).NotTo(BeAnExistingFile())
	})

	It("should stop installing at the first failure", func() {
		engine.EXPECT().AddNode(gomock.Any()).Return(errors.New("duplicate"))
		engine.EXPECT().Destroy()

		_, err := Run(context.Background(), cfg, WithEngine(engine))

		Expect(err).To(MatchError(ContainSubstring("installing scenario")))
	})

	It("should report output errors", func() {
		cfg.OutputFile = filepath.Join(output, "missing", "flow.xml")

		expectInstall()
		engine.EXPECT().StopAt(gomock.Any())
		engine.EXPECT().Run(gomock.Any()).Return(nil)
		engine.EXPECT().CollectFlowStatistics().Return(&flowmon.Statistics{}, nil)
		engine.EXPECT().Destroy()

		_, err := Run(context.Background(), cfg, WithEngine(engine))

		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})

	It("should publish metrics", func() {
		metrics := flowmon.NewMetrics()

		expectInstall()
		engine.EXPECT().StopAt(gomock.Any())
		engine.EXPECT().Run(gomock.Any()).Return(nil)
		engine.EXPECT().CollectFlowStatistics().Return(&flowmon.Statistics{}, nil)
		engine.EXPECT().Destroy()

		_, err := Run(context.Background(), cfg,
			WithEngine(engine), WithMetrics(metrics))
		Expect(err).NotTo(HaveOccurred())

		families, err := metrics.Registry().Gather()
		Expect(err).NotTo(HaveOccurred())
		Expect(families).NotTo(BeEmpty())
	})
})
