package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
	"go.uber.org/mock/gomock"
)

type sampleScenario struct {
	Protocol string
	Clients  int
	Server   *sampleNode
}

type sampleNode struct {
	Name string
}

var _ = Describe("Monitor", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		flows    *MockFlowSource
		m        *Monitor
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.Handler().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		flows = NewMockFlowSource(mockCtrl)

		m = NewMonitor()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should refuse privileged ports", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should answer 503 before an engine is registered", func() {
		Expect(get("/api/now").Code).To(Equal(http.StatusServiceUnavailable))
		Expect(get("/api/pause").Code).To(Equal(http.StatusServiceUnavailable))
		Expect(get("/api/flows").Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("should pause and continue the engine", func() {
		m.RegisterEngine(engine)
		engine.EXPECT().Pause()
		engine.EXPECT().Continue()

		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
	})

	It("should report the simulated time against the stop bound", func() {
		m.RegisterEngine(engine)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(15))
		engine.EXPECT().StopTime().Return(sim.VTimeInSec(60), true)
		engine.EXPECT().PendingEvents().Return(42)

		rec := get("/api/now")

		var rsp nowRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Now).To(Equal(15.0))
		Expect(rsp.Stop).To(Equal(60.0))
		Expect(rsp.Progress).To(BeNumerically("~", 0.25, 1e-9))
		Expect(rsp.Pending).To(Equal(42))
	})

	It("should leave progress out without a stop bound", func() {
		m.RegisterEngine(engine)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(3))
		engine.EXPECT().StopTime().Return(sim.VTimeInSec(0), false)
		engine.EXPECT().PendingEvents().Return(0)

		rec := get("/api/now")

		Expect(rec.Body.String()).NotTo(ContainSubstring("progress"))
	})

	It("should list flows with a summary", func() {
		m.RegisterFlowSource(flows)
		flows.EXPECT().Statistics().Return(&flowmon.Statistics{
			Flows: []flowmon.Flow{{
				ID: 1,
				Tuple: packet.FiveTuple{
					Src:      netip.MustParseAddr("10.1.2.1"),
					Dst:      netip.MustParseAddr("10.1.1.10"),
					Protocol: packet.ProtocolUDP,
					SrcPort:  49153,
					DstPort:  9,
				},
				Stats: flowmon.FlowStats{
					TxPackets:   10,
					RxPackets:   8,
					LostPackets: 2,
					RxBytes:     8192,
				},
			}},
		})

		rec := get("/api/flows")

		var rsp flowsRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Flows).To(HaveLen(1))
		Expect(rsp.Flows[0].Src).To(Equal("10.1.2.1:49153"))
		Expect(rsp.Flows[0].Dst).To(Equal("10.1.1.10:9"))
		Expect(rsp.Flows[0].Protocol).To(Equal("udp"))
		Expect(rsp.Summary.Flows).To(Equal(1))
		Expect(rsp.Summary.LossPercent).To(BeNumerically("~", 20, 1e-9))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("sweep", 4)
		bar.IncrementInProgress(2)
		bar.MoveInProgressToFinished(1)

		var rsp []progressRsp
		Expect(json.Unmarshal(get("/api/progress").Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("sweep"))
		Expect(rsp[0].Finished).To(Equal(uint64(1)))
		Expect(rsp[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(Equal("[]"))
	})

	It("should serialize the registered scenario", func() {
		Expect(get("/api/scenario").Code).To(Equal(http.StatusNotFound))

		m.RegisterScenario(&sampleScenario{
			Protocol: "udp",
			Clients:  4,
			Server:   &sampleNode{Name: "lan9"},
		})

		rec := get("/api/scenario")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("udp"))
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})
