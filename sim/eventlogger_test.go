package sim

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type namedHandler struct {
	name string
}

func (h namedHandler) Name() string { return h.name }

func (h namedHandler) Handle(Event) error { return nil }

type tracedEvent struct {
	*EventBase
}

var _ = Describe("EventLogger", func() {
	var (
		buf    bytes.Buffer
		engine *SerialEngine
		logger *EventLogger
	)

	BeforeEach(func() {
		buf.Reset()
		engine = NewSerialEngine()
		logger = NewEventLogger(log.New(&buf, "", 0))
		engine.AcceptHook(logger)
	})

	It("should print the event type and the handler name", func() {
		engine.Schedule(tracedEvent{NewEventBase(0.5, namedHandler{"lan0.csma"})})

		Expect(engine.Run()).To(Succeed())

		Expect(buf.String()).To(Equal(
			"0.500000000 sim.tracedEvent -> lan0.csma\n"))
	})

	It("should filter by handler name", func() {
		logger.OnlyHandlers("sta")
		engine.Schedule(tracedEvent{NewEventBase(1, namedHandler{"lan0.csma"})})
		engine.Schedule(tracedEvent{NewEventBase(2, namedHandler{"sta0.wifi"})})

		Expect(engine.Run()).To(Succeed())

		Expect(buf.String()).To(Equal(
			"2.000000000 sim.tracedEvent -> sta0.wifi\n"))
	})
})
