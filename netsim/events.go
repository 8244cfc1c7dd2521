package netsim

import (
	"github.com/sarchlab/hybridnet/sim"
)

// frameArrivalEvent delivers a frame at the receiving device.
type frameArrivalEvent struct {
	*sim.EventBase
	frame *frame
	lost  bool
}

func newFrameArrivalEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	f *frame,
	lost bool,
) *frameArrivalEvent {
	return &frameArrivalEvent{
		EventBase: sim.NewEventBase(t, handler),
		frame:     f,
		lost:      lost,
	}
}

// mediumIdleEvent releases a shared medium. It is secondary so that the
// arrivals of the same instant are handled first.
type mediumIdleEvent struct {
	*sim.EventBase
}

func newMediumIdleEvent(t sim.VTimeInSec, handler sim.Handler) *mediumIdleEvent {
	return &mediumIdleEvent{
		EventBase: sim.NewSecondaryEventBase(t, handler),
	}
}

type appAction int

const (
	appStart appAction = iota
	appStop
	appSend
)

// appEvent drives the life cycle of an application.
type appEvent struct {
	*sim.EventBase
	action appAction
}

func newAppEvent(t sim.VTimeInSec, handler sim.Handler, action appAction) *appEvent {
	return &appEvent{
		EventBase: sim.NewEventBase(t, handler),
		action:    action,
	}
}

// retransmitTimeoutEvent fires the retransmission timer of a TCP connection.
// Events carrying an outdated generation are ignored.
type retransmitTimeoutEvent struct {
	*sim.EventBase
	generation uint64
}

func newRetransmitTimeoutEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	generation uint64,
) *retransmitTimeoutEvent {
	return &retransmitTimeoutEvent{
		EventBase:  sim.NewEventBase(t, handler),
		generation: generation,
	}
}
