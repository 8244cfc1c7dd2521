package sim

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"sync"
)

// A SerialEngine is an Engine that always run events one after another.
type SerialEngine struct {
	HookableBase

	timeLock       sync.RWMutex
	time           VTimeInSec
	queue          EventQueue
	secondaryQueue EventQueue

	hasStopTime bool
	stopTime    VTimeInSec

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex

	simulationEndHandlers []SimulationEndHandler
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)

	e.queue = NewEventQueue()
	e.secondaryQueue = NewEventQueue()

	return e
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt Event) {
	now := e.readNow()
	if !evt.Time().IsValid() {
		log.Panicf("scheduling event %s at invalid time", reflect.TypeOf(evt))
	}

	if evt.Time() < now {
		log.Panicf(
			"scheduling an event earlier than current time, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), now,
		)
	}

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)
		return
	}

	e.queue.Push(evt)
}

// StopAt sets the time after which no event is handled.
func (e *SerialEngine) StopAt(t VTimeInSec) {
	if !t.IsValid() || t < e.readNow() {
		log.Panicf("invalid stop time %.10f", t)
	}

	e.hasStopTime = true
	e.stopTime = t
}

func (e *SerialEngine) readNow() VTimeInSec {
	e.timeLock.RLock()
	t := e.time
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTimeInSec) {
	e.timeLock.Lock()
	e.time = t
	e.timeLock.Unlock()
}

// Run processes all the events scheduled in the SerialEngine
func (e *SerialEngine) Run() error {
	return e.RunContext(context.Background())
}

// RunContext processes the scheduled events until the queue drains, the stop
// bound is reached, a handler fails, or the context is cancelled.
func (e *SerialEngine) RunContext(ctx context.Context) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.noMoreEvent() {
			return nil
		}

		e.pauseLock.Lock()

		evt := e.peekEvent()
		if e.hasStopTime && evt.Time() > e.stopTime {
			e.writeNow(e.stopTime)
			e.pauseLock.Unlock()

			return nil
		}

		e.popEvent(evt)

		now := e.readNow()
		if evt.Time() < now {
			log.Panicf(
				"cannot run event in the past, evt %s @ %.10f, now %.10f",
				reflect.TypeOf(evt), evt.Time(), now,
			)
		}
		e.writeNow(evt.Time())

		hookCtx := HookCtx{
			Domain: e,
			Now:    evt.Time(),
			Pos:    HookPosBeforeEvent,
			Item:   evt,
		}
		e.InvokeHook(hookCtx)

		err := evt.Handler().Handle(evt)

		hookCtx.Pos = HookPosAfterEvent
		e.InvokeHook(hookCtx)

		e.pauseLock.Unlock()

		if err != nil {
			return fmt.Errorf("handling %s @ %.10f: %w",
				reflect.TypeOf(evt), evt.Time(), err)
		}
	}
}

func (e *SerialEngine) noMoreEvent() bool {
	return e.queue.Len() == 0 && e.secondaryQueue.Len() == 0
}

func (e *SerialEngine) peekEvent() Event {
	if e.queue.Len() == 0 {
		return e.secondaryQueue.Peek()
	}

	if e.secondaryQueue.Len() == 0 {
		return e.queue.Peek()
	}

	primaryEvt := e.queue.Peek()
	secondaryEvt := e.secondaryQueue.Peek()

	if primaryEvt.Time() <= secondaryEvt.Time() {
		return primaryEvt
	}

	return secondaryEvt
}

func (e *SerialEngine) popEvent(evt Event) {
	if e.queue.Len() > 0 && e.queue.Peek() == evt {
		e.queue.Pop()
		return
	}

	e.secondaryQueue.Pop()
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	return e.readNow()
}

// StopTime returns the stop bound and whether one has been set.
func (e *SerialEngine) StopTime() (VTimeInSec, bool) {
	return e.stopTime, e.hasStopTime
}

// PendingEvents returns the number of events not handled yet.
func (e *SerialEngine) PendingEvents() int {
	return e.queue.Len() + e.secondaryQueue.Len()
}

// RegisterSimulationEndHandler invokes all the registered simulation end
// handler.
func (e *SerialEngine) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	e.simulationEndHandlers = append(e.simulationEndHandlers, handler)
}

// Finished should be called after the simulation ends. This function
// calls all the registered SimulationEndHandler.
func (e *SerialEngine) Finished() {
	now := e.readNow()
	for _, h := range e.simulationEndHandlers {
		h.Handle(now)
	}
}

// Reset drops the pending events and rewinds the clock.
func (e *SerialEngine) Reset() {
	e.queue.Clear()
	e.secondaryQueue.Clear()
	e.writeNow(0)
	e.hasStopTime = false
	e.stopTime = 0
}
