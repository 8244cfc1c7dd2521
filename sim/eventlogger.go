package sim

import (
	"log"
	"reflect"
	"strings"
)

// Named is something that has a name.
type Named interface {
	Name() string
}

// EventLogger is a hook that prints one line per handled event, with the
// time, the event type and the name of the handler when it has one.
type EventLogger struct {
	logger *log.Logger
	prefix string
}

// NewEventLogger returns an EventLogger writing into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// OnlyHandlers restricts the output to the handlers whose name starts with
// the prefix.
func (h *EventLogger) OnlyHandlers(prefix string) *EventLogger {
	h.prefix = prefix
	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	name := ""
	if named, ok := evt.Handler().(Named); ok {
		name = named.Name()
	}

	if h.prefix != "" && !strings.HasPrefix(name, h.prefix) {
		return
	}

	if name == "" {
		h.logger.Printf("%.9f %s", evt.Time(), reflect.TypeOf(evt))
		return
	}

	h.logger.Printf("%.9f %s -> %s", evt.Time(), reflect.TypeOf(evt), name)
}
