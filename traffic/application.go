// Package traffic plans the sinks and the sources of a scenario.
package traffic

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
)

// ErrInvalidWindow is returned when an application would stop before it
// starts.
var ErrInvalidWindow = errors.New("invalid application window")

// Window is the [Start, Stop] interval during which an application runs.
type Window struct {
	Start sim.VTimeInSec
	Stop  sim.VTimeInSec
}

// Validate checks that the window is not empty and starts at a non-negative
// time.
func (w Window) Validate() error {
	if w.Start < 0 || w.Stop <= w.Start {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidWindow, w.Start, w.Stop)
	}

	return nil
}

// Application is an installable traffic role.
type Application interface {
	Kind() string
	Node() topology.NodeID
	Transport() packet.Protocol
	Window() Window
}

// Sink accepts and counts the traffic sent to a local port.
type Sink struct {
	On       topology.NodeID
	Protocol packet.Protocol
	Local    netip.AddrPort
	Active   Window
}

// Kind returns "sink".
func (s Sink) Kind() string { return "sink" }

// Node returns the node hosting the sink.
func (s Sink) Node() topology.NodeID { return s.On }

// Transport returns the transport the sink listens on.
func (s Sink) Transport() packet.Protocol { return s.Protocol }

// Window returns the active period.
func (s Sink) Window() Window { return s.Active }

// OnOff alternates between sending at a constant rate and staying silent.
// An OffTime of zero makes it a constant bit rate source.
type OnOff struct {
	On         topology.NodeID
	Remote     netip.AddrPort
	DataRate   sim.DataRate
	PacketSize int
	OnTime     sim.VTimeInSec
	OffTime    sim.VTimeInSec
	Active     Window
}

// Kind returns "onoff".
func (a OnOff) Kind() string { return "onoff" }

// Node returns the sending node.
func (a OnOff) Node() topology.NodeID { return a.On }

// Transport is always UDP.
func (a OnOff) Transport() packet.Protocol { return packet.ProtocolUDP }

// Window returns the active period.
func (a OnOff) Window() Window { return a.Active }

// Interval is the time between two packets while the source is on.
func (a OnOff) Interval() sim.VTimeInSec {
	return a.DataRate.TxTime(a.PacketSize)
}

// BulkSend pushes data over a TCP connection as fast as the connection
// allows. A MaxBytes of zero means no limit.
type BulkSend struct {
	On          topology.NodeID
	Remote      netip.AddrPort
	SegmentSize int
	MaxBytes    uint64
	Active      Window
}

// Kind returns "bulksend".
func (a BulkSend) Kind() string { return "bulksend" }

// Node returns the sending node.
func (a BulkSend) Node() topology.NodeID { return a.On }

// Transport is always TCP.
func (a BulkSend) Transport() packet.Protocol { return packet.ProtocolTCP }

// Window returns the active period.
func (a BulkSend) Window() Window { return a.Active }
