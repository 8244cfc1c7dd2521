package traffic

import (
	"fmt"
	"net/netip"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
)

// Profile holds the traffic constants.
type Profile struct {
	SinkWindow   Window
	SourceWindow Window

	UDPPort uint16
	TCPPort uint16

	// The port of the single sink when only one transport is used.
	SinglePort uint16

	DataRate   sim.DataRate
	PacketSize int
	OnTime     sim.VTimeInSec
	OffTime    sim.VTimeInSec

	SegmentSize int
	MaxBytes    uint64
}

// DefaultProfile returns the profile of the reference scenario.
func DefaultProfile() Profile {
	return Profile{
		SinkWindow:   Window{Start: 0, Stop: 60},
		SourceWindow: Window{Start: 1, Stop: 60},
		UDPPort:      9,
		TCPPort:      10,
		SinglePort:   9,
		DataRate:     5 * sim.Mbps,
		PacketSize:   1024,
		OnTime:       1,
		OffTime:      0,
		SegmentSize:  1500,
		MaxBytes:     0,
	}
}

// Validate checks the windows and the shape parameters.
func (p Profile) Validate() error {
	if err := p.SinkWindow.Validate(); err != nil {
		return fmt.Errorf("sink window: %w", err)
	}

	if err := p.SourceWindow.Validate(); err != nil {
		return fmt.Errorf("source window: %w", err)
	}

	switch {
	case p.SinkWindow.Start > p.SourceWindow.Start:
		return fmt.Errorf("sinks start at %g, after the sources at %g",
			p.SinkWindow.Start, p.SourceWindow.Start)
	case p.UDPPort == p.TCPPort:
		return fmt.Errorf("udp and tcp sinks share port %d", p.UDPPort)
	case p.DataRate <= 0:
		return fmt.Errorf("data rate must be positive")
	case p.PacketSize <= 0:
		return fmt.Errorf("packet size must be positive, got %d", p.PacketSize)
	case p.OnTime <= 0 || p.OffTime < 0:
		return fmt.Errorf("invalid on/off times %g/%g", p.OnTime, p.OffTime)
	case p.SegmentSize <= 0:
		return fmt.Errorf("segment size must be positive, got %d", p.SegmentSize)
	}

	return nil
}

// Plan lists the applications to install.
type Plan struct {
	Protocol Protocol
	Sinks    []Sink
	Sources  []Application

	// SegmentSize is the TCP segment size to configure on every TCP socket,
	// or zero when no TCP traffic is planned.
	SegmentSize int
}

// Applications returns the sinks followed by the sources.
func (p *Plan) Applications() []Application {
	out := make([]Application, 0, len(p.Sinks)+len(p.Sources))
	for _, s := range p.Sinks {
		out = append(out, s)
	}

	return append(out, p.Sources...)
}

// LatestStop returns the latest stop time among all applications.
func (p *Plan) LatestStop() sim.VTimeInSec {
	var latest sim.VTimeInSec

	for _, a := range p.Applications() {
		if a.Window().Stop > latest {
			latest = a.Window().Stop
		}
	}

	return latest
}

// CountByTransport returns the number of sources using the transport.
func (p *Plan) CountByTransport(t packet.Protocol) int {
	n := 0

	for _, s := range p.Sources {
		if s.Transport() == t {
			n++
		}
	}

	return n
}

// Orchestrator turns a protocol selector into a Plan.
type Orchestrator struct {
	profile Profile
}

// NewOrchestrator creates an orchestrator with the given profile.
func NewOrchestrator(profile Profile) *Orchestrator {
	return &Orchestrator{profile: profile}
}

// Plan installs the sinks on the server and one source per client. In mixed
// mode the first half of the clients, rounded down, send UDP and the others
// send TCP.
func (o *Orchestrator) Plan(
	sel Protocol,
	server topology.NodeID,
	serverAddr netip.Addr,
	clients []topology.NodeID,
) (*Plan, error) {
	if err := o.profile.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{Protocol: sel}

	switch sel {
	case ProtocolUDP:
		remote := netip.AddrPortFrom(serverAddr, o.profile.SinglePort)
		plan.Sinks = append(plan.Sinks, o.sink(server, packet.ProtocolUDP, remote))
		o.addOnOff(plan, clients, remote)
	case ProtocolTCP:
		remote := netip.AddrPortFrom(serverAddr, o.profile.SinglePort)
		plan.Sinks = append(plan.Sinks, o.sink(server, packet.ProtocolTCP, remote))
		plan.SegmentSize = o.profile.SegmentSize
		o.addBulkSend(plan, clients, remote)
	case ProtocolMixed:
		udpRemote := netip.AddrPortFrom(serverAddr, o.profile.UDPPort)
		tcpRemote := netip.AddrPortFrom(serverAddr, o.profile.TCPPort)
		plan.Sinks = append(plan.Sinks,
			o.sink(server, packet.ProtocolUDP, udpRemote),
			o.sink(server, packet.ProtocolTCP, tcpRemote),
		)
		plan.SegmentSize = o.profile.SegmentSize

		nUDP := len(clients) / 2
		o.addOnOff(plan, clients[:nUDP], udpRemote)
		o.addBulkSend(plan, clients[nUDP:], tcpRemote)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownProtocol, int(sel))
	}

	return plan, nil
}

func (o *Orchestrator) sink(
	server topology.NodeID,
	proto packet.Protocol,
	local netip.AddrPort,
) Sink {
	return Sink{
		On:       server,
		Protocol: proto,
		Local:    local,
		Active:   o.profile.SinkWindow,
	}
}

func (o *Orchestrator) addOnOff(
	plan *Plan,
	clients []topology.NodeID,
	remote netip.AddrPort,
) {
	for _, c := range clients {
		plan.Sources = append(plan.Sources, OnOff{
			On:         c,
			Remote:     remote,
			DataRate:   o.profile.DataRate,
			PacketSize: o.profile.PacketSize,
			OnTime:     o.profile.OnTime,
			OffTime:    o.profile.OffTime,
			Active:     o.profile.SourceWindow,
		})
	}
}

func (o *Orchestrator) addBulkSend(
	plan *Plan,
	clients []topology.NodeID,
	remote netip.AddrPort,
) {
	for _, c := range clients {
		plan.Sources = append(plan.Sources, BulkSend{
			On:          c,
			Remote:      remote,
			SegmentSize: o.profile.SegmentSize,
			MaxBytes:    o.profile.MaxBytes,
			Active:      o.profile.SourceWindow,
		})
	}
}
