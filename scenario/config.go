package scenario

import (
	"errors"
	"fmt"

	"github.com/sarchlab/hybridnet/addressing"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/mobility"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
	"github.com/sarchlab/hybridnet/traffic"
)

// StopMargin is the time the simulation keeps running after the last
// application stops.
const StopMargin = sim.VTimeInSec(1)

// ScenarioConfig is a fully planned scenario. Every Build returns freshly
// allocated plans that nothing in this package modifies afterwards, Run
// included. The plans are shared by reference, so callers must treat them as
// read-only.
type ScenarioConfig struct {
	Protocol   traffic.Protocol
	Mobility   mobility.Mode
	Seed       uint64
	OutputFile string

	Topology  *topology.Topology
	Placement mobility.Assignment
	Addresses *addressing.Plan
	Traffic   *traffic.Plan

	// StopTime is strictly later than every application stop time.
	StopTime sim.VTimeInSec
}

// RunKey names the run by its protocol, mobility and client count.
func (c ScenarioConfig) RunKey() flowmon.RunKey {
	return flowmon.RunKey{
		Protocol: c.Protocol.String(),
		Mobility: c.Mobility.String(),
		Clients:  len(c.Topology.Wireless),
	}
}

// Builder can build scenario configurations.
type Builder struct {
	opts Options
}

// MakeBuilder returns a builder holding the default options.
func MakeBuilder() Builder {
	return Builder{opts: DefaultOptions()}
}

// WithOptions replaces all the options.
func (b Builder) WithOptions(o Options) Builder {
	b.opts = o
	return b
}

// WithWiredNodes sets the number of wired nodes.
func (b Builder) WithWiredNodes(n int) Builder {
	b.opts.WiredNodes = n
	return b
}

// WithWifiNodes sets the number of wireless clients.
func (b Builder) WithWifiNodes(n int) Builder {
	b.opts.NWifi = n
	return b
}

// WithProtocol sets the traffic selector.
func (b Builder) WithProtocol(p traffic.Protocol) Builder {
	b.opts.Protocol = int(p)
	return b
}

// WithMobility sets how the clients move.
func (b Builder) WithMobility(m mobility.Mode) Builder {
	b.opts.Mobility = int(m)
	return b
}

// WithOutputFile sets where the flow statistics are written.
func (b Builder) WithOutputFile(path string) Builder {
	b.opts.OutputFile = path
	return b
}

// WithSeed sets the seed of the random streams.
func (b Builder) WithSeed(seed uint64) Builder {
	b.opts.Seed = seed
	return b
}

// Options returns the options the builder currently holds.
func (b Builder) Options() Options {
	return b.opts
}

// Build validates the options and plans the topology, the placement, the
// addresses and the traffic. Nothing is built when an option is invalid.
func (b Builder) Build() (ScenarioConfig, error) {
	o := b.opts

	if err := o.Validate(); err != nil {
		return ScenarioConfig{}, err
	}

	proto, err := traffic.ProtocolFromInt(o.Protocol)
	if err != nil {
		return ScenarioConfig{}, &ConfigError{"protocol", o.Protocol, err.Error()}
	}

	mode, err := mobility.ModeFromInt(o.Mobility)
	if err != nil {
		return ScenarioConfig{}, &ConfigError{"mobility", o.Mobility, err.Error()}
	}

	wiredRate, err := sim.ParseDataRate(o.WiredDataRate)
	if err != nil {
		return ScenarioConfig{}, &ConfigError{"wiredDataRate", o.WiredDataRate, err.Error()}
	}

	sourceRate, err := sim.ParseDataRate(o.SourceDataRate)
	if err != nil {
		return ScenarioConfig{}, &ConfigError{"dataRate", o.SourceDataRate, err.Error()}
	}

	wiredBlock, err := addressing.ParseBlock(o.WiredBlock)
	if err != nil {
		return ScenarioConfig{}, &ConfigError{"wiredBlock", o.WiredBlock, err.Error()}
	}

	wirelessBlock, err := addressing.ParseBlock(o.WirelessBlock)
	if err != nil {
		return ScenarioConfig{}, &ConfigError{"wirelessBlock", o.WirelessBlock, err.Error()}
	}

	topo, err := topology.MakeBuilder().
		WithWiredNodes(o.WiredNodes).
		WithWirelessNodes(o.NWifi).
		WithWiredLink(wiredRate, sim.VTimeInSec(o.WiredDelay)).
		WithSSID(o.SSID).
		Build()
	if err != nil {
		return ScenarioConfig{}, topologyError(o, err)
	}

	placement, err := mobility.Assign(topo.Registry, nodeIDs(topo), mode,
		mobility.DefaultParams())
	if err != nil {
		return ScenarioConfig{}, mobilityError(o, err)
	}

	addrs, err := addressing.Allocate(topo, wiredBlock, wirelessBlock)
	if err != nil {
		return ScenarioConfig{}, addressingError(o, err)
	}

	serverAddr, _ := addrs.AddressOf(topo.Registry.Server(), topology.SegmentWired)

	plan, err := traffic.NewOrchestrator(profileOf(o, sourceRate)).
		Plan(proto, topo.Registry.Server(), serverAddr, topo.Registry.Clients())
	if err != nil {
		return ScenarioConfig{}, fmt.Errorf("planning traffic: %w", err)
	}

	return ScenarioConfig{
		Protocol:   proto,
		Mobility:   mode,
		Seed:       o.Seed,
		OutputFile: o.OutputFile,
		Topology:   topo,
		Placement:  placement,
		Addresses:  addrs,
		Traffic:    plan,
		StopTime:   plan.LatestStop() + StopMargin,
	}, nil
}

func profileOf(o Options, rate sim.DataRate) traffic.Profile {
	p := traffic.DefaultProfile()

	p.SinkWindow = traffic.Window{
		Start: sim.VTimeInSec(o.SinkStart),
		Stop:  sim.VTimeInSec(o.SinkStop),
	}
	p.SourceWindow = traffic.Window{
		Start: sim.VTimeInSec(o.SourceStart),
		Stop:  sim.VTimeInSec(o.SourceStop),
	}
	p.UDPPort = o.UDPPort
	p.TCPPort = o.TCPPort
	p.SinglePort = o.SinglePort
	p.DataRate = rate
	p.PacketSize = o.PacketSize
	p.SegmentSize = o.SegmentSize
	p.MaxBytes = o.MaxBytes

	return p
}

func nodeIDs(t *topology.Topology) []topology.NodeID {
	ids := make([]topology.NodeID, 0, t.NumNodes())
	for _, n := range t.Nodes {
		ids = append(ids, n.ID)
	}

	return ids
}

func topologyError(o Options, err error) error {
	switch {
	case errors.Is(err, topology.ErrTooFewWiredNodes):
		return &ConfigError{"nLan", o.WiredNodes, err.Error()}
	case errors.Is(err, topology.ErrNegativeClientNum):
		return &ConfigError{"nWifi", o.NWifi, err.Error()}
	default:
		return fmt.Errorf("building topology: %w", err)
	}
}

func mobilityError(o Options, err error) error {
	switch {
	case errors.Is(err, mobility.ErrUnknownMode):
		return &ConfigError{"mobility", o.Mobility, err.Error()}
	case errors.Is(err, mobility.ErrInvalidPolicy):
		return &ConfigError{"nWifi", o.NWifi, err.Error()}
	default:
		return fmt.Errorf("assigning mobility: %w", err)
	}
}

func addressingError(o Options, err error) error {
	switch {
	case errors.Is(err, addressing.ErrBlockExhausted):
		return &ConfigError{"nWifi", o.NWifi, err.Error()}
	case errors.Is(err, addressing.ErrBlocksOverlap):
		return &ConfigError{"wirelessBlock", o.WirelessBlock, err.Error()}
	default:
		return fmt.Errorf("allocating addresses: %w", err)
	}
}
