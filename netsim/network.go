// Package netsim is a compact packet-level network simulator. It provides
// shared-medium and radio links, an IPv4 stack with global routing, UDP and
// TCP transports, and the traffic applications of a scenario.
package netsim

import (
	"context"
	"errors"
	"fmt"

	"github.com/sarchlab/hybridnet/addressing"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/mobility"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
	"github.com/sarchlab/hybridnet/traffic"
)

// ErrNoFlowMonitor is returned when statistics are requested from a network
// without a flow monitor.
var ErrNoFlowMonitor = errors.New("flow monitor not enabled")

// DefaultSeed seeds the random streams when no seed is given.
const DefaultSeed = 1

// Network owns the nodes, the links and the engine of one simulation.
type Network struct {
	engine *sim.SerialEngine
	seed   uint64

	nodes map[topology.NodeID]*Node
	order []topology.NodeID
	media map[topology.Segment]*medium
	apps  []Application

	monitor *flowmon.Monitor
}

// Builder can build networks.
type Builder struct {
	engine *sim.SerialEngine
	seed   uint64
}

// MakeBuilder returns a builder with a fresh engine and the default seed.
func MakeBuilder() Builder {
	return Builder{seed: DefaultSeed}
}

// WithEngine makes the network run on the given engine.
func (b Builder) WithEngine(e *sim.SerialEngine) Builder {
	b.engine = e
	return b
}

// WithSeed sets the seed of the random streams.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// Build creates an empty network.
func (b Builder) Build() *Network {
	engine := b.engine
	if engine == nil {
		engine = sim.NewSerialEngine()
	}

	return &Network{
		engine: engine,
		seed:   b.seed,
		nodes:  make(map[topology.NodeID]*Node),
		media:  make(map[topology.Segment]*medium),
	}
}

// SimEngine returns the engine driving the network.
func (n *Network) SimEngine() *sim.SerialEngine {
	return n.engine
}

// AddNode creates a node.
func (n *Network) AddNode(tn topology.Node) error {
	if _, found := n.nodes[tn.ID]; found {
		return fmt.Errorf("node %d (%s) already exists", tn.ID, tn.Name)
	}

	node := newNode(tn, n)
	if n.monitor != nil {
		node.ipv4.AcceptHook(n.monitor)
	}

	n.nodes[tn.ID] = node
	n.order = append(n.order, tn.ID)

	return nil
}

// Node returns a node by ID.
func (n *Network) Node(id topology.NodeID) (*Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

func (n *Network) mustNodes(ids []topology.NodeID) ([]*Node, error) {
	out := make([]*Node, 0, len(ids))

	for _, id := range ids {
		node, ok := n.nodes[id]
		if !ok {
			return nil, fmt.Errorf("unknown node %d", id)
		}

		out = append(out, node)
	}

	return out, nil
}

func (n *Network) installMedium(
	seg topology.Segment,
	name string,
	p phy,
	members []topology.NodeID,
	queueLimit int,
) error {
	if _, found := n.media[seg]; found {
		return fmt.Errorf("%s link already installed", seg)
	}

	nodes, err := n.mustNodes(members)
	if err != nil {
		return fmt.Errorf("installing %s link: %w", seg, err)
	}

	m := newMedium(name, n.engine, p)

	for _, node := range nodes {
		d := &NetDevice{
			node:       node,
			segment:    seg,
			medium:     m,
			queueLimit: queueLimit,
		}
		node.devices = append(node.devices, d)
		m.attach(d)
	}

	n.media[seg] = m

	return nil
}

// InstallWiredLink attaches every member to one shared CSMA channel.
func (n *Network) InstallWiredLink(link topology.WiredLink) error {
	if link.DataRate <= 0 || link.Delay < 0 {
		return fmt.Errorf("invalid wired link %s/%gs", link.DataRate, link.Delay)
	}

	p := &csmaPhy{rate: link.DataRate, delay: link.Delay}

	return n.installMedium(topology.SegmentWired, "CSMA", p,
		link.Members, CsmaQueueLimit)
}

// InstallWirelessLink attaches the access point and its stations to one
// radio channel.
func (n *Network) InstallWirelessLink(link topology.WirelessLink) error {
	if link.FrequencyHz <= 0 {
		return fmt.Errorf("invalid wireless frequency %g", link.FrequencyHz)
	}

	members := append([]topology.NodeID{link.AccessPoint}, link.Stations...)

	return n.installMedium(topology.SegmentWireless, "WiFi["+link.SSID+"]",
		&wifiPhy{link: link}, members, WifiQueueLimit)
}

// InstallMobility binds a mobility model built from the policy to a node.
func (n *Network) InstallMobility(id topology.NodeID, p mobility.Policy) error {
	node, ok := n.nodes[id]
	if !ok {
		return fmt.Errorf("installing mobility: unknown node %d", id)
	}

	if node.mobility != nil {
		return fmt.Errorf("node %s already has a mobility model", node.name)
	}

	m, err := mobility.NewModel(p, node.rng)
	if err != nil {
		return fmt.Errorf("installing mobility on %s: %w", node.name, err)
	}

	node.mobility = m

	return nil
}

// AssignAddress gives an address to the device a node has on a segment.
func (n *Network) AssignAddress(a addressing.Assignment) error {
	node, ok := n.nodes[a.Node]
	if !ok {
		return fmt.Errorf("assigning %s: unknown node %d", a.Addr, a.Node)
	}

	d := node.deviceOn(a.Segment)
	if d == nil {
		return fmt.Errorf("node %s has no %s device", node.name, a.Segment)
	}

	if !a.Prefix.Contains(a.Addr) {
		return fmt.Errorf("address %s outside of %s", a.Addr, a.Prefix)
	}

	if err := d.medium.bind(d, a.Addr); err != nil {
		return err
	}

	d.addr = a.Addr
	d.prefix = a.Prefix.Masked()

	return nil
}

// PopulateRoutingTables computes the routes of every node.
func (n *Network) PopulateRoutingTables() error {
	n.populateRoutes()
	return nil
}

// InstallApplication creates the application and schedules its start and
// stop.
func (n *Network) InstallApplication(app traffic.Application) error {
	if err := app.Window().Validate(); err != nil {
		return err
	}

	node, ok := n.nodes[app.Node()]
	if !ok {
		return fmt.Errorf("installing %s: unknown node %d", app.Kind(), app.Node())
	}

	a, err := newApplication(node, app)
	if err != nil {
		return err
	}

	w := app.Window()
	n.engine.Schedule(newAppEvent(w.Start, a, appStart))
	n.engine.Schedule(newAppEvent(w.Stop, a, appStop))
	n.apps = append(n.apps, a)

	return nil
}

// Applications returns the installed applications.
func (n *Network) Applications() []Application {
	return n.apps
}

// ReceivedBytes sums what the sinks of a node received.
func (n *Network) ReceivedBytes(id topology.NodeID) uint64 {
	var total uint64

	for _, a := range n.apps {
		if s, ok := a.(*PacketSink); ok && s.node.id == id {
			total += s.TotalRx()
		}
	}

	return total
}

// EnableFlowMonitor attaches the monitor to the IPv4 stack of every node,
// including the nodes added later.
func (n *Network) EnableFlowMonitor(m *flowmon.Monitor) {
	n.monitor = m

	for _, id := range n.order {
		n.nodes[id].ipv4.AcceptHook(m)
	}
}

// StopAt bounds the simulated time.
func (n *Network) StopAt(t sim.VTimeInSec) {
	n.engine.StopAt(t)
}

// Run runs the simulation until the stop bound, the end of the events, or
// the cancellation of the context.
func (n *Network) Run(ctx context.Context) error {
	return n.engine.RunContext(ctx)
}

// CollectFlowStatistics declares the packets still in flight for too long
// lost and returns the per-flow statistics.
func (n *Network) CollectFlowStatistics() (*flowmon.Statistics, error) {
	if n.monitor == nil {
		return nil, ErrNoFlowMonitor
	}

	now := n.engine.CurrentTime()
	if stop, ok := n.engine.StopTime(); ok && stop > now {
		now = stop
	}

	n.monitor.CheckForLostPackets(now)

	return n.monitor.Statistics(), nil
}

// Destroy drops all pending events and releases the nodes.
func (n *Network) Destroy() {
	n.engine.Reset()

	n.nodes = make(map[topology.NodeID]*Node)
	n.order = nil
	n.media = make(map[topology.Segment]*medium)
	n.apps = nil
	n.monitor = nil
}
