package scenario

import (
	"context"

	"github.com/sarchlab/hybridnet/addressing"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/mobility"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
	"github.com/sarchlab/hybridnet/traffic"
)

// Engine is the simulation engine a scenario is installed on.
type Engine interface {
	AddNode(n topology.Node) error
	InstallWiredLink(link topology.WiredLink) error
	InstallWirelessLink(link topology.WirelessLink) error
	InstallMobility(id topology.NodeID, p mobility.Policy) error
	AssignAddress(a addressing.Assignment) error
	PopulateRoutingTables() error
	InstallApplication(app traffic.Application) error
	EnableFlowMonitor(m *flowmon.Monitor)

	// StopAt bounds the simulated time.
	StopAt(t sim.VTimeInSec)

	// Run blocks until the simulation ends.
	Run(ctx context.Context) error

	// CollectFlowStatistics runs the lost packet check and returns the
	// statistics of every flow.
	CollectFlowStatistics() (*flowmon.Statistics, error)

	// Destroy releases everything the engine holds.
	Destroy()
}
