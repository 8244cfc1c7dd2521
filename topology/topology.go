// Package topology assembles the node sets of a hybrid wired/wireless network
// and tags every node with the role it plays in the scenario.
package topology

import (
	"fmt"

	"github.com/sarchlab/hybridnet/sim"
)

// NodeID identifies a node. IDs are dense and follow construction order:
// wired nodes first, then wireless clients.
type NodeID int

// Segment names one of the two network segments.
type Segment int

// The segments of a hybrid network.
const (
	SegmentWired Segment = iota
	SegmentWireless
)

func (s Segment) String() string {
	switch s {
	case SegmentWired:
		return "wired"
	case SegmentWireless:
		return "wireless"
	default:
		return fmt.Sprintf("segment(%d)", int(s))
	}
}

// Node is a simulation participant as seen by the scenario.
type Node struct {
	ID   NodeID
	Name string
	Role Role

	// Index is the position of the node inside its own segment's node set.
	Index int
}

// WiredLink describes the shared-medium backbone.
type WiredLink struct {
	DataRate sim.DataRate
	Delay    sim.VTimeInSec
	Members  []NodeID
}

// WirelessLink describes the radio channel between the access point and its
// clients.
type WirelessLink struct {
	SSID              string
	FrequencyHz       float64
	TxPowerDbm        float64
	RxSensitivityDbm  float64
	CcaEdThresholdDbm float64
	AccessPoint       NodeID
	Stations          []NodeID
}

// Topology is the immutable result of a build.
type Topology struct {
	Nodes    []Node
	Wired    []NodeID
	Wireless []NodeID
	Registry *Registry

	WiredLink    WiredLink
	WirelessLink WirelessLink
}

// Node returns the node with the given ID.
func (t *Topology) Node(id NodeID) Node {
	return t.Nodes[id]
}

// NumNodes returns the total number of nodes across both segments.
func (t *Topology) NumNodes() int {
	return len(t.Nodes)
}
