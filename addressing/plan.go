package addressing

import (
	"fmt"
	"net/netip"

	"github.com/sarchlab/hybridnet/topology"
)

// Default blocks of the two segments.
var (
	DefaultWiredBlock    = MustParseBlock("10.1.1.0/24")
	DefaultWirelessBlock = MustParseBlock("192.168.0.0/24")
)

// Assignment binds an address to the device a node has on a segment.
type Assignment struct {
	Node    topology.NodeID
	Segment topology.Segment
	Addr    netip.Addr
	Prefix  netip.Prefix
}

type ifaceKey struct {
	node    topology.NodeID
	segment topology.Segment
}

// Plan is the result of an allocation.
type Plan struct {
	Wired       Block
	Wireless    Block
	Assignments []Assignment

	byIface map[ifaceKey]int
}

// Allocate assigns addresses to every device of the topology. Wired devices
// are numbered in construction order. On the wireless segment the access
// point comes first, followed by the clients in construction order.
func Allocate(topo *topology.Topology, wired, wireless Block) (*Plan, error) {
	if wired.Overlaps(wireless) {
		return nil, fmt.Errorf("%w: %s and %s", ErrBlocksOverlap, wired, wireless)
	}

	p := &Plan{
		Wired:    wired,
		Wireless: wireless,
		byIface:  make(map[ifaceKey]int),
	}

	if err := p.assign(wired, topology.SegmentWired, topo.WiredLink.Members); err != nil {
		return nil, err
	}

	wirelessDevs := make([]topology.NodeID, 0, len(topo.WirelessLink.Stations)+1)
	wirelessDevs = append(wirelessDevs, topo.WirelessLink.AccessPoint)
	wirelessDevs = append(wirelessDevs, topo.WirelessLink.Stations...)

	if err := p.assign(wireless, topology.SegmentWireless, wirelessDevs); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Plan) assign(
	b Block,
	seg topology.Segment,
	nodes []topology.NodeID,
) error {
	alloc := NewAllocator(b)

	for _, id := range nodes {
		addr, err := alloc.Next()
		if err != nil {
			return fmt.Errorf("%s segment: %w", seg, err)
		}

		p.byIface[ifaceKey{id, seg}] = len(p.Assignments)
		p.Assignments = append(p.Assignments, Assignment{
			Node:    id,
			Segment: seg,
			Addr:    addr,
			Prefix:  b.prefix,
		})
	}

	return nil
}

// AddressOf returns the address of the node's device on the segment.
func (p *Plan) AddressOf(id topology.NodeID, seg topology.Segment) (netip.Addr, bool) {
	i, ok := p.byIface[ifaceKey{id, seg}]
	if !ok {
		return netip.Addr{}, false
	}

	return p.Assignments[i].Addr, true
}

// InterfacesOf returns the assignments of all the devices of a node.
func (p *Plan) InterfacesOf(id topology.NodeID) []Assignment {
	var out []Assignment

	for _, a := range p.Assignments {
		if a.Node == id {
			out = append(out, a)
		}
	}

	return out
}

// OnSegment returns the assignments of a segment in allocation order.
func (p *Plan) OnSegment(seg topology.Segment) []Assignment {
	var out []Assignment

	for _, a := range p.Assignments {
		if a.Segment == seg {
			out = append(out, a)
		}
	}

	return out
}
