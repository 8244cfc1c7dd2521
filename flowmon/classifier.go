package flowmon

import (
	"github.com/sarchlab/hybridnet/packet"
)

// FlowID identifies a flow. IDs start at 1 and follow the order in which the
// flows are first seen.
type FlowID uint32

// Classifier maps 5-tuples to flow IDs.
type Classifier struct {
	ids    map[packet.FiveTuple]FlowID
	tuples []packet.FiveTuple
}

// NewClassifier creates an empty classifier.
func NewClassifier() *Classifier {
	return &Classifier{
		ids: make(map[packet.FiveTuple]FlowID),
	}
}

// Classify returns the flow of a packet, creating a new flow for an unseen
// 5-tuple.
func (c *Classifier) Classify(p *packet.Packet) FlowID {
	t := p.Tuple()

	if id, ok := c.ids[t]; ok {
		return id
	}

	c.tuples = append(c.tuples, t)
	id := FlowID(len(c.tuples))
	c.ids[t] = id

	return id
}

// Lookup returns the flow of a 5-tuple without creating one.
func (c *Classifier) Lookup(t packet.FiveTuple) (FlowID, bool) {
	id, ok := c.ids[t]
	return id, ok
}

// Tuple returns the 5-tuple of a flow.
func (c *Classifier) Tuple(id FlowID) packet.FiveTuple {
	return c.tuples[id-1]
}

// NumFlows returns the number of flows seen so far.
func (c *Classifier) NumFlows() int {
	return len(c.tuples)
}
