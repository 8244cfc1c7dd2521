package netsim

import (
	"github.com/sarchlab/hybridnet/sim"
)

// CsmaFrameOverhead is the Ethernet header and trailer added to every packet.
const CsmaFrameOverhead = 18

// csmaPhy is a wire. The medium stays busy while the frame is serialized and
// while it propagates.
type csmaPhy struct {
	rate  sim.DataRate
	delay sim.VTimeInSec
}

func (p *csmaPhy) transmit(f *frame, _ sim.VTimeInSec) transmission {
	t := p.rate.TxTime(f.pkt.Size()+CsmaFrameOverhead) + p.delay

	return transmission{busy: t, arrival: t}
}
