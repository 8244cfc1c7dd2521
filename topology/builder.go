package topology

import (
	"errors"
	"fmt"

	"github.com/sarchlab/hybridnet/sim"
)

// Errors returned by Build.
var (
	ErrTooFewWiredNodes  = errors.New("at least two wired nodes are required")
	ErrNegativeClientNum = errors.New("number of wireless clients cannot be negative")
)

// Default parameters of the two segments.
const (
	DefaultWiredNodes        = 10
	DefaultWirelessNodes     = 1
	DefaultWiredDataRate     = 100 * sim.Mbps
	DefaultWiredDelay        = sim.VTimeInSec(0.002)
	DefaultSSID              = "Equipe8"
	DefaultFrequencyHz       = 5.18e9
	DefaultTxPowerDbm        = 16.0
	DefaultRxSensitivityDbm  = -80.0
	DefaultCcaEdThresholdDbm = -78.0
)

// Builder can build a Topology.
type Builder struct {
	numWired    int
	numWireless int

	wiredDataRate sim.DataRate
	wiredDelay    sim.VTimeInSec

	ssid              string
	frequencyHz       float64
	txPowerDbm        float64
	rxSensitivityDbm  float64
	ccaEdThresholdDbm float64
}

// MakeBuilder creates a builder with the default parameters.
func MakeBuilder() Builder {
	return Builder{
		numWired:          DefaultWiredNodes,
		numWireless:       DefaultWirelessNodes,
		wiredDataRate:     DefaultWiredDataRate,
		wiredDelay:        DefaultWiredDelay,
		ssid:              DefaultSSID,
		frequencyHz:       DefaultFrequencyHz,
		txPowerDbm:        DefaultTxPowerDbm,
		rxSensitivityDbm:  DefaultRxSensitivityDbm,
		ccaEdThresholdDbm: DefaultCcaEdThresholdDbm,
	}
}

// WithWiredNodes sets the size of the wired node set.
func (b Builder) WithWiredNodes(n int) Builder {
	b.numWired = n
	return b
}

// WithWirelessNodes sets the number of wireless clients.
func (b Builder) WithWirelessNodes(n int) Builder {
	b.numWireless = n
	return b
}

// WithWiredLink sets the data rate and delay of the shared wired medium.
func (b Builder) WithWiredLink(rate sim.DataRate, delay sim.VTimeInSec) Builder {
	b.wiredDataRate = rate
	b.wiredDelay = delay

	return b
}

// WithSSID sets the network name announced by the access point.
func (b Builder) WithSSID(ssid string) Builder {
	b.ssid = ssid
	return b
}

// WithRadio sets the transmit power and receiver thresholds of every radio.
func (b Builder) WithRadio(txPowerDbm, rxSensitivityDbm, ccaEdDbm float64) Builder {
	b.txPowerDbm = txPowerDbm
	b.rxSensitivityDbm = rxSensitivityDbm
	b.ccaEdThresholdDbm = ccaEdDbm

	return b
}

// Build creates the node sets. The first wired node becomes the access point
// and the last one becomes the server.
func (b Builder) Build() (*Topology, error) {
	if b.numWired < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewWiredNodes, b.numWired)
	}

	if b.numWireless < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeClientNum, b.numWireless)
	}

	t := &Topology{
		Registry: newRegistry(),
	}

	for i := 0; i < b.numWired; i++ {
		role := RoleWiredInterior

		switch i {
		case 0:
			role = RoleAccessPoint
		case b.numWired - 1:
			role = RoleServer
		}

		id := t.addNode(fmt.Sprintf("lan%d", i), role, i)
		t.Wired = append(t.Wired, id)
	}

	for i := 0; i < b.numWireless; i++ {
		id := t.addNode(fmt.Sprintf("sta%d", i), RoleWirelessClient, i)
		t.Wireless = append(t.Wireless, id)
	}

	t.WiredLink = WiredLink{
		DataRate: b.wiredDataRate,
		Delay:    b.wiredDelay,
		Members:  append([]NodeID(nil), t.Wired...),
	}

	t.WirelessLink = WirelessLink{
		SSID:              b.ssid,
		FrequencyHz:       b.frequencyHz,
		TxPowerDbm:        b.txPowerDbm,
		RxSensitivityDbm:  b.rxSensitivityDbm,
		CcaEdThresholdDbm: b.ccaEdThresholdDbm,
		AccessPoint:       t.Registry.AccessPoint(),
		Stations:          append([]NodeID(nil), t.Wireless...),
	}

	return t, nil
}

func (t *Topology) addNode(name string, role Role, index int) NodeID {
	id := NodeID(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{
		ID:    id,
		Name:  name,
		Role:  role,
		Index: index,
	})
	t.Registry.add(id, role)

	return id
}
