package netsim

import (
	"math"

	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/topology"
)

// 802.11a timing, in seconds.
const (
	wifiSlot       = 9e-6
	wifiSIFS       = 16e-6
	wifiDIFS       = wifiSIFS + 2*wifiSlot
	wifiPreamble   = 20e-6
	wifiAckTime    = wifiPreamble + 14*8/6e6
	wifiCWMin      = 15
	wifiMacHeader  = 36
	speedOfLight   = 299792458.0
	thermalNoiseDb = -174.0
	channelWidthHz = 20e6
	noiseFigureDb  = 7.0
)

// wifiRates maps the minimum SNR (dB) to the 802.11a OFDM rate it supports.
// The best supported rate is used, which is where an adaptive rate manager
// settles when the channel does not change.
var wifiRates = []struct {
	minSnrDb float64
	rate     sim.DataRate
}{
	{25, 54 * sim.Mbps},
	{22, 48 * sim.Mbps},
	{18, 36 * sim.Mbps},
	{14, 24 * sim.Mbps},
	{11, 18 * sim.Mbps},
	{9, 12 * sim.Mbps},
	{8, 9 * sim.Mbps},
	{0, 6 * sim.Mbps},
}

// wifiPhy models a single 802.11a channel with Friis propagation loss and a
// constant-speed propagation delay. Frames received below the sensitivity
// are lost.
type wifiPhy struct {
	link topology.WirelessLink
}

func (p *wifiPhy) transmit(f *frame, now sim.VTimeInSec) transmission {
	src := f.from.node.Position(now)
	dst := f.to.node.Position(now)
	dist := src.DistanceTo(dst)

	rxDbm := friisRxPowerDbm(p.link.TxPowerDbm, p.link.FrequencyHz, dist)
	rate := selectWifiRate(rxDbm - noiseFloorDbm())

	backoff := float64(f.from.node.rng.IntN(wifiCWMin+1)) * wifiSlot
	payload := float64(f.pkt.Size()+wifiMacHeader) * 8 / float64(rate)

	data := wifiDIFS + backoff + wifiPreamble + payload
	busy := data + wifiSIFS + wifiAckTime

	return transmission{
		busy:    sim.VTimeInSec(busy),
		arrival: sim.VTimeInSec(data + dist/speedOfLight),
		lost:    rxDbm < p.link.RxSensitivityDbm,
	}
}

func noiseFloorDbm() float64 {
	return thermalNoiseDb + 10*math.Log10(channelWidthHz) + noiseFigureDb
}

// friisRxPowerDbm returns the received power at a distance in free space.
func friisRxPowerDbm(txDbm, freqHz, dist float64) float64 {
	if dist <= 0 {
		return txDbm
	}

	lambda := speedOfLight / freqHz
	gain := lambda / (4 * math.Pi * dist)

	return txDbm + 20*math.Log10(gain)
}

func selectWifiRate(snrDb float64) sim.DataRate {
	for _, r := range wifiRates {
		if snrDb >= r.minSnrDb {
			return r.rate
		}
	}

	return wifiRates[len(wifiRates)-1].rate
}
