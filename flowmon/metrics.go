package flowmon

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes flow statistics as Prometheus gauges on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	flowTxBytes     *prometheus.GaugeVec
	flowRxBytes     *prometheus.GaugeVec
	flowTxPackets   *prometheus.GaugeVec
	flowRxPackets   *prometheus.GaugeVec
	flowLostPackets *prometheus.GaugeVec
	flowDelaySum    *prometheus.GaugeVec

	throughput *prometheus.GaugeVec
	loss       *prometheus.GaugeVec
	avgDelay   *prometheus.GaugeVec
}

var flowLabels = []string{
	"run", "flow_id", "protocol", "source", "destination",
}

// NewMetrics creates the gauges.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	gauge := func(name, help string, labels []string) *prometheus.GaugeVec {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hybridnet",
			Name:      name,
			Help:      help,
		}, labels)
		m.registry.MustRegister(g)

		return g
	}

	m.flowTxBytes = gauge("flow_tx_bytes", "Bytes sent by the flow", flowLabels)
	m.flowRxBytes = gauge("flow_rx_bytes", "Bytes received by the flow", flowLabels)
	m.flowTxPackets = gauge("flow_tx_packets", "Packets sent by the flow", flowLabels)
	m.flowRxPackets = gauge("flow_rx_packets", "Packets received by the flow", flowLabels)
	m.flowLostPackets = gauge("flow_lost_packets", "Packets lost by the flow", flowLabels)
	m.flowDelaySum = gauge("flow_delay_seconds_sum",
		"Sum of the end-to-end delays of the flow", flowLabels)

	m.throughput = gauge("run_throughput_mbps", "Aggregate throughput", []string{"run"})
	m.loss = gauge("run_packet_loss_percent", "Aggregate packet loss", []string{"run"})
	m.avgDelay = gauge("run_avg_delay_ms", "Average delay", []string{"run"})

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe sets the gauges of a run.
func (m *Metrics) Observe(run string, s *Statistics) {
	for _, f := range s.Flows {
		labels := prometheus.Labels{
			"run":         run,
			"flow_id":     strconv.FormatUint(uint64(f.ID), 10),
			"protocol":    f.Tuple.Protocol.String(),
			"source":      f.Tuple.Src.String() + ":" + strconv.Itoa(int(f.Tuple.SrcPort)),
			"destination": f.Tuple.Dst.String() + ":" + strconv.Itoa(int(f.Tuple.DstPort)),
		}

		m.flowTxBytes.With(labels).Set(float64(f.Stats.TxBytes))
		m.flowRxBytes.With(labels).Set(float64(f.Stats.RxBytes))
		m.flowTxPackets.With(labels).Set(float64(f.Stats.TxPackets))
		m.flowRxPackets.With(labels).Set(float64(f.Stats.RxPackets))
		m.flowLostPackets.With(labels).Set(float64(f.Stats.LostPackets))
		m.flowDelaySum.With(labels).Set(float64(f.Stats.DelaySum))
	}

	sum := Summarize(s)
	m.throughput.WithLabelValues(run).Set(sum.ThroughputMbps)
	m.loss.WithLabelValues(run).Set(sum.LossPercent)
	m.avgDelay.WithLabelValues(run).Set(sum.AvgDelayMs)
}

// WriteTextfile writes the gauges in the Prometheus text format, for the node
// exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
