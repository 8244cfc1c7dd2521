package scenario

import (
	"context"
	"fmt"
	"log"

	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/netsim"
)

var _ Engine = (*netsim.Network)(nil)

// FlowRecorder stores the statistics of a finished run.
type FlowRecorder interface {
	RecordFlows(run string, s *flowmon.Statistics) error
}

type runSettings struct {
	engine   Engine
	monitor  *flowmon.Monitor
	recorder FlowRecorder
	metrics  *flowmon.Metrics
	xml      flowmon.XMLOptions
	logger   *log.Logger
}

// RunOption customizes Run.
type RunOption func(*runSettings)

// WithEngine runs the scenario on the given engine instead of a fresh
// reference network.
func WithEngine(e Engine) RunOption {
	return func(s *runSettings) { s.engine = e }
}

// WithMonitor uses the given flow monitor.
func WithMonitor(m *flowmon.Monitor) RunOption {
	return func(s *runSettings) { s.monitor = m }
}

// WithRecorder also stores the statistics with the recorder.
func WithRecorder(r FlowRecorder) RunOption {
	return func(s *runSettings) { s.recorder = r }
}

// WithMetrics publishes the statistics as gauges.
func WithMetrics(m *flowmon.Metrics) RunOption {
	return func(s *runSettings) { s.metrics = m }
}

// WithXMLOptions selects the optional sections of the output file.
func WithXMLOptions(o flowmon.XMLOptions) RunOption {
	return func(s *runSettings) { s.xml = o }
}

// WithLogger reports the progress of the run to the logger.
func WithLogger(l *log.Logger) RunOption {
	return func(s *runSettings) { s.logger = l }
}

func (s *runSettings) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Run installs the scenario on the engine, runs it until the stop time,
// collects the flow statistics and writes them to the output file. The engine
// is destroyed before Run returns.
func Run(
	ctx context.Context,
	cfg ScenarioConfig,
	opts ...RunOption,
) (*flowmon.Statistics, error) {
	s := &runSettings{
		xml: flowmon.XMLOptions{Histograms: true, Probes: true},
	}

	for _, o := range opts {
		o(s)
	}

	if s.engine == nil {
		s.engine = netsim.MakeBuilder().WithSeed(cfg.Seed).Build()
	}

	if s.monitor == nil {
		s.monitor = flowmon.NewMonitor()
	}

	defer s.engine.Destroy()

	if err := install(s.engine, cfg, s.monitor); err != nil {
		return nil, fmt.Errorf("installing scenario: %w", err)
	}

	run := cfg.RunKey()
	s.logf("running %s until %.1fs", run, cfg.StopTime)

	s.engine.StopAt(cfg.StopTime)

	if err := s.engine.Run(ctx); err != nil {
		return nil, fmt.Errorf("running simulation: %w", err)
	}

	stats, err := s.engine.CollectFlowStatistics()
	if err != nil {
		return nil, fmt.Errorf("collecting flow statistics: %w", err)
	}

	if err := flowmon.WriteXMLFile(cfg.OutputFile, stats, s.xml); err != nil {
		return stats, fmt.Errorf("writing %s: %w", cfg.OutputFile, err)
	}

	s.logf("wrote %d flows to %s", len(stats.Flows), cfg.OutputFile)

	name := run.String()

	if s.recorder != nil {
		if err := s.recorder.RecordFlows(name, stats); err != nil {
			return stats, fmt.Errorf("recording flows: %w", err)
		}
	}

	if s.metrics != nil {
		s.metrics.Observe(name, stats)
	}

	return stats, nil
}

func install(e Engine, cfg ScenarioConfig, m *flowmon.Monitor) error {
	topo := cfg.Topology

	for _, n := range topo.Nodes {
		if err := e.AddNode(n); err != nil {
			return err
		}
	}

	if err := e.InstallWiredLink(topo.WiredLink); err != nil {
		return err
	}

	if err := e.InstallWirelessLink(topo.WirelessLink); err != nil {
		return err
	}

	for _, n := range topo.Nodes {
		if err := e.InstallMobility(n.ID, cfg.Placement[n.ID]); err != nil {
			return err
		}
	}

	for _, a := range cfg.Addresses.Assignments {
		if err := e.AssignAddress(a); err != nil {
			return err
		}
	}

	if err := e.PopulateRoutingTables(); err != nil {
		return err
	}

	e.EnableFlowMonitor(m)

	for _, app := range cfg.Traffic.Applications() {
		if err := e.InstallApplication(app); err != nil {
			return err
		}
	}

	return nil
}
