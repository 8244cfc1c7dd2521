// Package simulation bundles the services around a scenario run: the network
// engine, the flow monitor, the web monitor and the database recorder.
package simulation

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/sarchlab/hybridnet/datarecording"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/monitoring"
	"github.com/sarchlab/hybridnet/netsim"
	"github.com/sarchlab/hybridnet/scenario"
	"github.com/sarchlab/hybridnet/sim"
)

// A Simulation provides the services required to run a scenario.
type Simulation struct {
	id      string
	engine  *sim.SerialEngine
	network *netsim.Network
	flows   *flowmon.Monitor
	metrics *flowmon.Metrics
	logger  *log.Logger

	dataRecorder datarecording.DataRecorder
	flowRecorder *datarecording.FlowRecorder
	execRecorder *datarecording.ExecRecorder
	monitor      *monitoring.Monitor
	monitorURL   string
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() *sim.SerialEngine {
	return s.engine
}

// GetNetwork returns the network the scenario is installed on.
func (s *Simulation) GetNetwork() *netsim.Network {
	return s.network
}

// GetFlowMonitor returns the flow monitor of the simulation.
func (s *Simulation) GetFlowMonitor() *flowmon.Monitor {
	return s.flows
}

// GetDataRecorder returns the data recorder used in the simulation, or nil if
// recording is off.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation, or nil if monitoring
// is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring page.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// Run runs the scenario on the simulation's network.
func (s *Simulation) Run(
	ctx context.Context,
	cfg scenario.ScenarioConfig,
) (*flowmon.Statistics, error) {
	if s.monitor != nil {
		s.monitor.RegisterScenario(&cfg)
	}

	opts := []scenario.RunOption{
		scenario.WithEngine(s.network),
		scenario.WithMonitor(s.flows),
	}

	if s.flowRecorder != nil {
		opts = append(opts, scenario.WithRecorder(s.flowRecorder))
	}

	if s.metrics != nil {
		opts = append(opts, scenario.WithMetrics(s.metrics))
	}

	if s.logger != nil {
		opts = append(opts, scenario.WithLogger(s.logger))
	}

	if s.execRecorder != nil {
		s.execRecorder.Start()
		s.execRecorder.Record("Run", cfg.RunKey().String())
		s.execRecorder.Record("Seed", strconv.FormatUint(cfg.Seed, 10))
	}

	stats, err := scenario.Run(ctx, cfg, opts...)

	if s.execRecorder != nil {
		status := "ok"
		if err != nil {
			status = err.Error()
		}

		s.execRecorder.Record("Status", status)
		err = errors.Join(err, s.execRecorder.End())
	}

	return stats, err
}

// Terminate flushes the recorder and stops the monitoring server.
func (s *Simulation) Terminate() error {
	var errs []error

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		errs = append(errs, s.monitor.StopServer(ctx))
	}

	if s.dataRecorder != nil {
		errs = append(errs, s.dataRecorder.Close())
	}

	return errors.Join(errs...)
}
