package simulation

import (
	"io"
	"log"

	"github.com/rs/xid"
	"github.com/sarchlab/hybridnet/datarecording"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/monitoring"
	"github.com/sarchlab/hybridnet/netsim"
	"github.com/sarchlab/hybridnet/sim"
)

// Builder can be used to build a simulation.
type Builder struct {
	seed         uint64
	monitorOn    bool
	monitorPort  int
	openBrowser  bool
	databasePath string
	recordOn     bool
	metrics      *flowmon.Metrics
	eventTrace   io.Writer
	logger       *log.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		seed:      netsim.DefaultSeed,
		monitorOn: true,
	}
}

// WithSeed sets the seed of the random streams of the network.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitoring page once the server is up.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithDatabase records the flows and the execution information into
// <path>.sqlite3. An empty path picks a unique name.
func (b Builder) WithDatabase(path string) Builder {
	b.recordOn = true
	b.databasePath = path

	return b
}

// WithMetrics publishes the flow statistics as gauges.
func (b Builder) WithMetrics(m *flowmon.Metrics) Builder {
	b.metrics = m
	return b
}

// WithEventTrace prints every handled event to the writer.
func (b Builder) WithEventTrace(w io.Writer) Builder {
	b.eventTrace = w
	return b
}

// WithLogger sets the logger that reports the progress of the run.
func (b Builder) WithLogger(l *log.Logger) Builder {
	b.logger = l
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && (b.monitorPort != 0 || b.openBrowser) {
		panic("monitor options cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		id:      xid.New().String(),
		engine:  sim.NewSerialEngine(),
		flows:   flowmon.NewMonitor(),
		metrics: b.metrics,
		logger:  b.logger,
	}

	s.network = netsim.MakeBuilder().
		WithEngine(s.engine).
		WithSeed(b.seed).
		Build()

	if b.eventTrace != nil {
		s.engine.AcceptHook(sim.NewEventLogger(log.New(b.eventTrace, "", 0)))
	}

	if b.recordOn {
		if err := s.createRecorders(b.databasePath); err != nil {
			return nil, err
		}
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().WithPortNumber(b.monitorPort)
		s.monitor.RegisterEngine(s.engine)
		s.monitor.RegisterFlowSource(s.flows)

		s.monitorURL = s.monitor.StartServer()
		if b.openBrowser {
			s.monitor.OpenBrowser(s.monitorURL)
		}
	}

	return s, nil
}

func (s *Simulation) createRecorders(path string) error {
	r, err := datarecording.New(path)
	if err != nil {
		return err
	}

	s.dataRecorder = r

	if s.flowRecorder, err = datarecording.NewFlowRecorder(r); err != nil {
		return err
	}

	if s.execRecorder, err = datarecording.NewExecRecorder(r); err != nil {
		return err
	}

	s.execRecorder.Record("Simulation ID", s.id)

	return nil
}
