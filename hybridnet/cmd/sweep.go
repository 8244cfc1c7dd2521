package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/sarchlab/hybridnet/datarecording"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/mobility"
	"github.com/sarchlab/hybridnet/monitoring"
	"github.com/sarchlab/hybridnet/scenario"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/sarchlab/hybridnet/traffic"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type sweepFlags struct {
	scenarioFlags

	protocols   []string
	mobilities  []string
	clients     []int
	outDir      string
	jobs        int
	database    string
	metrics     string
	monitor     bool
	monitorPort int
}

var sweepArgs sweepFlags

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run every protocol, mobility and client count combination.",
	Long: `sweep runs one scenario per combination of protocol, mobility ` +
		`and number of wireless clients, and writes the statistics of each ` +
		`run to flow_<protocol>_<mobility>_<clients>.xml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSweep(cmd, &sweepArgs)
	},
}

func init() {
	sweepArgs.register(sweepCmd)

	flags := sweepCmd.Flags()
	flags.StringSliceVar(&sweepArgs.protocols, "protocols",
		[]string{"udp", "tcp", "mixed"}, "Protocols to sweep")
	flags.StringSliceVar(&sweepArgs.mobilities, "mobilities",
		[]string{"static", "mobile"}, "Mobility modes to sweep")
	flags.IntSliceVar(&sweepArgs.clients, "clients",
		[]int{1, 2, 4, 8, 16, 32}, "Numbers of wireless clients to sweep")
	flags.StringVar(&sweepArgs.outDir, "out", ".",
		"Directory receiving the XML files")
	flags.IntVar(&sweepArgs.jobs, "jobs", runtime.NumCPU(),
		"Number of runs executed in parallel")
	flags.StringVar(&sweepArgs.database, "db", "",
		"Also record the flows of every run into <db>.sqlite3")
	flags.StringVar(&sweepArgs.metrics, "metrics", "",
		"Write the flow statistics of every run as a Prometheus textfile")
	flags.BoolVar(&sweepArgs.monitor, "monitor", false,
		"Serve the sweep progress while the runs execute")
	flags.IntVar(&sweepArgs.monitorPort, "monitor-port", 0,
		"Port of the monitoring page, random if 0")

	rootCmd.AddCommand(sweepCmd)
}

// sweepPoint is one combination of a sweep.
type sweepPoint struct {
	Protocol traffic.Protocol
	Mobility mobility.Mode
	Clients  int
}

func (p sweepPoint) key() flowmon.RunKey {
	return flowmon.RunKey{
		Protocol: p.Protocol.String(),
		Mobility: p.Mobility.String(),
		Clients:  p.Clients,
	}
}

// sweepPoints expands the selectors into the list of runs, protocol-major.
func sweepPoints(protocols, mobilities []string, clients []int) ([]sweepPoint, error) {
	var points []sweepPoint

	for _, ps := range protocols {
		p, err := traffic.ParseProtocol(ps)
		if err != nil {
			return nil, err
		}

		for _, ms := range mobilities {
			m, err := mobility.ParseMode(ms)
			if err != nil {
				return nil, err
			}

			for _, n := range clients {
				points = append(points, sweepPoint{p, m, n})
			}
		}
	}

	return points, nil
}

// sweepConfigs builds and validates every run before any of them starts.
func sweepConfigs(
	base scenario.Options,
	points []sweepPoint,
	outDir string,
) ([]scenario.ScenarioConfig, error) {
	cfgs := make([]scenario.ScenarioConfig, 0, len(points))

	for _, p := range points {
		cfg, err := scenario.MakeBuilder().
			WithOptions(base).
			WithProtocol(p.Protocol).
			WithMobility(p.Mobility).
			WithWifiNodes(p.Clients).
			WithOutputFile(filepath.Join(outDir, p.key().FileName())).
			Build()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.key(), err)
		}

		cfgs = append(cfgs, cfg)
	}

	return cfgs, nil
}

// sweeper runs the configurations with bounded parallelism.
type sweeper struct {
	jobs     int
	opts     []scenario.RunOption
	progress *monitoring.ProgressBar
}

func (s *sweeper) run(ctx context.Context, cfgs []scenario.ScenarioConfig) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs)

	for _, cfg := range cfgs {
		g.Go(func() error {
			if s.progress != nil {
				s.progress.IncrementInProgress(1)
				defer s.progress.MoveInProgressToFinished(1)
			}

			_, err := scenario.Run(ctx, cfg, s.opts...)
			if err != nil {
				return fmt.Errorf("%s: %w", cfg.RunKey(), err)
			}

			fmt.Fprintf(os.Stderr, "Finished %s\n", cfg.OutputFile)

			return nil
		})
	}

	return g.Wait()
}

func runSweep(cmd *cobra.Command, f *sweepFlags) error {
	if f.jobs < 1 {
		return fmt.Errorf("invalid jobs %d: must be at least 1", f.jobs)
	}

	sim.UseParallelIDGenerator()

	base, err := f.osOptions(cmd)
	if err != nil {
		return err
	}

	points, err := sweepPoints(f.protocols, f.mobilities, f.clients)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return err
	}

	cfgs, err := sweepConfigs(base, points, f.outDir)
	if err != nil {
		return err
	}

	s := &sweeper{jobs: f.jobs}

	if cmd.Flags().Changed("db") {
		r, err := datarecording.New(f.database)
		if err != nil {
			return err
		}
		defer r.Close()

		fr, err := datarecording.NewFlowRecorder(r)
		if err != nil {
			return err
		}

		s.opts = append(s.opts, scenario.WithRecorder(fr))
	}

	var metrics *flowmon.Metrics
	if f.metrics != "" {
		metrics = flowmon.NewMetrics()
		s.opts = append(s.opts, scenario.WithMetrics(metrics))
	}

	if f.monitor {
		m := monitoring.NewMonitor().WithPortNumber(f.monitorPort)
		m.StartServer()
		defer func() { _ = m.StopServer(context.Background()) }()

		s.progress = m.CreateProgressBar("sweep", uint64(len(cfgs)))
		defer m.CompleteProgressBar(s.progress)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := s.run(ctx, cfgs); err != nil {
		return err
	}

	if metrics != nil {
		return metrics.WriteTextfile(f.metrics)
	}

	return nil
}
