package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/scenario"
	"github.com/sarchlab/hybridnet/simulation"
	"github.com/spf13/cobra"
)

type runFlags struct {
	scenarioFlags

	database    string
	metrics     string
	monitor     bool
	monitorPort int
	openBrowser bool
	traceEvents bool
}

var runArgs runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scenario and write its flow monitor XML.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScenario(cmd, &runArgs)
	},
}

func init() {
	runArgs.register(runCmd)

	flags := runCmd.Flags()
	flags.StringVar(&runArgs.database, "db", "",
		"Also record the flows into <db>.sqlite3")
	flags.StringVar(&runArgs.metrics, "metrics", "",
		"Write the flow statistics as a Prometheus textfile")
	flags.BoolVar(&runArgs.monitor, "monitor", false,
		"Serve the monitoring page while the simulation runs")
	flags.IntVar(&runArgs.monitorPort, "monitor-port", 0,
		"Port of the monitoring page, random if 0")
	flags.BoolVar(&runArgs.openBrowser, "open-browser", false,
		"Open the monitoring page in the browser")
	flags.BoolVar(&runArgs.traceEvents, "trace-events", false,
		"Print every handled event to stdout")

	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, f *runFlags) error {
	opts, err := f.osOptions(cmd)
	if err != nil {
		return err
	}

	cfg, err := scenario.MakeBuilder().WithOptions(opts).Build()
	if err != nil {
		return err
	}

	b := simulation.MakeBuilder().
		WithSeed(cfg.Seed).
		WithLogger(log.New(os.Stderr, "", log.LstdFlags))

	if f.monitor {
		b = b.WithMonitorPort(f.monitorPort)
		if f.openBrowser {
			b = b.WithBrowser()
		}
	} else {
		b = b.WithoutMonitoring()
	}

	if cmd.Flags().Changed("db") {
		b = b.WithDatabase(f.database)
	}

	var metrics *flowmon.Metrics
	if f.metrics != "" {
		metrics = flowmon.NewMetrics()
		b = b.WithMetrics(metrics)
	}

	if f.traceEvents {
		b = b.WithEventTrace(os.Stdout)
	}

	s, err := b.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stats, err := s.Run(ctx, cfg)
	if termErr := s.Terminate(); err == nil {
		err = termErr
	}

	if err != nil {
		return err
	}

	sum := flowmon.Summarize(stats)
	fmt.Fprintf(os.Stderr,
		"%s: %d flows, %.3f Mbps, %.2f%% lost, %.3f ms average delay\n",
		cfg.RunKey(), sum.Flows, sum.ThroughputMbps, sum.LossPercent,
		sum.AvgDelayMs)

	if metrics != nil {
		return metrics.WriteTextfile(f.metrics)
	}

	return nil
}
