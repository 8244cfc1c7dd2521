package cmd

import (
	"os"

	"github.com/sarchlab/hybridnet/scenario"
	"github.com/spf13/cobra"
)

// scenarioFlags are the scenario options settable from the command line.
type scenarioFlags struct {
	config     string
	nLan       int
	nWifi      int
	protocol   int
	mobility   int
	outputFile string
	seed       uint64
}

func (f *scenarioFlags) register(cmd *cobra.Command) {
	d := scenario.DefaultOptions()
	flags := cmd.Flags()

	flags.StringVar(&f.config, "config", "", "YAML scenario file")
	flags.IntVar(&f.nLan, "nLan", d.WiredNodes, "Number of wired nodes")
	flags.IntVar(&f.nWifi, "nWifi", d.NWifi, "Number of wifi STA devices")
	flags.IntVar(&f.protocol, "protocol", d.Protocol, "0=UDP, 1=TCP, 2=Mixed")
	flags.IntVar(&f.mobility, "mobility", d.Mobility, "0=Static, 1=Mobile")
	flags.StringVar(&f.outputFile, "outputFile", d.OutputFile,
		"Name of the output XML file")
	flags.Uint64Var(&f.seed, "seed", d.Seed, "Seed of the random streams")
}

// options layers the sources of the options. Later layers win: defaults, the
// environment (including the .env file), the scenario file, then the flags
// that were given explicitly.
func (f *scenarioFlags) options(
	cmd *cobra.Command,
	lookup func(string) (string, bool),
) (scenario.Options, error) {
	o, err := scenario.DefaultOptions().FromEnv(lookup)
	if err != nil {
		return o, err
	}

	if f.config != "" {
		o, err = o.LoadFile(f.config)
		if err != nil {
			return o, err
		}
	}

	flags := cmd.Flags()

	if flags.Changed("nLan") {
		o.WiredNodes = f.nLan
	}

	if flags.Changed("nWifi") {
		o.NWifi = f.nWifi
	}

	if flags.Changed("protocol") {
		o.Protocol = f.protocol
	}

	if flags.Changed("mobility") {
		o.Mobility = f.mobility
	}

	if flags.Changed("outputFile") {
		o.OutputFile = f.outputFile
	}

	if flags.Changed("seed") {
		o.Seed = f.seed
	}

	return o, nil
}

func (f *scenarioFlags) osOptions(cmd *cobra.Command) (scenario.Options, error) {
	return f.options(cmd, os.LookupEnv)
}
