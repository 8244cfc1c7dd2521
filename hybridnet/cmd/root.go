// Package cmd provides the command-line interface of hybridnet.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var envFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hybridnet",
	Short: "Simulates a wired LAN bridged to a Wi-Fi access segment.",
	Long: `hybridnet builds a shared-medium wired backbone bridged to a ` +
		`wireless access segment, installs client traffic, runs the ` +
		`simulation and writes per-flow statistics as flow monitor XML.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return loadEnvFile(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"File with HYBRIDNET_* variables to load before reading the options")
}

// loadEnvFile loads the variables of the file into the environment without
// overriding the ones already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
