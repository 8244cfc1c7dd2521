package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/spf13/cobra"
)

var (
	summaryHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#00FFFF")).
				Padding(0, 1)
	summaryCellStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Align(lipgloss.Right)
	summaryBorderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))
)

type summarizeFlags struct {
	dir string
	csv string
}

var summarizeArgs summarizeFlags

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize the flow monitor files of a sweep.",
	Long: `summarize reads every flow_<protocol>_<mobility>_<clients>.xml ` +
		`file of a directory and reports the throughput, the packet loss ` +
		`and the average delay of each run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows, err := collectSummaries(summarizeArgs.dir)
		if err != nil {
			return err
		}

		if err := writeSummary(cmd.OutOrStdout(), rows); err != nil {
			return err
		}

		if summarizeArgs.csv != "" {
			return flowmon.WriteSummaryCSVFile(summarizeArgs.csv, rows)
		}

		return nil
	},
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeArgs.dir, "dir", ".",
		"Directory holding the XML files")
	summarizeCmd.Flags().StringVar(&summarizeArgs.csv, "csv", "",
		"Also write the summary as CSV")

	rootCmd.AddCommand(summarizeCmd)
}

// collectSummaries summarizes every conventionally named file of the
// directory, sorted by protocol, mobility and client count.
func collectSummaries(dir string) ([]flowmon.SummaryRow, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "flow_*.xml"))
	if err != nil {
		return nil, err
	}

	rows := make([]flowmon.SummaryRow, 0, len(paths))

	for _, path := range paths {
		key, err := flowmon.ParseRunKey(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", path, err)
			continue
		}

		stats, err := flowmon.ReadXMLFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		rows = append(rows, flowmon.NewSummaryRow(key, flowmon.Summarize(stats)))
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}

		if a.Mobility != b.Mobility {
			return a.Mobility < b.Mobility
		}

		return a.Clients < b.Clients
	})

	return rows, nil
}

func renderSummary(rows []flowmon.SummaryRow) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(summaryBorderStyle).
		Headers("Protocol", "Mobility", "Clients", "Flows",
			"Throughput (Mbps)", "Loss (%)", "Delay (ms)").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return summaryHeaderStyle
			}

			return summaryCellStyle
		})

	for _, r := range rows {
		t.Row(
			r.Protocol,
			r.Mobility,
			strconv.Itoa(r.Clients),
			strconv.Itoa(r.Flows),
			strconv.FormatFloat(r.ThroughputMbps, 'f', 3, 64),
			strconv.FormatFloat(r.LossPercent, 'f', 2, 64),
			strconv.FormatFloat(r.AvgDelayMs, 'f', 3, 64),
		)
	}

	return t.Render()
}

func writeSummary(w io.Writer, rows []flowmon.SummaryRow) error {
	_, err := fmt.Fprintln(w, renderSummary(rows))
	return err
}
