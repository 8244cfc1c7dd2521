package flowmon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// Summary aggregates the flows of one run.
type Summary struct {
	Flows       int
	TxPackets   uint64
	RxPackets   uint64
	LostPackets uint64

	// ThroughputMbps sums, over the flows, the received bits divided by the
	// time between the first and the last received packet.
	ThroughputMbps float64
	LossPercent    float64
	AvgDelayMs     float64
}

// Summarize computes the aggregate throughput, loss and delay of a run.
func Summarize(s *Statistics) Summary {
	var (
		sum      Summary
		delaySum float64
	)

	for _, f := range s.Flows {
		st := f.Stats
		sum.Flows++

		duration := float64(st.TimeLastRxPacket - st.TimeFirstRxPacket)
		if duration > 0 {
			sum.ThroughputMbps += float64(st.RxBytes) * 8 / (duration * 1e6)
		}

		delaySum += float64(st.DelaySum)
		sum.TxPackets += uint64(st.TxPackets)
		sum.RxPackets += uint64(st.RxPackets)
		sum.LostPackets += uint64(st.LostPackets)
	}

	if sum.TxPackets > 0 {
		sum.LossPercent = float64(sum.LostPackets) / float64(sum.TxPackets) * 100
	}

	if sum.RxPackets > 0 {
		sum.AvgDelayMs = delaySum / float64(sum.RxPackets) * 1e3
	}

	return sum
}

// RunKey names a run of a sweep.
type RunKey struct {
	Protocol string
	Mobility string
	Clients  int
}

func (k RunKey) String() string {
	return fmt.Sprintf("%s_%s_%d", k.Protocol, k.Mobility, k.Clients)
}

// FileName returns the conventional output name of the run,
// flow_<protocol>_<mobility>_<clients>.xml.
func (k RunKey) FileName() string {
	return "flow_" + k.String() + ".xml"
}

// ParseRunKey extracts the run key from a conventional output name.
func ParseRunKey(path string) (RunKey, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(strings.TrimPrefix(base, "flow_"), ".xml")

	parts := strings.Split(name, "_")
	if len(parts) != 3 || name == base {
		return RunKey{}, fmt.Errorf("%q is not named flow_<protocol>_<mobility>_<n>.xml", base)
	}

	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return RunKey{}, fmt.Errorf("%q: invalid client count: %w", base, err)
	}

	return RunKey{Protocol: parts[0], Mobility: parts[1], Clients: n}, nil
}

// SummaryRow is one line of a sweep summary.
type SummaryRow struct {
	Protocol       string  `csv:"protocol"`
	Mobility       string  `csv:"mobility"`
	Clients        int     `csv:"clients"`
	Flows          int     `csv:"flows"`
	ThroughputMbps float64 `csv:"throughput_mbps"`
	LossPercent    float64 `csv:"packet_loss_percent"`
	AvgDelayMs     float64 `csv:"avg_delay_ms"`
}

// NewSummaryRow combines a run key and its summary.
func NewSummaryRow(k RunKey, s Summary) SummaryRow {
	return SummaryRow{
		Protocol:       k.Protocol,
		Mobility:       k.Mobility,
		Clients:        k.Clients,
		Flows:          s.Flows,
		ThroughputMbps: s.ThroughputMbps,
		LossPercent:    s.LossPercent,
		AvgDelayMs:     s.AvgDelayMs,
	}
}

// WriteSummaryCSV writes the rows with a header line.
func WriteSummaryCSV(w io.Writer, rows []SummaryRow) error {
	return gocsv.Marshal(rows, w)
}

// WriteSummaryCSVFile writes the rows to a file.
func WriteSummaryCSVFile(path string, rows []SummaryRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteSummaryCSV(f, rows); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// ReadSummaryCSV reads rows written by WriteSummaryCSV.
func ReadSummaryCSV(r io.Reader) ([]SummaryRow, error) {
	var rows []SummaryRow

	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}
