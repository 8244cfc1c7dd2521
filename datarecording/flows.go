package datarecording

import (
	"github.com/sarchlab/hybridnet/flowmon"
)

// FlowTableName is the table holding one row per flow and run.
const FlowTableName = "flows"

// FlowEntry is the row stored for one flow of a run.
type FlowEntry struct {
	Run             string
	FlowID          uint32
	Protocol        string
	Source          string
	SourcePort      uint16
	Destination     string
	DestinationPort uint16
	TxBytes         uint64
	RxBytes         uint64
	TxPackets       uint32
	RxPackets       uint32
	LostPackets     uint32
	TimesForwarded  uint32
	FirstTxSec      float64
	LastRxSec       float64
	DelaySumSec     float64
	JitterSumSec    float64
}

// NewFlowEntry flattens a flow of a run.
func NewFlowEntry(run string, f flowmon.Flow) FlowEntry {
	return FlowEntry{
		Run:             run,
		FlowID:          uint32(f.ID),
		Protocol:        f.Tuple.Protocol.String(),
		Source:          f.Tuple.Src.String(),
		SourcePort:      f.Tuple.SrcPort,
		Destination:     f.Tuple.Dst.String(),
		DestinationPort: f.Tuple.DstPort,
		TxBytes:         f.Stats.TxBytes,
		RxBytes:         f.Stats.RxBytes,
		TxPackets:       f.Stats.TxPackets,
		RxPackets:       f.Stats.RxPackets,
		LostPackets:     f.Stats.LostPackets,
		TimesForwarded:  f.Stats.TimesForwarded,
		FirstTxSec:      float64(f.Stats.TimeFirstTxPacket),
		LastRxSec:       float64(f.Stats.TimeLastRxPacket),
		DelaySumSec:     float64(f.Stats.DelaySum),
		JitterSumSec:    float64(f.Stats.JitterSum),
	}
}

// FlowRecorder writes the flows of finished runs into the flows table.
type FlowRecorder struct {
	recorder DataRecorder
}

// NewFlowRecorder creates the flows table on the recorder.
func NewFlowRecorder(r DataRecorder) (*FlowRecorder, error) {
	if err := r.CreateTable(FlowTableName, FlowEntry{}); err != nil {
		return nil, err
	}

	return &FlowRecorder{recorder: r}, nil
}

// RecordFlows buffers one row per flow. It is safe to call from parallel
// runs.
func (r *FlowRecorder) RecordFlows(run string, s *flowmon.Statistics) error {
	for _, f := range s.Flows {
		if err := r.recorder.InsertData(FlowTableName, NewFlowEntry(run, f)); err != nil {
			return err
		}
	}

	return nil
}
