package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecTableName is the table describing the program execution.
const ExecTableName = "exec_info"

const execTimeFormat = "2006-01-02 15:04:05.000000000"

type execInfo struct {
	Property string
	Value    string
}

// ExecRecorder records how the program was run.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []execInfo
}

// NewExecRecorder creates the execution table on the recorder.
func NewExecRecorder(r DataRecorder) (*ExecRecorder, error) {
	if err := r.CreateTable(ExecTableName, execInfo{}); err != nil {
		return nil, err
	}

	return &ExecRecorder{recorder: r}, nil
}

// Start notes the start time, the command line and the working directory.
func (e *ExecRecorder) Start() {
	e.Record("Start Time", time.Now().Format(execTimeFormat))
	e.Record("Command", strings.Join(os.Args, " "))

	if wd, err := os.Getwd(); err == nil {
		e.Record("Working Directory", wd)
	}
}

// Record adds a property of the execution.
func (e *ExecRecorder) Record(property, value string) {
	e.entries = append(e.entries, execInfo{property, value})
}

// End writes the properties along with the end time.
func (e *ExecRecorder) End() error {
	e.Record("End Time", time.Now().Format(execTimeFormat))

	for _, entry := range e.entries {
		if err := e.recorder.InsertData(ExecTableName, entry); err != nil {
			return err
		}
	}

	e.entries = nil

	return e.recorder.Flush()
}
