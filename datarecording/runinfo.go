package datarecording

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/structs"
)

// RunInfoTable is the table that describes the run.
const RunInfoTable = "run_info"

// RunInfo is one property of a run.
type RunInfo struct {
	Property string
	Value    string
}

const timeLayout = "2006-01-02 15:04:05.000000000"

// runInfoRecorder records how the program was started and when it ended.
type runInfoRecorder struct {
	recorder DataRecorder
	entries  []RunInfo
}

func newRunInfoRecorder(recorder DataRecorder) *runInfoRecorder {
	recorder.CreateTable(RunInfoTable, RunInfo{})

	return &runInfoRecorder{recorder: recorder}
}

func (e *runInfoRecorder) add(property, value string) {
	e.entries = append(e.entries, RunInfo{property, value})
}

// start notes the start time and the command line.
func (e *runInfoRecorder) start(runID string) {
	e.add("Run ID", runID)
	e.add("Start Time", time.Now().Format(timeLayout))
	e.add("Command", strings.Join(os.Args, " "))

	if cwd, err := os.Getwd(); err == nil {
		e.add("Working Directory", cwd)
	}
}

// config notes every configuration value under its INI key.
func (e *runInfoRecorder) config(cfg any) {
	s := structs.New(cfg)
	s.TagName = "ini"

	values := s.Map()
	keys := make([]string, 0, len(values))

	for k := range values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		e.add(k, fmt.Sprint(values[k]))
	}
}

// end writes the entries along with the end time.
func (e *runInfoRecorder) end() {
	e.add("End Time", time.Now().Format(timeLayout))

	for _, entry := range e.entries {
		e.recorder.InsertData(RunInfoTable, entry)
	}

	e.entries = nil
}
