package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	RunCommand    RunCommandReport    `json:"run_command_report"`
	JobLaunch     JobLaunchReport     `json:"job_launch_report"`
	ChildExit     ChildExitReport     `json:"child_exit_report"`
	SignalForward SignalForwardReport `json:"signal_report"`
	Failure       FailureReport       `json:"failure_report"`
	Builtin       BuiltinReport       `json:"builtin_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch event := le.GetLogType().(type) {
	case *RunCommand:
		r.RunCommand.update(event)
	case *JobLaunch:
		r.JobLaunch.update(event)
	case *ChildExit:
		r.ChildExit.update(event)
	case *SignalForward:
		r.SignalForward.update(event)
	case *Failure:
		r.Failure.update(event)
	case *Builtin:
		r.Builtin.update(event)
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%T", event))
	}
}

type RunCommandReport struct {
	Count int `json:"count"`
}

func (r *RunCommandReport) update(rc *RunCommand) {
	r.Count++
}

type JobLaunchReport struct {
	Foreground int `json:"foreground"`
	Background int `json:"background"`
	// Number of jobs by pipeline length.
	PipelineLengths StrCounter `json:"pipeline_lengths"`
	// Name of the programs that were started.
	CommandNames StrCounter `json:"command_names"`
}

func (r *JobLaunchReport) update(jl *JobLaunch) {
	if jl.Background {
		r.Background++
	} else {
		r.Foreground++
	}
	r.PipelineLengths.Increment(fmt.Sprintf("%d", len(jl.Argv)))
	for _, argv := range jl.Argv {
		if len(argv) > 0 {
			r.CommandNames.Increment(argv[0])
		}
	}
}

type ChildExitReport struct {
	States    StrCounter `json:"states"`
	Statuses  StrCounter `json:"statuses"`
	Signals   StrCounter `json:"signals"`
	Untracked int        `json:"untracked"`
}

func (r *ChildExitReport) update(ce *ChildExit) {
	r.States.Increment(ce.State)
	switch ce.State {
	case "exited":
		r.Statuses.Increment(fmt.Sprintf("%d", ce.Status))
	case "signaled", "stopped":
		r.Signals.Increment(ce.Signal)
	}
	if !ce.Tracked {
		r.Untracked++
	}
}

type SignalForwardReport struct {
	Signals StrCounter `json:"signals"`
}

func (r *SignalForwardReport) update(sf *SignalForward) {
	r.Signals.Increment(sf.Signal)
}

type FailureReport struct {
	Failures *PathCounter `json:"failures"`
}

func (r *FailureReport) update(f *Failure) {
	if r.Failures == nil {
		r.Failures = NewPathCounter("kind", "program")
	}
	r.Failures.Increment(f.Kind, f.Program)
}

type BuiltinReport struct {
	Names StrCounter `json:"names"`
}

func (r *BuiltinReport) update(b *Builtin) {
	if len(b.Argv) > 0 {
		r.Names.Increment(b.Argv[0])
	}
}

// SessionReport groups the commands run by each session.
type SessionReport struct {
	// Map of sessionID -> commands
	sessions map[string][]string
}

func (s *SessionReport) Update(le *LogEntry) {
	if s.sessions == nil {
		s.sessions = make(map[string][]string)
	}
	if le.SessionID == "" || le.RunCommand == nil {
		return
	}
	s.sessions[le.SessionID] = append(s.sessions[le.SessionID], strings.TrimSpace(le.RunCommand.Line))
}

// MarshalJSON implemnts custom JSON marshaler.
func (s *SessionReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.sessions)
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for the key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of string tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	var out []Count
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
