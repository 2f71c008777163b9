package logger

// LogEntry is a single line in the event log. Exactly one of the event fields
// is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	RunCommand    *RunCommand    `json:"run_command,omitempty"`
	JobLaunch     *JobLaunch     `json:"job_launch,omitempty"`
	ChildExit     *ChildExit     `json:"child_exit,omitempty"`
	SignalForward *SignalForward `json:"signal_forward,omitempty"`
	Failure       *Failure       `json:"failure,omitempty"`
	Builtin       *Builtin       `json:"builtin,omitempty"`
}

// LogType is implemented by every event that can be recorded.
type LogType interface {
	setOn(le *LogEntry)
}

// GetLogType returns the event held by the entry or nil.
func (le *LogEntry) GetLogType() LogType {
	switch {
	case le.RunCommand != nil:
		return le.RunCommand
	case le.JobLaunch != nil:
		return le.JobLaunch
	case le.ChildExit != nil:
		return le.ChildExit
	case le.SignalForward != nil:
		return le.SignalForward
	case le.Failure != nil:
		return le.Failure
	case le.Builtin != nil:
		return le.Builtin
	default:
		return nil
	}
}

// RunCommand is logged for every line the shell accepts.
type RunCommand struct {
	Line string `json:"line"`
}

func (e *RunCommand) setOn(le *LogEntry) { le.RunCommand = e }

// JobLaunch is logged once all stages of a job have been spawned.
type JobLaunch struct {
	Pgid       int        `json:"pgid"`
	Pids       []int      `json:"pids"`
	Argv       [][]string `json:"argv"`
	Background bool       `json:"background"`
}

func (e *JobLaunch) setOn(le *LogEntry) { le.JobLaunch = e }

// ChildExit is logged for every child the reaper collects or sees change state.
type ChildExit struct {
	Pid    int    `json:"pid"`
	Pgid   int    `json:"pgid,omitempty"`
	Status int    `json:"status"`
	Signal string `json:"signal,omitempty"`
	// State is one of "exited", "signaled", "stopped", "continued".
	State string `json:"state"`
	// Tracked is false if the child didn't belong to a known job.
	Tracked bool `json:"tracked"`
}

func (e *ChildExit) setOn(le *LogEntry) { le.ChildExit = e }

// SignalForward is logged when the shell delivers a signal to a job.
type SignalForward struct {
	Signal string `json:"signal"`
	Pgid   int    `json:"pgid"`
}

func (e *SignalForward) setOn(le *LogEntry) { le.SignalForward = e }

// Failure is logged for errors reported to the user.
type Failure struct {
	Kind    string `json:"kind"`
	Program string `json:"program,omitempty"`
	Stage   int    `json:"stage"`
	Error   string `json:"error"`
}

func (e *Failure) setOn(le *LogEntry) { le.Failure = e }

// Builtin is logged when a shell builtin runs.
type Builtin struct {
	Argv   []string `json:"argv"`
	Status int      `json:"status"`
}

func (e *Builtin) setOn(le *LogEntry) { le.Builtin = e }
