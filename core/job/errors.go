package job

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// Failure classifies errors the shell reports to the user. None of them stop
// the shell.
type Failure int

const (
	// ParseFailure is a line that couldn't be parsed, nothing was run.
	ParseFailure Failure = iota + 1
	// SpawnFailure means a process or pipe couldn't be created; the rest of
	// the pipeline is abandoned.
	SpawnFailure
	// ExecFailure means a program couldn't be found or executed. Only the
	// failing stage is affected.
	ExecFailure
	// RedirectFailure means a redirect file couldn't be opened. The stage
	// needing it isn't run.
	RedirectFailure
	// DirectoryChangeFailure is a failed cd.
	DirectoryChangeFailure
)

func (f Failure) String() string {
	switch f {
	case ParseFailure:
		return "ParseFailure"
	case SpawnFailure:
		return "SpawnFailure"
	case ExecFailure:
		return "ExecFailure"
	case RedirectFailure:
		return "RedirectFailure"
	case DirectoryChangeFailure:
		return "DirectoryChangeFailure"
	default:
		return fmt.Sprintf("Failure(%d)", int(f))
	}
}

// ErrNoStoppedJob is returned when resuming without a stopped job.
var ErrNoStoppedJob = errors.New("no stopped job")

// StageError is a failure tied to a single pipeline stage.
type StageError struct {
	Kind Failure
	// Stage is the index of the stage in execution order.
	Stage int
	// Name is the program or file the error is about.
	Name string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, reason(e.Err))
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// reason turns common errors into the terse messages shells print.
func reason(err error) string {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, ErrNotFound):
		return "command not found"
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, fs.ErrNotExist):
		return "no such file or directory"
	case errors.As(err, &pathErr):
		return pathErr.Err.Error()
	default:
		return err.Error()
	}
}

// isResourceExhaustion reports whether a spawn error means the system is out
// of processes, memory or descriptors rather than the program being bad.
func isResourceExhaustion(err error) bool {
	for _, errno := range []unix.Errno{unix.EAGAIN, unix.ENOMEM, unix.EMFILE, unix.ENFILE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// classifySpawnError wraps an error from creating a stage's process.
func classifySpawnError(stage int, name string, err error) *StageError {
	kind := ExecFailure
	if isResourceExhaustion(err) {
		kind = SpawnFailure
	}
	return &StageError{Kind: kind, Stage: stage, Name: name, Err: err}
}
