package job

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"syscall"

	"github.com/josephlewis42/lsh/core/logger"
	"golang.org/x/sys/unix"
)

const (
	// DefaultExecFailureStatus is the status of a stage whose program
	// couldn't be executed. It's outside the range programs normally use.
	DefaultExecFailureStatus = 255
	// DefaultRedirectFailureStatus is the status of a stage whose redirect
	// couldn't be opened.
	DefaultRedirectFailureStatus = 1
)

// EventRecorder stores shell events.
type EventRecorder interface {
	Record(event logger.LogType) error
}

// Options configures a Manager.
type Options struct {
	// Standard streams inherited by jobs. Default to the process's own.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// JobControl hands the terminal to foreground jobs when Stdin is the
	// controlling terminal. Without it, foreground jobs reading a terminal
	// stay in the shell's process group so they can use it.
	JobControl bool

	ExecFailureStatus     int
	RedirectFailureStatus int

	// Log receives operator diagnostics, discarded if nil.
	Log *log.Logger
	// Events receives the event log, discarded if nil.
	Events EventRecorder
}

// Manager launches jobs and tracks the single foreground job. It owns every
// child the shell creates: children are only ever reaped through Reap.
type Manager struct {
	opts     Options
	log      *log.Logger
	events   EventRecorder
	terminal *terminal
	// shareGroup keeps foreground jobs in the shell's process group.
	shareGroup bool
	pipe       func() (r, w *os.File, err error)

	mu         sync.Mutex
	byPid      map[int]*Job
	byPgid     map[int]*Job
	foreground *Job
	stopped    *Job
	notices    []Notice
}

// NewManager creates a Manager, filling in defaults for unset options.
func NewManager(opts Options) *Manager {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.ExecFailureStatus == 0 {
		opts.ExecFailureStatus = DefaultExecFailureStatus
	}
	if opts.RedirectFailureStatus == 0 {
		opts.RedirectFailureStatus = DefaultRedirectFailureStatus
	}

	m := &Manager{
		opts:   opts,
		log:    opts.Log,
		events: opts.Events,
		byPid:  make(map[int]*Job),
		byPgid: make(map[int]*Job),
		pipe:   os.Pipe,
	}
	if m.log == nil {
		m.log = log.New(io.Discard, "", 0)
	}
	if m.events == nil {
		m.events = logger.NopRecorder{}
	}
	if opts.JobControl {
		m.terminal = newTerminal(opts.Stdin)
	}
	// A foreground job in its own group can't read a terminal it doesn't own.
	m.shareGroup = m.terminal == nil && isTerminal(opts.Stdin)
	return m
}

// Run starts the plan. Background jobs return immediately after launch.
// Foreground jobs become the foreground job atomically with their launch and
// Run blocks until the job is done or stopped.
//
// A Coordinator must be running: it services SIGCHLD, which is what wakes Run.
func (m *Manager) Run(ctx context.Context, plan *Plan) (*Job, error) {
	foreground := !plan.Background

	m.mu.Lock()
	j, err := m.launch(plan, foreground)
	if err != nil {
		if foreground && m.terminal != nil && j.Pgid != 0 {
			m.reclaimTerminal()
		}
		m.mu.Unlock()
		return j, err
	}
	if foreground && j.state != Done {
		m.foreground = j
	}
	m.mu.Unlock()

	if !foreground {
		m.log.Printf("started background job %d: %q", j.Pgid, plan.Line)
		// Opportunistic; SIGCHLD does the authoritative reaping.
		m.Reap()
		return j, nil
	}

	return j, m.waitForeground(ctx, j)
}

// Resume continues the most recently stopped job in the foreground.
func (m *Manager) Resume(ctx context.Context) (*Job, error) {
	m.mu.Lock()
	j := m.stopped
	if j == nil || j.state == Done {
		m.stopped = nil
		m.mu.Unlock()
		return nil, ErrNoStoppedJob
	}
	m.stopped = nil

	if m.terminal != nil {
		if err := m.terminal.setForeground(j.Pgid); err != nil {
			m.log.Printf("couldn't give terminal to %d: %v", j.Pgid, err)
		}
	}
	m.signalGroup(j, unix.SIGCONT)
	j.resumed()
	j.Background = false
	m.foreground = j
	m.mu.Unlock()

	return j, m.waitForeground(ctx, j)
}

// waitForeground blocks until j is done or stopped, then takes the terminal
// back and clears the foreground marker.
func (m *Manager) waitForeground(ctx context.Context, j *Job) error {
	err := m.Wait(ctx, j)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.foreground == j {
		m.foreground = nil
	}
	if m.terminal != nil {
		m.reclaimTerminal()
	}

	switch {
	case err != nil:
		// The job keeps running unattended.
		j.Background = true
	case j.state == Stopped:
		j.Background = true
		m.stopped = j
	}
	return err
}

// Wait blocks until j is done or stopped.
func (m *Manager) Wait(ctx context.Context, j *Job) error {
	for {
		m.mu.Lock()
		state := j.state
		m.mu.Unlock()

		if state != Running {
			return nil
		}

		select {
		case <-j.changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// State returns the current state of j.
func (m *Manager) State(j *Job) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return j.state
}

// Foreground returns the job currently marked as foreground, or nil.
func (m *Manager) Foreground() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.foreground
}

// Stopped returns the job the next Resume will continue, or nil.
func (m *Manager) Stopped() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Interrupt delivers SIGINT to the foreground job's process group and clears
// the foreground marker. It returns false if there was no foreground job.
// Background jobs are never affected.
func (m *Manager) Interrupt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j := m.foreground
	if j == nil {
		return false
	}
	m.signalGroup(j, unix.SIGINT)
	m.foreground = nil
	return true
}

// Suspend delivers SIGTSTP to the foreground job's process group. The job is
// recorded as stopped once the reaper sees every member stop. It returns false
// if there was no foreground job.
func (m *Manager) Suspend() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j := m.foreground
	if j == nil {
		return false
	}
	m.signalGroup(j, unix.SIGTSTP)
	return true
}

// Shutdown signals every live job the shell started, then continues them so
// stopped jobs see the signal. It returns the number of jobs signaled.
func (m *Manager) Shutdown(sig syscall.Signal) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.byPgid {
		m.signalGroup(j, sig)
		m.signalGroup(j, unix.SIGCONT)
	}
	return len(m.byPgid)
}

// Live returns the number of jobs that still have unreaped members.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPgid)
}

// Notices returns and clears the state changes of background jobs since the
// last call.
func (m *Manager) Notices() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.notices
	m.notices = nil
	return out
}

// signalGroup delivers sig to every member of j. Jobs sharing the shell's
// process group are signaled one process at a time. It must be called with
// m.mu held.
func (m *Manager) signalGroup(j *Job, sig syscall.Signal) {
	if j.Pgid == 0 {
		return
	}

	if j.sharesGroup {
		for pid := range j.members {
			if err := unix.Kill(pid, sig); err != nil {
				m.log.Printf("kill(%d, %v): %v", pid, sig, err)
			}
		}
	} else if err := unix.Kill(-j.Pgid, sig); err != nil {
		m.log.Printf("kill(-%d, %v): %v", j.Pgid, sig, err)
		return
	}
	m.events.Record(&logger.SignalForward{Signal: sig.String(), Pgid: j.Pgid})
}

// reclaimTerminal must be called with m.mu held.
func (m *Manager) reclaimTerminal() {
	if err := m.terminal.reclaim(); err != nil {
		m.log.Printf("couldn't reclaim terminal: %v", err)
	}
}
