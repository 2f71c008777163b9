package job

import (
	"fmt"
	"strings"
	"syscall"
)

// State is the lifecycle state of a Job.
type State int

const (
	Running State = iota
	Stopped
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is how a stage ended.
type Status struct {
	// Code is the exit code, or 128 + the signal number if the process was
	// killed by a signal.
	Code int
	// Signal is set if the process was terminated by a signal.
	Signal syscall.Signal
}

func exitedStatus(ws syscall.WaitStatus) Status {
	if ws.Signaled() {
		return Status{Code: 128 + int(ws.Signal()), Signal: ws.Signal()}
	}
	return Status{Code: ws.ExitStatus()}
}

type member struct {
	stage   int
	stopped bool
}

// Job is a running instance of a Plan. All of its fields are guarded by the
// Manager that created it.
type Job struct {
	// Pgid is the process group shared by every stage, equal to the pid of
	// the first stage that was started. If sharesGroup is set the stages are
	// in the shell's group and Pgid only identifies the job.
	Pgid       int
	Line       string
	Background bool

	sharesGroup bool

	argv     [][]string
	members  map[int]*member
	pids     []int
	statuses []Status
	running  int
	stopped  int
	state    State

	// changed is signaled whenever state changes.
	changed chan struct{}
}

func newJob(plan *Plan) *Job {
	return &Job{
		Line:       plan.Line,
		Background: plan.Background,
		argv:       plan.Argv(),
		members:    make(map[int]*member),
		statuses:   make([]Status, len(plan.Stages)),
		changed:    make(chan struct{}, 1),
	}
}

func (j *Job) notify() {
	select {
	case j.changed <- struct{}{}:
	default:
	}
}

func (j *Job) add(stage, pid int) {
	if j.Pgid == 0 {
		j.Pgid = pid
	}
	j.members[pid] = &member{stage: stage}
	j.pids = append(j.pids, pid)
	j.running++
}

// fail records the status of a stage that never started.
func (j *Job) fail(stage, code int) {
	j.statuses[stage] = Status{Code: code}
}

// settle marks the job done if nothing was started or everything exited.
func (j *Job) settle() {
	if j.running == 0 {
		j.state = Done
		j.notify()
	}
}

func (j *Job) exited(pid int, ws syscall.WaitStatus) {
	m, ok := j.members[pid]
	if !ok {
		return
	}
	delete(j.members, pid)
	if m.stopped {
		j.stopped--
	}
	j.statuses[m.stage] = exitedStatus(ws)
	j.running--

	switch {
	case j.running == 0:
		j.state = Done
	case j.stopped == j.running:
		j.state = Stopped
	}
	j.notify()
}

func (j *Job) stop(pid int) {
	m, ok := j.members[pid]
	if !ok || m.stopped {
		return
	}
	m.stopped = true
	j.stopped++
	if j.stopped == j.running {
		j.state = Stopped
		j.notify()
	}
}

func (j *Job) cont(pid int) {
	m, ok := j.members[pid]
	if !ok || !m.stopped {
		return
	}
	m.stopped = false
	j.stopped--
	j.state = Running
	j.notify()
}

// resumed marks every member as running after the group got SIGCONT.
func (j *Job) resumed() {
	for _, m := range j.members {
		m.stopped = false
	}
	j.stopped = 0
	if j.running > 0 {
		j.state = Running
	}
}

// Pids returns the pids of every stage that was started, in launch order.
func (j *Job) Pids() []int {
	return append([]int(nil), j.pids...)
}

// Statuses returns the status of every stage in execution order. Stages that
// haven't finished report a zero Status.
func (j *Job) Statuses() []Status {
	return append([]Status(nil), j.statuses...)
}

// Status returns the status of the last stage, the status of the job.
func (j *Job) Status() Status {
	return j.statuses[len(j.statuses)-1]
}

// Argv returns the argument vectors of the stages.
func (j *Job) Argv() [][]string {
	return j.argv
}

// Notice describes a job that changed state while in the background.
type Notice struct {
	Pgid   int
	State  State
	Status Status
	Line   string
}

func (n Notice) String() string {
	var what string
	switch {
	case n.State == Stopped:
		what = "Stopped"
	case n.Status.Signal != 0:
		what = capitalize(n.Status.Signal.String())
	case n.Status.Code == 0:
		what = "Done"
	default:
		what = fmt.Sprintf("Exit %d", n.Status.Code)
	}
	return fmt.Sprintf("[%d] %s\t%s", n.Pgid, what, n.Line)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
