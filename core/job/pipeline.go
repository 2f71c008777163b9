package job

import (
	"errors"
	"fmt"
	"os"

	"github.com/josephlewis42/lsh/core/logger"
)

// launch spawns every stage of the plan, stdout of stage i feeding stdin of
// stage i+1. Only one pipe is live at a time: its read end is carried to the
// next stage. The caller must hold m.mu so the reaper can't collect a child
// before it has been registered.
//
// A stage that can't be executed, or whose redirect can't be opened, is
// reported and skipped; its neighbours still run and see EOF or EPIPE. A
// SpawnFailure abandons the remaining stages and is returned along with the
// partially started job.
func (m *Manager) launch(plan *Plan, foreground bool) (*Job, error) {
	j := newJob(plan)
	j.sharesGroup = foreground && m.shareGroup
	last := len(plan.Stages) - 1

	var carried *os.File
	defer func() {
		if carried != nil {
			carried.Close()
		}
	}()

	for i, stage := range plan.Stages {
		files := &stageFiles{stderr: m.opts.Stderr}

		if i > 0 {
			files.stdin = files.own(carried)
			carried = nil
		}

		if i < last {
			r, w, err := m.pipe()
			if err != nil {
				files.Close()
				return j, m.abandon(j, &StageError{Kind: SpawnFailure, Stage: i, Name: stage.Name(), Err: fmt.Errorf("pipe: %w", err)})
			}
			files.stdout = files.own(w)
			carried = r
		}

		if err := m.bindEndpoints(plan, i, files, foreground); err != nil {
			files.Close()
			m.report(err)
			j.fail(i, m.opts.RedirectFailureStatus)
			continue
		}

		takeTerminal := foreground && j.Pgid == 0 && m.terminal != nil
		proc, err := m.spawn(i, stage, files, j, takeTerminal)
		files.Close()

		if err != nil {
			var stageErr *StageError
			if errors.As(err, &stageErr) && stageErr.Kind == SpawnFailure {
				return j, m.abandon(j, stageErr)
			}
			m.report(err)
			j.fail(i, m.opts.ExecFailureStatus)
			continue
		}

		j.add(i, proc.Pid)
		m.byPid[proc.Pid] = j
		// Children are reaped with wait4 on any pid; the handle isn't needed.
		proc.Release()
	}

	m.register(j)
	m.events.Record(&logger.JobLaunch{
		Pgid:       j.Pgid,
		Pids:       j.Pids(),
		Argv:       j.Argv(),
		Background: plan.Background,
	})
	return j, nil
}

// bindEndpoints fills in the descriptors of stages at either end of the
// pipeline. Interior stages never consult redirects.
func (m *Manager) bindEndpoints(plan *Plan, i int, files *stageFiles, foreground bool) error {
	if i == 0 {
		in, err := plan.Redirects.OpenInput()
		switch {
		case err != nil:
			return &StageError{Kind: RedirectFailure, Stage: i, Name: plan.Redirects.Input, Err: err}
		case in != nil:
			files.stdin = files.own(in)
		case foreground:
			files.stdin = m.opts.Stdin
		default:
			// Background jobs must not read from the terminal.
			devNull, err := os.Open(os.DevNull)
			if err != nil {
				return &StageError{Kind: RedirectFailure, Stage: i, Name: os.DevNull, Err: err}
			}
			files.stdin = files.own(devNull)
		}
	}

	if i == len(plan.Stages)-1 {
		out, err := plan.Redirects.OpenOutput()
		switch {
		case err != nil:
			return &StageError{Kind: RedirectFailure, Stage: i, Name: plan.Redirects.Output, Err: err}
		case out != nil:
			files.stdout = files.own(out)
		default:
			files.stdout = m.opts.Stdout
		}
	}

	return nil
}

// abandon reports a SpawnFailure. Stages already started keep running in the
// background so the reaper still collects them.
func (m *Manager) abandon(j *Job, err *StageError) error {
	m.report(err)
	for i := err.Stage; i < len(j.statuses); i++ {
		j.fail(i, m.opts.ExecFailureStatus)
	}
	j.Background = true
	m.register(j)
	return err
}

func (m *Manager) register(j *Job) {
	if j.running == 0 {
		j.settle()
		return
	}
	m.byPgid[j.Pgid] = j
}

// report prints a stage error the way the shell reports all failures and
// records it in the event log.
func (m *Manager) report(err error) {
	fmt.Fprintf(m.opts.Stderr, "lsh: %v\n", err)

	failure := &logger.Failure{Error: err.Error()}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		failure.Kind = stageErr.Kind.String()
		failure.Program = stageErr.Name
		failure.Stage = stageErr.Stage
	}
	m.events.Record(failure)
}
