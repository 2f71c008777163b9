package job

import (
	"syscall"

	"github.com/josephlewis42/lsh/core/logger"
	"golang.org/x/sys/unix"
)

// Reap collects every child that has exited, stopped or continued, without
// blocking, and dispatches each to the job it belongs to. Several children may
// change state per SIGCHLD so it loops until nothing is left. It returns the
// number of state changes handled.
func (m *Manager) Reap() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil || pid <= 0 {
			// ECHILD: no children at all. 0: none ready.
			return n
		}
		n++
		m.dispatch(pid, syscall.WaitStatus(ws))
	}
}

// dispatch must be called with m.mu held.
func (m *Manager) dispatch(pid int, ws syscall.WaitStatus) {
	j, tracked := m.byPid[pid]

	event := &logger.ChildExit{Pid: pid, Tracked: tracked}
	if tracked {
		event.Pgid = j.Pgid
	}

	switch {
	case ws.Exited() || ws.Signaled():
		status := exitedStatus(ws)
		event.Status = status.Code
		event.State = "exited"
		if status.Signal != 0 {
			event.State = "signaled"
			event.Signal = status.Signal.String()
		}
		if tracked {
			delete(m.byPid, pid)
			j.exited(pid, ws)
		}
	case ws.Stopped():
		event.State = "stopped"
		event.Signal = ws.StopSignal().String()
		if tracked {
			j.stop(pid)
		}
	case ws.Continued():
		event.State = "continued"
		if tracked {
			j.cont(pid)
		}
	}

	m.events.Record(event)
	if !tracked {
		m.log.Printf("reaped untracked child %d (%s)", pid, event.State)
		return
	}
	m.log.Printf("child %d of job %d %s (status %d)", pid, j.Pgid, event.State, event.Status)

	switch j.state {
	case Done:
		delete(m.byPgid, j.Pgid)
		if m.stopped == j {
			m.stopped = nil
		}
		if j.Background && m.foreground != j {
			m.notices = append(m.notices, Notice{Pgid: j.Pgid, State: Done, Status: j.Status(), Line: j.Line})
		}
	case Stopped:
		if j.Background && m.foreground != j && event.State == "stopped" {
			m.stopped = j
			m.notices = append(m.notices, Notice{Pgid: j.Pgid, State: Stopped, Line: j.Line})
		}
	}
}
