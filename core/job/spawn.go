package job

import (
	"os"
	"syscall"
)

// stageFiles are the descriptors a stage starts with. The shell's copies are
// closed once the stage has been spawned, or abandoned.
type stageFiles struct {
	stdin, stdout, stderr *os.File
	owned                 []*os.File
}

func (f *stageFiles) own(file *os.File) *os.File {
	if file != nil {
		f.owned = append(f.owned, file)
	}
	return file
}

func (f *stageFiles) Close() {
	for _, file := range f.owned {
		file.Close()
	}
	f.owned = nil
}

// spawn starts one stage of j. The first stage started leads a new process
// group the others join, unless j shares the shell's group. The child joins
// its group before exec so no signal addressed to the group can miss it.
func (m *Manager) spawn(index int, stage Stage, files *stageFiles, j *Job, takeTerminal bool) (*os.Process, error) {
	path, err := LookPath(stage.Name(), os.Getenv("PATH"))
	if err != nil {
		return nil, &StageError{Kind: ExecFailure, Stage: index, Name: stage.Name(), Err: err}
	}

	sys := &syscall.SysProcAttr{
		Setpgid: !j.sharesGroup,
		Pgid:    j.Pgid,
	}
	if takeTerminal {
		sys.Foreground = true
		sys.Ctty = m.terminal.fd
	}

	// The child's descriptor table is exactly these three entries, everything
	// else the shell holds is close-on-exec.
	proc, err := os.StartProcess(path, stage.Argv, &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{files.stdin, files.stdout, files.stderr},
		Sys:   sys,
	})
	if err != nil {
		return nil, classifySpawnError(index, stage.Name(), err)
	}
	return proc, nil
}
