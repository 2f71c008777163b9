package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/fatih/color"
	"github.com/josephlewis42/lsh/core/config"
	"github.com/josephlewis42/lsh/core/job"
	"github.com/josephlewis42/lsh/core/logger"
	"github.com/josephlewis42/lsh/core/shell"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	EnvHome   = "HOME"
	EnvPWD    = "PWD"
	EnvOldPWD = "OLDPWD"
	EnvUser   = "USER"

	// ParseFailureStatus is the status of a line that couldn't be parsed.
	ParseFailureStatus = 2
)

// Options configures a Shell.
type Options struct {
	Config *config.Configuration

	// Standard streams, default to the process's own.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Reader supplies lines to Run. If nil, a line editor is used when Stdin
	// is a terminal and a plain line scanner otherwise.
	Reader LineReader

	// Log receives operator diagnostics, discarded if nil.
	Log *log.Logger
	// Events receives the event log, discarded if nil.
	Events job.EventRecorder
}

// Shell is an interactive command interpreter. It reads lines, runs builtins
// itself and hands everything else to a job.Manager.
type Shell struct {
	config  *config.Configuration
	manager *job.Manager
	signals *job.Coordinator
	reader  LineReader
	log     *log.Logger
	events  job.EventRecorder

	stdin *os.File
	// out is the terminal, stdout is where builtins write and may be a
	// redirect.
	out    io.Writer
	stdout io.Writer
	stderr io.Writer

	interactive bool
	promptColor *color.Color
	noticeColor *color.Color

	history []string
	status  int
	exiting bool
}

// NewShell creates a shell and starts handling job control signals. Close
// must be called to stop.
func NewShell(opts Options) *Shell {
	if opts.Config == nil {
		opts.Config = config.Default(config.DefaultDir())
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard, "", 0)
	}
	if opts.Events == nil {
		opts.Events = logger.NopRecorder{}
	}

	cfg := opts.Config
	interactive := term.IsTerminal(int(opts.Stdin.Fd()))

	s := &Shell{
		config:      cfg,
		reader:      opts.Reader,
		log:         opts.Log,
		events:      opts.Events,
		stdin:       opts.Stdin,
		out:         opts.Stdout,
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		interactive: interactive,
		promptColor: color.New(color.FgCyan, color.Bold),
		noticeColor: color.New(color.FgYellow),
	}

	if cfg.UseColor(term.IsTerminal(int(opts.Stdout.Fd()))) {
		s.promptColor.EnableColor()
		s.noticeColor.EnableColor()
	} else {
		s.promptColor.DisableColor()
		s.noticeColor.DisableColor()
	}

	s.manager = job.NewManager(job.Options{
		Stdin:                 opts.Stdin,
		Stdout:                opts.Stdout,
		Stderr:                opts.Stderr,
		JobControl:            cfg.JobControl && interactive,
		ExecFailureStatus:     cfg.ExecFailureStatus,
		RedirectFailureStatus: cfg.RedirectFailureStatus,
		Log:                   opts.Log,
		Events:                opts.Events,
	})
	s.signals = job.NewCoordinator(s.manager, s.idleInterrupt)
	s.signals.Start()

	return s
}

// Close stops signal handling. Jobs still running are left alone, use Run or
// RunCommand to shut them down.
func (s *Shell) Close() error {
	s.signals.Stop()
	return nil
}

// Manager returns the job manager used by the shell.
func (s *Shell) Manager() *job.Manager {
	return s.manager
}

// Status returns the status of the last command.
func (s *Shell) Status() int {
	return s.status
}

// Stdout is where builtins write their output.
func (s *Shell) Stdout() io.Writer {
	return s.stdout
}

// Stderr is where diagnostics are written.
func (s *Shell) Stderr() io.Writer {
	return s.stderr
}

// Run reads and runs lines until exit or end of input. It returns the exit
// status of the shell.
func (s *Shell) Run(ctx context.Context) int {
	if s.reader == nil {
		reader, err := s.newLineReader()
		if err != nil {
			fmt.Fprintf(s.stderr, "lsh: %v\n", err)
			return 1
		}
		s.reader = reader
	}
	defer s.reader.Close()

	for !s.exiting {
		s.printNotices()
		s.reader.SetPrompt(s.Prompt())
		line, err := s.reader.Readline()

		switch {
		case err == io.EOF:
			s.exiting = true // Input closed, quit.

		case errors.Is(err, ErrInterrupt):
			continue // Line discarded, the reader already moved to a new one.

		case err != nil:
			s.log.Printf("Error readline: %v", err)
			s.exiting = true

		default:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			s.addHistory(line)
			s.RunLine(ctx, line)
		}
	}

	return s.shutdown()
}

// RunCommand runs a single line non-interactively, shuts down anything it left
// running and returns the line's status.
func (s *Shell) RunCommand(ctx context.Context, line string) int {
	status := s.RunLine(ctx, line)
	s.printNotices()
	s.shutdown()
	return status
}

// RunLine parses and runs every command on the line, returning the status of
// the last one. Failures are reported to stderr; they never end the shell.
func (s *Shell) RunLine(ctx context.Context, line string) int {
	s.events.Record(&logger.RunCommand{Line: line})

	cmds, err := shell.Parse(line)
	if err != nil {
		s.report(job.ParseFailure, "", err)
		s.status = ParseFailureStatus
		return s.status
	}

	for _, cmd := range cmds {
		if s.exiting {
			break
		}
		s.status = s.runCommand(ctx, cmd)
	}
	return s.status
}

func (s *Shell) runCommand(ctx context.Context, cmd *shell.Command) int {
	if s.config.Debug {
		shell.Print(s.out, cmd)
	}

	plan, err := job.NewPlan(cmd)
	if err != nil {
		s.report(job.ParseFailure, "", err)
		return ParseFailureStatus
	}

	if err := s.expandAliases(plan); err != nil {
		s.report(job.ParseFailure, "", err)
		return ParseFailureStatus
	}

	if builtin, ok, err := s.findBuiltin(plan); err != nil {
		s.report(job.ParseFailure, "", err)
		return 1
	} else if ok {
		return s.runBuiltin(plan, builtin)
	}

	j, err := s.manager.Run(ctx, plan)
	if err != nil {
		// Already reported by the manager.
		s.log.Printf("job %q: %v", plan.Line, err)
		return j.Status().Code
	}

	if plan.Background {
		if j.Pgid != 0 {
			fmt.Fprintf(s.stderr, "[%d]\n", j.Pgid)
		}
		return 0
	}

	return s.foregroundStatus(j)
}

// foregroundStatus reports how a job that held the foreground ended.
func (s *Shell) foregroundStatus(j *job.Job) int {
	if s.manager.State(j) == job.Stopped {
		s.noticeColor.Fprintln(s.stderr, job.Notice{Pgid: j.Pgid, State: job.Stopped, Line: j.Line}.String())
		return 128 + int(unix.SIGTSTP)
	}

	status := j.Status()
	if status.Signal == unix.SIGINT {
		// Put the prompt on a fresh line.
		fmt.Fprintln(s.out)
	}
	return status.Code
}

// expandAliases replaces the first word of every stage that names an alias.
// Expansion isn't recursive.
func (s *Shell) expandAliases(plan *job.Plan) error {
	for i, stage := range plan.Stages {
		expansion, ok := s.config.Aliases[stage.Name()]
		if !ok {
			continue
		}

		words, err := shlex.Split(expansion, true)
		if err != nil {
			return fmt.Errorf("alias %s: %w", stage.Name(), err)
		}
		if len(words) == 0 {
			return fmt.Errorf("alias %s: empty expansion", stage.Name())
		}
		plan.Stages[i].Argv = append(words, stage.Argv[1:]...)
	}
	return nil
}

func (s *Shell) findBuiltin(plan *job.Plan) (ShellBuiltin, bool, error) {
	for _, stage := range plan.Stages {
		builtin, ok := AllBuiltins[stage.Name()]
		if !ok {
			continue
		}
		if len(plan.Stages) > 1 {
			return nil, false, fmt.Errorf("%s: builtins can't be used in a pipeline", stage.Name())
		}
		return builtin, true, nil
	}
	return nil, false, nil
}

// runBuiltin runs a builtin in the shell process. Its output follows the
// output redirect, an input redirect must exist but isn't read.
func (s *Shell) runBuiltin(plan *job.Plan, builtin ShellBuiltin) int {
	argv := plan.Stages[0].Argv

	in, err := plan.Redirects.OpenInput()
	if err != nil {
		s.report(job.RedirectFailure, plan.Redirects.Input, err)
		return s.config.RedirectFailureStatus
	}
	if in != nil {
		in.Close()
	}

	out, err := plan.Redirects.OpenOutput()
	if err != nil {
		s.report(job.RedirectFailure, plan.Redirects.Output, err)
		return s.config.RedirectFailureStatus
	}
	if out != nil {
		defer out.Close()
		s.stdout = out
		defer func() { s.stdout = s.out }()
	}

	status := builtin.Main(s, argv)
	s.events.Record(&logger.Builtin{Argv: argv, Status: status})
	return status
}

// report prints a failure and records it in the event log.
func (s *Shell) report(kind job.Failure, name string, err error) {
	var stageErr *job.StageError
	if !errors.As(err, &stageErr) && name != "" {
		stageErr = &job.StageError{Kind: kind, Name: name, Err: err}
		err = stageErr
	}

	fmt.Fprintf(s.stderr, "lsh: %v\n", err)

	failure := &logger.Failure{Kind: kind.String(), Error: err.Error()}
	if stageErr != nil {
		failure.Program = stageErr.Name
	}
	s.events.Record(failure)
}

func (s *Shell) printNotices() {
	for _, notice := range s.manager.Notices() {
		s.noticeColor.Fprintln(s.stderr, notice.String())
	}
}

func (s *Shell) addHistory(line string) {
	s.history = append(s.history, line)
	if limit := s.config.HistoryLimit; limit > 0 && len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
}

// idleInterrupt is called for an interrupt with no foreground job.
func (s *Shell) idleInterrupt() {
	fmt.Fprintln(s.out)
	if s.interactive {
		fmt.Fprint(s.out, s.Prompt())
	}
}

// shutdown signals every remaining job and returns the shell's exit status.
func (s *Shell) shutdown() int {
	if n := s.manager.Shutdown(s.config.HangupSig()); n > 0 {
		s.log.Printf("sent %v to %d remaining job(s)", s.config.HangupSig(), n)
	}
	return 0
}

func (s *Shell) newLineReader() (LineReader, error) {
	if !s.interactive {
		return NewScannerReader(s.stdin), nil
	}
	return NewReadlineReader(s.config.HistoryPath(), s.config.HistoryLimit, s.out, s.stderr)
}
