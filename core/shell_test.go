package core

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/josephlewis42/lsh/core/config"
	"github.com/josephlewis42/lsh/core/logger"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testShell struct {
	*Shell
	stdout *os.File
	stderr *os.File
	dir    string
}

func (ts *testShell) Stdout(t *testing.T) string {
	t.Helper()
	out, err := os.ReadFile(ts.stdout.Name())
	require.NoError(t, err)
	return string(out)
}

func (ts *testShell) Stderr(t *testing.T) string {
	t.Helper()
	out, err := os.ReadFile(ts.stderr.Name())
	require.NoError(t, err)
	return string(out)
}

// newTestShell creates a non-interactive shell reading script. Shells can't
// be used from parallel tests, they all reap children of the test binary.
func newTestShell(t *testing.T, script string, configure func(*config.Configuration), opts ...func(*Options)) *testShell {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Color = config.ColorNever
	cfg.EventLog = ""
	cfg.HistoryFile = ""
	if configure != nil {
		configure(cfg)
	}

	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	stdout, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	stderr, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)

	options := Options{
		Config: cfg,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Reader: NewScannerReader(strings.NewReader(script)),
	}
	for _, opt := range opts {
		opt(&options)
	}

	s := NewShell(options)
	t.Cleanup(func() {
		s.Close()
		stdin.Close()
		stdout.Close()
		stderr.Close()
	})

	return &testShell{Shell: s, stdout: stdout, stderr: stderr, dir: dir}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestRun(t *testing.T) {
	s := newTestShell(t, "echo one\n\n   \necho two | tr a-z A-Z\nexit\necho never\n", nil)

	assert.Equal(t, 0, s.Run(context.Background()))
	assert.Equal(t, "one\nTWO\n", s.Stdout(t))
	assert.Empty(t, s.Stderr(t))
}

func TestRun_endOfInput(t *testing.T) {
	s := newTestShell(t, "sh -c 'exit 3'", nil)

	assert.Equal(t, 0, s.Run(context.Background()), "the shell's own status is 0")
	assert.Equal(t, 3, s.Status())
}

func TestRun_failuresDontStopTheShell(t *testing.T) {
	script := strings.Join([]string{
		"echo $HOME",
		"lsh-no-such-program",
		"cat < lsh-missing-file",
		"cd /lsh/missing",
		"echo still here",
	}, "\n")
	s := newTestShell(t, script, nil)

	assert.Equal(t, 0, s.Run(context.Background()))
	assert.Equal(t, "still here\n", s.Stdout(t))

	stderr := s.Stderr(t)
	assert.Contains(t, stderr, "lsh-no-such-program: command not found")
	assert.Contains(t, stderr, "lsh-missing-file: no such file or directory")
	assert.Contains(t, stderr, "lsh: cd: /lsh/missing: no such file or directory")
}

func TestRunLine_statuses(t *testing.T) {
	cases := map[string]struct {
		line   string
		status int
	}{
		"success":          {line: "true", status: 0},
		"exit-code":        {line: "sh -c 'exit 7'", status: 7},
		"last-stage":       {line: "false | true", status: 0},
		"parse-failure":    {line: "echo $(id)", status: ParseFailureStatus},
		"exec-failure":     {line: "lsh-no-such-program", status: 255},
		"redirect-failure": {line: "cat < lsh-missing-file", status: 1},
		"list":             {line: "true; false", status: 1},
		"background":       {line: "false &", status: 0},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s := newTestShell(t, "", nil)
			assert.Equal(t, tc.status, s.RunLine(context.Background(), tc.line))
		})
	}
}

func TestRunLine_configuredFailureStatuses(t *testing.T) {
	s := newTestShell(t, "", func(cfg *config.Configuration) {
		cfg.ExecFailureStatus = 127
		cfg.RedirectFailureStatus = 3
	})

	assert.Equal(t, 127, s.RunLine(context.Background(), "lsh-no-such-program"))
	assert.Equal(t, 3, s.RunLine(context.Background(), "cat < lsh-missing-file"))
}

func TestRunCommand_background(t *testing.T) {
	s := newTestShell(t, "", nil)

	assert.Equal(t, 0, s.RunCommand(context.Background(), "sleep 30 &"))
	assert.Regexp(t, regexp.MustCompile(`^\[\d+\]\n$`), s.Stderr(t))

	assert.Eventually(t, func() bool {
		return s.Manager().Live() == 0
	}, 5*time.Second, 10*time.Millisecond, "remaining jobs are hung up")
}

func TestRunLine_redirects(t *testing.T) {
	s := newTestShell(t, "", nil)
	chdir(t, s.dir)

	ctx := context.Background()
	s.RunLine(ctx, "echo banana > fruit.txt")
	s.RunLine(ctx, "echo apple >> fruit.txt")
	s.RunLine(ctx, "sort < fruit.txt > sorted.txt")

	sorted, err := os.ReadFile(filepath.Join(s.dir, "sorted.txt"))
	require.NoError(t, err)
	assert.Equal(t, "apple\nbanana\n", string(sorted))
	assert.Empty(t, s.Stdout(t))
}

func TestRunLine_aliases(t *testing.T) {
	s := newTestShell(t, "", func(cfg *config.Configuration) {
		cfg.Aliases = map[string]string{
			"greet": "echo 'hello there'",
			"upper": "tr a-z A-Z",
		}
	})

	s.RunLine(context.Background(), "greet world | upper")
	assert.Equal(t, "HELLO THERE WORLD\n", s.Stdout(t))
}

func TestRunLine_debug(t *testing.T) {
	s := newTestShell(t, "", func(cfg *config.Configuration) {
		cfg.Debug = true
	})

	s.RunLine(context.Background(), "echo hi")
	stdout := s.Stdout(t)
	assert.Contains(t, stdout, "Parse OK")
	assert.Contains(t, stdout, "* [ echo hi ]")
	assert.True(t, strings.HasSuffix(stdout, "hi\n"))
}

func TestRunLine_events(t *testing.T) {
	var events bytes.Buffer
	recorder := logger.NewJsonLinesLogRecorder(&events).NewSession()

	s := newTestShell(t, "", nil, func(opts *Options) {
		opts.Events = recorder
	})

	ctx := context.Background()
	s.RunLine(ctx, "echo hi | cat")
	s.RunLine(ctx, "lsh-no-such-program")
	s.RunLine(ctx, "pwd")

	var report logger.Report
	require.NoError(t, logger.ReadJSONLinesLog(&events, report.Update))

	assert.Equal(t, 3, report.RunCommand.Count)
	assert.Equal(t, 2, report.JobLaunch.Foreground)
	assert.Equal(t, 2, report.ChildExit.States.Get("exited"))
	assert.Equal(t, 1, report.Builtin.Names.Get("pwd"))
}

func TestBuiltins_inPipeline(t *testing.T) {
	s := newTestShell(t, "", nil)

	assert.Equal(t, 1, s.RunLine(context.Background(), "pwd | cat"))
	assert.Equal(t, "lsh: pwd: builtins can't be used in a pipeline\n", s.Stderr(t))
	assert.Empty(t, s.Stdout(t))
}

func TestBuiltins_outputRedirect(t *testing.T) {
	s := newTestShell(t, "", nil)
	chdir(t, s.dir)

	assert.Equal(t, 0, s.RunLine(context.Background(), "pwd > wd.txt"))
	assert.Empty(t, s.Stdout(t))

	wd, err := os.ReadFile(filepath.Join(s.dir, "wd.txt"))
	require.NoError(t, err)
	current, _ := os.Getwd()
	assert.Equal(t, current+"\n", string(wd))

	// Output goes back to the terminal afterwards.
	s.RunLine(context.Background(), "pwd")
	assert.Equal(t, current+"\n", s.Stdout(t))
}

func TestCd(t *testing.T) {
	s := newTestShell(t, "", nil)
	start := t.TempDir()
	chdir(t, start)
	t.Setenv(EnvPWD, start)
	t.Setenv(EnvOldPWD, "")

	target, err := filepath.EvalSymlinks(s.dir)
	require.NoError(t, err)

	t.Run("dir", func(t *testing.T) {
		assert.Equal(t, 0, s.RunLine(context.Background(), "cd "+target))
		wd, _ := os.Getwd()
		assert.Equal(t, target, wd)
		assert.Equal(t, target, os.Getenv(EnvPWD))
	})

	t.Run("missing-dir", func(t *testing.T) {
		assert.Equal(t, 1, s.RunLine(context.Background(), "cd lsh-missing-dir"))
		wd, _ := os.Getwd()
		assert.Equal(t, target, wd, "working directory is unchanged")
	})

	t.Run("home", func(t *testing.T) {
		t.Setenv(EnvHome, start)
		assert.Equal(t, 0, s.RunLine(context.Background(), "cd"))
		wd, _ := os.Getwd()
		assert.Equal(t, filepath.Clean(start), wd)
	})

	t.Run("no-home", func(t *testing.T) {
		t.Setenv(EnvHome, "")
		before, _ := os.Getwd()
		assert.Equal(t, 1, s.RunLine(context.Background(), "cd"))
		wd, _ := os.Getwd()
		assert.Equal(t, before, wd)
		assert.Contains(t, s.Stderr(t), "lsh: cd: HOME not set\n")
	})

	t.Run("too-many", func(t *testing.T) {
		assert.Equal(t, 1, s.RunLine(context.Background(), "cd a b"))
		assert.Contains(t, s.Stderr(t), "lsh: cd: too many arguments\n")
	})
}

func TestHistory(t *testing.T) {
	s := newTestShell(t, "echo a\nhistory\nhistory -c\nhistory\n", nil)

	s.Run(context.Background())
	assert.Equal(t, "a\n    1  echo a\n    2  history\n    1  history\n", s.Stdout(t))
}

func TestHistory_limit(t *testing.T) {
	s := newTestShell(t, "true\ntrue\nhistory\n", func(cfg *config.Configuration) {
		cfg.HistoryLimit = 2
	})

	s.Run(context.Background())
	assert.Equal(t, "    1  true\n    2  history\n", s.Stdout(t))
}

func TestHistory_badFlag(t *testing.T) {
	s := newTestShell(t, "", nil)

	assert.Equal(t, 1, s.RunLine(context.Background(), "history -z"))
	assert.Contains(t, s.Stderr(t), "Display or manipulate the history list")
}

func TestHelp(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
	)

	s := newTestShell(t, "", nil)
	assert.Equal(t, 0, s.RunLine(context.Background(), "help"))
	g.Assert(t, "help", []byte(s.Stdout(t)))
}

func TestHelp_topic(t *testing.T) {
	s := newTestShell(t, "", nil)

	assert.Equal(t, 0, s.RunLine(context.Background(), "help cd"))
	assert.Equal(t, "cd: cd [dir]\n    Change the working directory, to $HOME without an argument.\n", s.Stdout(t))

	assert.Equal(t, 1, s.RunLine(context.Background(), "help lsh-nope"))
}

func TestFg_noStoppedJob(t *testing.T) {
	s := newTestShell(t, "", nil)

	assert.Equal(t, 1, s.RunLine(context.Background(), "fg"))
	assert.Equal(t, "lsh: fg: no stopped job\n", s.Stderr(t))
}

func TestExit(t *testing.T) {
	s := newTestShell(t, "", nil)

	s.RunLine(context.Background(), "exit; echo unreachable")
	assert.Empty(t, s.Stdout(t))
}

func TestPrompt(t *testing.T) {
	s := newTestShell(t, "", func(cfg *config.Configuration) {
		cfg.Prompt = `[\W]\$ `
	})
	chdir(t, s.dir)
	t.Setenv(EnvHome, "/lsh-nonexistent-home")

	sign := "$"
	if os.Geteuid() == 0 {
		sign = "#"
	}

	wd, _ := os.Getwd()
	assert.Equal(t, "["+filepath.Base(wd)+"]"+sign+" ", s.Prompt())

	s.config.Prompt = `\w`
	assert.Equal(t, wd, s.Prompt())

	t.Setenv(EnvHome, filepath.Dir(wd))
	assert.Equal(t, "~/"+filepath.Base(wd), s.Prompt())

	s.config.Prompt = ""
	assert.True(t, strings.HasPrefix(s.Prompt(), "lsh:"))
}

func TestScannerReader(t *testing.T) {
	r := NewScannerReader(strings.NewReader("one\ntwo"))
	r.SetPrompt("ignored")

	line, err := r.Readline()
	assert.NoError(t, err)
	assert.Equal(t, "one", line)

	line, err = r.Readline()
	assert.NoError(t, err)
	assert.Equal(t, "two", line)

	_, err = r.Readline()
	assert.Equal(t, "EOF", err.Error())
	assert.NoError(t, r.Close())
}
