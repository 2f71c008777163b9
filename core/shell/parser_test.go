package shell

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]struct {
		line       string
		stages     [][]string
		stdin      string
		stdout     string
		append     bool
		background bool
	}{
		"simple": {
			line:   "ls -l",
			stages: [][]string{{"ls", "-l"}},
		},
		"pipeline": {
			line:   "ls | wc -l",
			stages: [][]string{{"ls"}, {"wc", "-l"}},
		},
		"long-pipeline": {
			line:   "cat a | sort | uniq -c | sort -rn",
			stages: [][]string{{"cat", "a"}, {"sort"}, {"uniq", "-c"}, {"sort", "-rn"}},
		},
		"redirects": {
			line:   "sort < input.txt > output.txt",
			stages: [][]string{{"sort"}},
			stdin:  "input.txt",
			stdout: "output.txt",
		},
		"pipeline-redirects": {
			line:   "grep x < in | wc -l >> out",
			stages: [][]string{{"grep", "x"}, {"wc", "-l"}},
			stdin:  "in",
			stdout: "out",
			append: true,
		},
		"background": {
			line:       "sleep 50 &",
			stages:     [][]string{{"sleep", "50"}},
			background: true,
		},
		"quotes": {
			line:   `echo 'a b' "c d" e\ f`,
			stages: [][]string{{"echo", "a b", "c d", "e f"}},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cmds, err := Parse(tc.line)
			require.NoError(t, err)
			require.Len(t, cmds, 1)

			cmd := cmds[0]
			assert.Equal(t, tc.stages, cmd.Stages())
			assert.Equal(t, tc.stdin, cmd.Stdin)
			assert.Equal(t, tc.stdout, cmd.Stdout)
			assert.Equal(t, tc.append, cmd.Append)
			assert.Equal(t, tc.background, cmd.Background)
		})
	}
}

func TestParse_reverseOrder(t *testing.T) {
	cmds, err := Parse("first | second | third")
	require.NoError(t, err)

	// The linked list starts at the last stage.
	pgm := cmds[0].Pgm
	assert.Equal(t, []string{"third"}, pgm.Argv)
	assert.Equal(t, []string{"second"}, pgm.Next.Argv)
	assert.Equal(t, []string{"first"}, pgm.Next.Next.Argv)
	assert.Nil(t, pgm.Next.Next.Next)
	assert.Equal(t, 3, cmds[0].Len())
}

func TestParse_lists(t *testing.T) {
	cmds, err := Parse("sleep 5 & echo hi; pwd")
	require.NoError(t, err)
	require.Len(t, cmds, 3)

	assert.True(t, cmds[0].Background)
	assert.Equal(t, "sleep 5", cmds[0].Line)
	assert.False(t, cmds[1].Background)
	assert.Equal(t, [][]string{{"echo", "hi"}}, cmds[1].Stages())
	assert.Equal(t, [][]string{{"pwd"}}, cmds[2].Stages())
}

func TestParse_empty(t *testing.T) {
	for _, line := range []string{"", "   ", "# just a comment"} {
		cmds, err := Parse(line)
		assert.NoError(t, err)
		assert.Empty(t, cmds)
	}
}

func TestParse_errors(t *testing.T) {
	cases := map[string]string{
		"unclosed-quote":   `echo 'abc`,
		"and":              "true && false",
		"or":               "true || false",
		"subshell":         "(ls)",
		"variable":         "echo $HOME",
		"assignment":       "A=B ls",
		"command-subst":    "echo $(ls)",
		"fd-redirect":      "ls 2> err",
		"interior-input":   "ls | sort < in",
		"interior-output":  "ls > out | sort",
		"negated":          "! ls",
		"dangling-pipe":    "ls |",
		"heredoc":          "cat <<EOF\nx\nEOF",
		"pipe-all":         "ls |& cat",
		"empty-redir-word": "ls > ''",
	}

	for tn, line := range cases {
		t.Run(tn, func(t *testing.T) {
			_, err := Parse(line)
			require.Error(t, err)

			var syntaxErr *SyntaxError
			assert.True(t, errors.As(err, &syntaxErr), "got %T", err)
		})
	}
}

func TestPrint(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
	)

	cases := map[string]string{
		"simple":    "ls -l",
		"pipeline":  "ls | wc -l",
		"redirects": "sort < input.txt >> output.txt &",
	}

	for tn, line := range cases {
		t.Run(tn, func(t *testing.T) {
			cmds, err := Parse(line)
			require.NoError(t, err)

			buf := &bytes.Buffer{}
			Print(buf, cmds[0])
			g.Assert(t, "print-"+tn, buf.Bytes())
		})
	}
}
