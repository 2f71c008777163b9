package shell

// Defined by
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html

/**
1. The shell reads its input from a file (see sh), from the -c option or from
the system() and popen() functions defined in the System Interfaces volume of
POSIX.1-2017.

2. The shell breaks the input into tokens: words and operators; see Token Recognition.

3. The shell parses the input into simple commands (see Simple Commands) and
compound commands (see Compound Commands).

5. The shell performs redirection (see Redirection) and removes redirection
operators and their operands from the parameter list.

6. The shell executes a built-in (see Special Built-In Utilities) or executable
file, giving the names of the arguments as positional parameters numbered 1 to
n.

7. The shell optionally waits for the command to complete and collects the exit
status (see Exit Status for Commands).

Only steps 2, 3 and 5 happen here. Expansions (step 4) and compound commands
are not supported and are reported as syntax errors.
**/

import (
	"bytes"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// SyntaxError is returned for input the shell can't run.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("syntax error: %s", e.Msg)
	}
	return fmt.Sprintf("syntax error near %d:%d: %s", e.Line, e.Col, e.Msg)
}

func unsupported(node syntax.Node, format string, a ...interface{}) error {
	pos := node.Pos()
	return &SyntaxError{
		Line: int(pos.Line()),
		Col:  int(pos.Col()),
		Msg:  fmt.Sprintf(format, a...),
	}
}

// Parse converts a line into the commands it contains. Statements separated by
// ';' or '&' each become their own Command.
func Parse(line string) ([]*Command, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, &SyntaxError{Msg: err.Error()}
	}

	var out []*Command
	for _, stmt := range file.Stmts {
		cmd, err := parseStatement(stmt)
		if err != nil {
			return nil, err
		}
		cmd.Line = source(line, stmt)
		out = append(out, cmd)
	}
	return out, nil
}

// source extracts the text of the statement, without its terminator.
func source(line string, stmt *syntax.Stmt) string {
	start, end := int(stmt.Pos().Offset()), int(stmt.End().Offset())
	if start < 0 || end > len(line) || start > end {
		return strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line[start:end]), "&"))
}

func parseStatement(stmt *syntax.Stmt) (*Command, error) {
	switch {
	case stmt.Negated:
		return nil, unsupported(stmt, "'!' is not supported")
	case stmt.Coprocess:
		return nil, unsupported(stmt, "coprocesses are not supported")
	}

	stages, err := flattenPipeline(stmt)
	if err != nil {
		return nil, err
	}

	cmd := &Command{Background: stmt.Background}
	last := len(stages) - 1
	for i, stage := range stages {
		argv, err := evalArgs(stage)
		if err != nil {
			return nil, err
		}
		if len(argv) == 0 {
			return nil, unsupported(stage, "empty command")
		}

		for _, redirect := range stage.Redirs {
			if err := cmd.applyRedirect(redirect, i == 0, i == last); err != nil {
				return nil, err
			}
		}

		// Prepending leaves the list in reverse order.
		cmd.Pgm = &Pgm{Argv: argv, Next: cmd.Pgm}
	}

	return cmd, nil
}

// flattenPipeline returns the statements of a pipeline left to right.
func flattenPipeline(stmt *syntax.Stmt) ([]*syntax.Stmt, error) {
	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		return []*syntax.Stmt{stmt}, nil
	case *syntax.BinaryCmd:
		if cmd.Op != syntax.Pipe {
			return nil, unsupported(cmd, "%q is not supported", cmd.Op.String())
		}
		if len(stmt.Redirs) > 0 {
			return nil, unsupported(stmt, "redirecting a whole pipeline is not supported")
		}
		left, err := flattenPipeline(cmd.X)
		if err != nil {
			return nil, err
		}
		right, err := flattenPipeline(cmd.Y)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case nil:
		return nil, unsupported(stmt, "empty command")
	default:
		return nil, unsupported(stmt, "compound commands are not supported")
	}
}

func (c *Command) applyRedirect(redirect *syntax.Redirect, first, last bool) error {
	if redirect.N != nil {
		return unsupported(redirect, "descriptor redirects are not supported")
	}

	target, err := evalWord(redirect.Word)
	if err != nil {
		return err
	}
	if target == "" {
		return unsupported(redirect, "missing redirect target")
	}

	switch redirect.Op {
	case syntax.RdrIn:
		if !first {
			return unsupported(redirect, "input redirect is only allowed on the first command of a pipeline")
		}
		c.Stdin = target
	case syntax.RdrOut, syntax.ClbOut, syntax.AppOut:
		if !last {
			return unsupported(redirect, "output redirect is only allowed on the last command of a pipeline")
		}
		c.Stdout = target
		c.Append = redirect.Op == syntax.AppOut
	default:
		return unsupported(redirect, "%q is not supported", redirect.Op.String())
	}
	return nil
}

func evalArgs(stmt *syntax.Stmt) ([]string, error) {
	call := stmt.Cmd.(*syntax.CallExpr)
	if len(call.Assigns) > 0 {
		return nil, unsupported(call, "variable assignment is not supported")
	}

	var argv []string
	for _, word := range call.Args {
		arg, err := evalWord(word)
		if err != nil {
			return nil, err
		}
		argv = append(argv, arg)
	}
	return argv, nil
}

func evalWord(word *syntax.Word) (string, error) {
	if word == nil {
		return "", nil
	}

	var out strings.Builder
	for _, part := range word.Parts {
		switch part := part.(type) {
		case *syntax.Lit:
			out.WriteString(unescape(part.Value, false))
		case *syntax.SglQuoted:
			if part.Dollar {
				return "", unsupported(part, "$'...' strings are not supported")
			}
			out.WriteString(part.Value)
		case *syntax.DblQuoted:
			if part.Dollar {
				return "", unsupported(part, "$\"...\" strings are not supported")
			}
			for _, sub := range part.Parts {
				lit, ok := sub.(*syntax.Lit)
				if !ok {
					return "", unsupported(sub, "expansions are not supported")
				}
				out.WriteString(unescape(lit.Value, true))
			}
		default:
			return "", unsupported(part, "expansions are not supported")
		}
	}
	return out.String(), nil
}

// unescape removes backslash quoting. Inside double quotes only the
// characters $ ` " \ and newline are escapable.
func unescape(s string, quoted bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			buf.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		switch {
		case next == '\n':
			i++
		case !quoted || strings.IndexByte("$`\"\\", next) >= 0:
			buf.WriteByte(next)
			i++
		default:
			buf.WriteByte(s[i])
		}
	}
	return buf.String()
}
