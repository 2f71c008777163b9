package core

import (
	"bufio"
	"io"

	"github.com/abiosoft/readline"
)

// ErrInterrupt is returned by a LineReader when the user interrupts the line
// being edited.
var ErrInterrupt = readline.ErrInterrupt

// LineReader supplies the shell with input lines.
type LineReader interface {
	// Readline returns the next line, io.EOF at end of input.
	Readline() (string, error)
	SetPrompt(prompt string)
	ResetHistory()
	Close() error
}

type readlineReader struct {
	*readline.Instance
}

// NewReadlineReader reads lines from a terminal with editing and history.
func NewReadlineReader(historyFile string, historyLimit int, stdout, stderr io.Writer) (LineReader, error) {
	cfg := &readline.Config{
		HistoryFile:     historyFile,
		HistoryLimit:    historyLimit,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          stdout,
		Stderr:          stderr,
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &readlineReader{Instance: rl}, nil
}

func (r *readlineReader) ResetHistory() {
	r.Operation.ResetHistory()
}

type scannerReader struct {
	scanner *bufio.Scanner
}

// NewScannerReader reads lines from non-interactive input such as a pipe or
// script. No prompt is shown and r is left open.
func NewScannerReader(r io.Reader) LineReader {
	return &scannerReader{scanner: bufio.NewScanner(r)}
}

func (r *scannerReader) Readline() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scannerReader) SetPrompt(string) {}

func (r *scannerReader) ResetHistory() {}

func (r *scannerReader) Close() error {
	return nil
}
