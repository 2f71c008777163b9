package job

import (
	"os"
)

// Redirects names the files bound to the ends of a pipeline.
type Redirects struct {
	// Input is bound to the first stage's standard input.
	Input string
	// Output is bound to the last stage's standard output.
	Output string
	// Append opens Output for appending instead of truncating it.
	Append bool
}

// OpenInput opens the input redirect read-only. It returns nil, nil if there
// is no input redirect.
func (r Redirects) OpenInput() (*os.File, error) {
	if r.Input == "" {
		return nil, nil
	}
	return os.Open(r.Input)
}

// OpenOutput opens the output redirect for writing, creating it if needed. It
// returns nil, nil if there is no output redirect.
func (r Redirects) OpenOutput() (*os.File, error) {
	if r.Output == "" {
		return nil, nil
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if r.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	return os.OpenFile(r.Output, flags, 0644)
}
