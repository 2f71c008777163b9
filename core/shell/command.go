package shell

// Command is one parsed invocation: a pipeline with optional redirects.
type Command struct {
	// Pgm holds the programs of the pipeline, LAST stage first. Walk it with
	// Stages() to get execution order.
	Pgm *Pgm
	// Stdin is the input redirect path for the first stage, "" if none.
	Stdin string
	// Stdout is the output redirect path for the last stage, "" if none.
	Stdout string
	// Append opens Stdout for appending rather than truncating.
	Append bool
	// Background is set when the command ends with '&'.
	Background bool
	// Line holds the source text of the command.
	Line string
}

// Pgm is a single program invocation in a reverse-ordered pipeline list.
type Pgm struct {
	Argv []string
	Next *Pgm
}

// Len returns the number of programs in the pipeline.
func (c *Command) Len() int {
	n := 0
	for p := c.Pgm; p != nil; p = p.Next {
		n++
	}
	return n
}

// Stages returns the argument vectors in execution (left to right) order.
func (c *Command) Stages() [][]string {
	out := make([][]string, c.Len())
	i := len(out) - 1
	for p := c.Pgm; p != nil; p = p.Next {
		out[i] = p.Argv
		i--
	}
	return out
}
