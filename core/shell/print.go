package shell

import (
	"fmt"
	"io"
	"strings"
)

const rule = "------------------------------"

// Print writes a human readable description of the parsed command, programs
// listed in execution order.
func Print(w io.Writer, cmd *Command) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Parse OK")
	fmt.Fprintf(w, "stdin:      %s\n", orNone(cmd.Stdin))
	stdout := orNone(cmd.Stdout)
	if cmd.Append && cmd.Stdout != "" {
		stdout += " (append)"
	}
	fmt.Fprintf(w, "stdout:     %s\n", stdout)
	fmt.Fprintf(w, "background: %t\n", cmd.Background)
	fmt.Fprintln(w, "Pgms:")
	for _, argv := range cmd.Stages() {
		fmt.Fprintf(w, "            * [ %s ]\n", strings.Join(argv, " "))
	}
	fmt.Fprintln(w, rule)
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
