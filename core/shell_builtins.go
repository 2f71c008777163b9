package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/josephlewis42/lsh/core/job"
	"github.com/pborman/getopt/v2"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

// builtinUsage holds the synopsis and summary shown by help.
var builtinUsage = make(map[string][2]string)

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// BuiltinNames returns the sorted names of all builtins.
func BuiltinNames() []string {
	var names []string
	for name := range AllBuiltins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func register(name, synopsis, summary string, f ShellBuiltinFunc) {
	AllBuiltins[name] = f
	builtinUsage[name] = [2]string{synopsis, summary}
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	var dir string
	switch len(args) {
	case 1:
		dir = os.Getenv(EnvHome)
		if dir == "" {
			s.report(job.DirectoryChangeFailure, args[0], errors.New("HOME not set"))
			return 1
		}
	case 2:
		dir = args[1]
		if dir == "-" {
			dir = os.Getenv(EnvOldPWD)
			if dir == "" {
				s.report(job.DirectoryChangeFailure, args[0], errors.New("OLDPWD not set"))
				return 1
			}
			defer fmt.Fprintln(s.Stdout(), dir)
		}
	default:
		s.report(job.DirectoryChangeFailure, args[0], errors.New("too many arguments"))
		return 1
	}

	previous, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		s.report(job.DirectoryChangeFailure, args[0]+": "+dir, err)
		return 1
	}

	if wd, err := os.Getwd(); err == nil {
		os.Setenv(EnvPWD, wd)
	}
	if previous != "" {
		os.Setenv(EnvOldPWD, previous)
	}
	return 0
}

// Exit quits the shell
func Exit(s *Shell, args []string) int {
	s.exiting = true
	return 0
}

// Pwd prints the working directory.
func Pwd(s *Shell, args []string) int {
	opts := getopt.New()
	physical := opts.Bool('P', "print the directory with all symbolic links resolved")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.Stderr()
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "Print the name of the current working directory.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		return 1
	}

	wd, err := os.Getwd()
	if err == nil && *physical {
		wd, err = filepath.EvalSymlinks(wd)
	}
	if err != nil {
		fmt.Fprintf(s.Stderr(), "lsh: %s: %v\n", args[0], err)
		return 1
	}

	fmt.Fprintln(s.Stdout(), wd)
	return 0
}

func History(s *Shell, args []string) int {
	opts := getopt.New()
	clearOpt := opts.Bool('c', "clear the history by deleting all entries")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.Stderr()
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "Display or manipulate the history list")
		fmt.Fprintln(w, "Display the history list with line numbers.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		return 1
	}

	if *clearOpt {
		if s.reader != nil {
			s.reader.ResetHistory()
		}
		s.history = nil
		return 0
	}

	for i, line := range s.history {
		fmt.Fprintf(s.Stdout(), "% 5d  %s\n", i+1, line)
	}
	return 0
}

func Help(s *Shell, args []string) int {
	w := s.Stdout()

	if len(args) > 1 {
		status := 0
		for _, name := range args[1:] {
			usage, ok := builtinUsage[name]
			if !ok {
				fmt.Fprintf(s.Stderr(), "lsh: help: no help topics match %q\n", name)
				status = 1
				continue
			}
			fmt.Fprintf(w, "%s: %s\n    %s\n", name, usage[0], usage[1])
		}
		return status
	}

	fmt.Fprintln(w, "lsh, a small job control shell")
	fmt.Fprintln(w, "These shell commands are defined internally.  Type `help' to see this list.")
	fmt.Fprintln(w, "Type `help name' to find out more about the function `name'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builtins:")
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 8, 8, 2, ' ', 0)
	for _, name := range BuiltinNames() {
		usage := builtinUsage[name]
		fmt.Fprintf(tw, " %s\t%s\n", usage[0], usage[1])
	}
	tw.Flush()

	return 0
}

// Fg continues the stopped job in the foreground.
func Fg(s *Shell, args []string) int {
	j, err := s.manager.Resume(context.Background())
	if err != nil {
		fmt.Fprintf(s.Stderr(), "lsh: %s: %v\n", args[0], err)
		return 1
	}

	fmt.Fprintln(s.Stdout(), j.Line)
	return s.foregroundStatus(j)
}

func init() {
	register("cd", "cd [dir]", "Change the working directory, to $HOME without an argument.", Cd)
	register("exit", "exit", "Exit the shell, hanging up any jobs it started.", Exit)
	register("pwd", "pwd [-P]", "Print the name of the current working directory.", Pwd)
	register("history", "history [-c]", "Display or clear the history list.", History)
	register("help", "help [name ...]", "Display information about builtin commands.", Help)
	register("fg", "fg", "Continue the stopped job in the foreground.", Fg)
}
