package job

import (
	"errors"

	"github.com/josephlewis42/lsh/core/shell"
)

// Stage is one program invocation within a pipeline.
type Stage struct {
	// Argv holds the program name followed by its arguments.
	Argv []string
}

// Name is the program the stage runs.
func (s Stage) Name() string {
	return s.Argv[0]
}

// Plan is a Command normalized for execution.
type Plan struct {
	// Stages in execution (left to right) order.
	Stages     []Stage
	Redirects  Redirects
	Background bool
	// Line is the text the plan was parsed from, used for notices.
	Line string
}

// NewPlan converts a parsed command into execution order. The parser hands
// over its pipeline last stage first; this is the only place that's undone.
func NewPlan(cmd *shell.Command) (*Plan, error) {
	if cmd == nil || cmd.Pgm == nil {
		return nil, errors.New("empty pipeline")
	}

	plan := &Plan{
		Redirects: Redirects{
			Input:  cmd.Stdin,
			Output: cmd.Stdout,
			Append: cmd.Append,
		},
		Background: cmd.Background,
		Line:       cmd.Line,
	}

	for pgm := cmd.Pgm; pgm != nil; pgm = pgm.Next {
		if len(pgm.Argv) == 0 {
			return nil, errors.New("empty command in pipeline")
		}
		plan.Stages = append(plan.Stages, Stage{Argv: pgm.Argv})
	}

	for i, j := 0, len(plan.Stages)-1; i < j; i, j = i+1, j-1 {
		plan.Stages[i], plan.Stages[j] = plan.Stages[j], plan.Stages[i]
	}

	return plan, nil
}

// Argv returns the argument vectors of every stage.
func (p *Plan) Argv() [][]string {
	out := make([][]string, len(p.Stages))
	for i, stage := range p.Stages {
		out[i] = stage.Argv
	}
	return out
}
