package db

import (
	"iter"
	"strings"
)

// Command is a named operation plus its parameter list. It holds no state
// between issuances.
type Command struct {
	// Operation is the query text, or the routine name when IsRoutine is set.
	Operation string
	Params    Params
	IsRoutine bool
	// Label names the command in logs and errors; defaults to Operation.
	Label string
}

// Text builds a query-text command labelled label.
func Text(label, text string, params ...Parameter) Command {
	return Command{Operation: text, Params: NewParams(params...), Label: label}
}

// Routine builds a stored-routine command.
func Routine(name string, params ...Parameter) Command {
	return Command{Operation: name, Params: NewParams(params...), IsRoutine: true}
}

func (c Command) name() string {
	if c.Label != "" {
		return c.Label
	}
	op := strings.Join(strings.Fields(c.Operation), " ")
	if len(op) > 64 {
		op = op[:64] + "..."
	}
	return op
}

// CommandResult is owned by the caller; the executor keeps no reference to it.
type CommandResult struct {
	RowsAffected int64
	Outputs      map[string]any
	rows         []*Row
}

// Output returns an output value by case-insensitive name.
func (r CommandResult) Output(name string) (any, bool) {
	for k, v := range r.Outputs {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// Rows yields the rows returned by the call, if any.
func (r CommandResult) Rows() iter.Seq[*Row] {
	return func(yield func(*Row) bool) {
		for _, row := range r.rows {
			if !yield(row) {
				return
			}
		}
	}
}
