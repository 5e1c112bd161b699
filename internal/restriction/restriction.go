// Package restriction compiles the scheduler's named restriction
// rules (thermal throttling, battery saver, data saver, ...) into
// boolean expressions evaluated against a job's attributes, the way
// the teacher's parser package compiles recipient filter expressions
// with expr-lang/expr.
package restriction

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expression evaluates to true when a job is subject to the
// restriction it was compiled from.
type Expression interface {
	Evaluate(attrs map[string]any) bool
}

type compiledExpr struct {
	program *vm.Program
}

func (c *compiledExpr) Evaluate(attrs map[string]any) bool {
	result, err := expr.Run(c.program, attrs)
	if err != nil {
		return false
	}
	b, _ := result.(bool)
	return b
}

// Parse compiles a restriction condition, e.g. "bucket == \"restricted\"
// && !isExpedited". Undefined attribute names evaluate to false rather
// than erroring, since not every job carries every attribute.
func Parse(condition string) (Expression, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, fmt.Errorf("empty restriction condition")
	}

	program, err := expr.Compile(condition, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile restriction %q: %w", condition, err)
	}
	return &compiledExpr{program: program}, nil
}

// Rule is one named, compiled restriction (spec §4.5: checkRestricted).
type Rule struct {
	Name string
	Cond Expression
}

// NewRule parses condition and names the resulting rule.
func NewRule(name, condition string) (Rule, error) {
	cond, err := Parse(condition)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Name: name, Cond: cond}, nil
}

// Set is an ordered list of restriction rules, evaluated first-match.
type Set []Rule

// Check returns the name of the first rule whose condition matches
// attrs, or ("", false) if the job is unrestricted.
func (s Set) Check(attrs map[string]any) (string, bool) {
	for _, r := range s {
		if r.Cond.Evaluate(attrs) {
			return r.Name, true
		}
	}
	return "", false
}
