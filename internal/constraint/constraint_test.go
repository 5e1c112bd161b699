package constraint

import (
	"testing"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

type fixedEvaluator struct {
	ready bool
}

func (f fixedEvaluator) IsReady(*jobmodel.Job) bool { return f.ready }
func (fixedEvaluator) Prepare(*jobmodel.Job)        {}
func (fixedEvaluator) Unprepare(*jobmodel.Job)      {}

func TestAllOfRequiresEveryEvaluator(t *testing.T) {
	job := jobmodel.NewJob(jobmodel.Identity{SourceUID: 1, JobID: 1})

	all := AllOf{fixedEvaluator{true}, fixedEvaluator{true}}
	if !all.IsReady(job) {
		t.Error("expected AllOf ready when every evaluator is ready")
	}

	all = AllOf{fixedEvaluator{true}, fixedEvaluator{false}}
	if all.IsReady(job) {
		t.Error("expected AllOf not ready when one evaluator is not ready")
	}
}

func TestAnyOfRequiresOneEvaluator(t *testing.T) {
	job := jobmodel.NewJob(jobmodel.Identity{SourceUID: 1, JobID: 1})

	any := AnyOf{fixedEvaluator{false}, fixedEvaluator{true}}
	if !any.IsReady(job) {
		t.Error("expected AnyOf ready when at least one evaluator is ready")
	}

	any = AnyOf{fixedEvaluator{false}, fixedEvaluator{false}}
	if any.IsReady(job) {
		t.Error("expected AnyOf not ready when no evaluator is ready")
	}
}

func TestAlwaysReady(t *testing.T) {
	job := jobmodel.NewJob(jobmodel.Identity{SourceUID: 1, JobID: 1})
	a := AlwaysReady{}
	if !a.IsReady(job) {
		t.Error("expected AlwaysReady to always report ready")
	}
}
