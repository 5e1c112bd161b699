// Package constraint defines the ConstraintEvaluator collaborator: the
// external signal for whether a job's declared constraints (network,
// charging, idle, storage, time, content-observer) are currently
// satisfied. The scheduler core only calls isReady/prepare/unprepare;
// it never inspects constraint internals itself.
package constraint

import "github.com/bravo1goingdark/schedcore/internal/jobmodel"

// Evaluator is the ConstraintEvaluator collaborator.
type Evaluator interface {
	IsReady(job *jobmodel.Job) bool
	Prepare(job *jobmodel.Job)
	Unprepare(job *jobmodel.Job)
}

// AlwaysReady is a no-op Evaluator for tests and for callers who track
// constraints outside this module and only ever hand in ready jobs.
type AlwaysReady struct{}

func (AlwaysReady) IsReady(*jobmodel.Job) bool { return true }
func (AlwaysReady) Prepare(*jobmodel.Job)       {}
func (AlwaysReady) Unprepare(*jobmodel.Job)     {}

// AllOf combines evaluators so IsReady requires every one to agree;
// Prepare/Unprepare fan out to all of them regardless.
type AllOf []Evaluator

func (a AllOf) IsReady(job *jobmodel.Job) bool {
	for _, e := range a {
		if !e.IsReady(job) {
			return false
		}
	}
	return true
}

func (a AllOf) Prepare(job *jobmodel.Job) {
	for _, e := range a {
		e.Prepare(job)
	}
}

func (a AllOf) Unprepare(job *jobmodel.Job) {
	for _, e := range a {
		e.Unprepare(job)
	}
}

// AnyOf combines evaluators so IsReady is satisfied by any one of
// them; Prepare/Unprepare still fan out to all, since a job that
// becomes ready via one constraint still needs every constraint
// primed before it can run.
type AnyOf []Evaluator

func (a AnyOf) IsReady(job *jobmodel.Job) bool {
	for _, e := range a {
		if e.IsReady(job) {
			return true
		}
	}
	return len(a) == 0
}

func (a AnyOf) Prepare(job *jobmodel.Job) {
	for _, e := range a {
		e.Prepare(job)
	}
}

func (a AnyOf) Unprepare(job *jobmodel.Job) {
	for _, e := range a {
		e.Unprepare(job)
	}
}
