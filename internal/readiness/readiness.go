// Package readiness implements the gate a job must clear before it is
// allowed onto the pending queue or kept there: external constraints,
// store membership, user/backup state, restriction rules, and (when
// asked) not already pending or running.
package readiness

import (
	"github.com/bravo1goingdark/schedcore/internal/constraint"
	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/bravo1goingdark/schedcore/internal/jobstore"
	"github.com/bravo1goingdark/schedcore/internal/restriction"
)

// UserState answers the scheduler-core-owned questions about user and
// app state that readiness depends on but does not itself track.
type UserState interface {
	IsUserStarted(userID int) bool
	IsUidBackingUp(uid int) bool
	HasTargetComponent(job *jobmodel.Job) bool
	IsBadApp(uid int) bool
}

// MembershipState answers whether a job is already pending or running,
// for the rejectActive check.
type MembershipState interface {
	IsPending(job *jobmodel.Job) bool
	IsRunning(job *jobmodel.Job) bool
}

// Evaluator is the ReadinessEvaluator collaborator (spec C5).
type Evaluator struct {
	constraints constraint.Evaluator
	store       jobstore.JobStore
	users       UserState
	membership  MembershipState
	restricted  restriction.Set
}

// New builds an Evaluator. constraints, store, users, and membership
// are required; restricted may be nil/empty if no restriction rules
// apply.
func New(constraints constraint.Evaluator, store jobstore.JobStore, users UserState, membership MembershipState, restricted restriction.Set) *Evaluator {
	return &Evaluator{
		constraints: constraints,
		store:       store,
		users:       users,
		membership:  membership,
		restricted:  restricted,
	}
}

// IsReadyToBeExecuted reports whether job clears every gate. When
// rejectActive is true, a job already pending or running is rejected
// (the scheduler passes true both at schedule time and in ReconsiderAll).
func (e *Evaluator) IsReadyToBeExecuted(job *jobmodel.Job, rejectActive bool) bool {
	if !e.constraints.IsReady(job) {
		return false
	}
	if _, ok := e.store.Get(job.SourceUID, job.JobID); !ok {
		return false
	}
	if !e.users.IsUserStarted(job.SourceUserID) {
		return false
	}
	if e.users.IsUidBackingUp(job.SourceUID) {
		return false
	}
	if _, restricted := e.CheckRestricted(job); restricted {
		return false
	}
	if rejectActive {
		if e.membership.IsPending(job) || e.membership.IsRunning(job) {
			return false
		}
	}
	if !e.users.HasTargetComponent(job) {
		return false
	}
	if e.users.IsBadApp(job.SourceUID) {
		return false
	}
	return true
}

// CheckRestricted returns the first matching restriction rule's name,
// short-circuiting to (\"\", false) once the job's evaluated bias has
// reached FG_SERVICE or above — restrictions never apply there.
func (e *Evaluator) CheckRestricted(job *jobmodel.Job) (string, bool) {
	if job.LastEvaluatedBias >= jobmodel.BiasFgService {
		return "", false
	}
	if e.restricted == nil {
		return "", false
	}
	attrs := map[string]any{
		"bucket":      int(job.Bucket),
		"isExpedited": job.IsExpedited,
		"isPeriodic":  job.IsPeriodic,
		"numFailures": job.NumFailures,
	}
	return e.restricted.Check(attrs)
}
