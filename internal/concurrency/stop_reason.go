package concurrency

import (
	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

// Stop reason strings, used both for runner cancellation reasons and
// for log/metric labels. Spelled out verbatim rather than coded,
// matching how the teacher's resilience package logs breaker-trip
// reasons as plain text.
const (
	StopReasonBatterySaver        = "battery saver"
	StopReasonDeepDoze            = "deep doze"
	StopReasonTooManyJobsRunning  = "too many jobs running"
	StopReasonBlockingBGUserI     = "blocking BGUSER_I queue"
	StopReasonBlockingEJQueue     = "blocking EJ queue"
	StopReasonPreventTopEJDomin   = "prevent top EJ dominance"
	StopReasonBlockingOtherType   = "blocking queue"
	StopReasonBlockingOtherJobs   = "blocking other pending jobs"
)

// ShouldStopRunningJob decides whether the job running in slot may be
// replaced to free its context, evaluating the rules of §4.4.3 in
// order and returning the first reason that fires. ok is false when
// the job must keep running.
//
// minExecGuaranteeExceeded must reflect whether the job has already
// run past its minimum execution guarantee (§4.6.3); this function
// does not compute that itself.
//
// Callers must already hold m.mu (it is only ever invoked from within
// the assignment pass, which does).
func (m *ConcurrencyManager) ShouldStopRunningJob(
	slot *jobmodel.Slot,
	pending *jobmodel.PendingQueue,
	minExecGuaranteeExceeded bool,
	topEjCount int,
) (reason string, ok bool) {
	job := slot.Running
	if job == nil {
		return "", false
	}
	workType := job.RunningAs

	if !minExecGuaranteeExceeded {
		return "", false
	}
	if m.powerSaveActive {
		return StopReasonBatterySaver, true
	}
	if m.deviceIdleActive {
		return StopReasonDeepDoze, true
	}

	cfg := m.currentConfigLocked()
	totalRunning := 0
	for _, wt := range jobmodel.AllWorkTypes {
		totalRunning += m.tracker.Running(wt)
	}
	if totalRunning > cfg.MaxTotal || m.tracker.IsOverTypeLimit(workType) {
		return StopReasonTooManyJobsRunning, true
	}

	if pending.Size() == 0 {
		return "", false
	}

	isExpedited := job.IsExpedited || job.StartedAsExpedited
	if isExpedited {
		if workType == jobmodel.WorkTypeBGUserI || workType == jobmodel.WorkTypeBGUser {
			if pending.CountWorkType(jobmodel.WorkTypeBGUserI) > 0 {
				return StopReasonBlockingBGUserI, true
			}
			ej := jobmodel.NewWorkTypeSet(jobmodel.WorkTypeEJ)
			if pending.CountWorkType(jobmodel.WorkTypeEJ) > 0 && m.tracker.CanJobStartReplacing(ej, workType) != jobmodel.WorkTypeNone {
				return StopReasonBlockingEJQueue, true
			}
			return "", false
		}
		if pending.CountWorkType(jobmodel.WorkTypeEJ) > 0 {
			return StopReasonBlockingEJQueue, true
		}
		if job.StartedAsExpedited && job.LastEvaluatedBias == jobmodel.BiasTopApp &&
			float64(topEjCount) > 0.5*float64(cfg.MaxTotal) {
			return StopReasonPreventTopEJDomin, true
		}
		return "", false
	}

	if pending.CountWorkType(workType) > 0 {
		return StopReasonBlockingOtherType, true
	}

	remaining := jobmodel.NewWorkTypeSet(jobmodel.AllWorkTypes[:]...)
	stop := false
	for _, j := range pending.Snapshot() {
		if remaining.Empty() {
			break
		}
		if m.tracker.CanJobStartReplacing(j.AcceptableTypes, workType) != jobmodel.WorkTypeNone {
			stop = true
			break
		}
		j.AcceptableTypes.Iterate(func(wt jobmodel.WorkType) bool {
			remaining = remaining.Remove(wt)
			return true
		})
	}
	if stop {
		return StopReasonBlockingOtherJobs, true
	}

	return "", false
}
