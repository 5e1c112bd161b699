package scheduler

import (
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

// RuntimeGuarantees holds the configured minimum/maximum execution
// guarantee durations (spec §4.6.3), sourced from SchedulerConfig.
type RuntimeGuarantees struct {
	RuntimeMin             time.Duration
	RuntimeMinEJ            time.Duration
	RuntimeMinHighPriority  time.Duration
	RuntimeFreeQuotaMax     time.Duration
}

// DefaultRuntimeGuarantees mirrors config.SchedulerConfig's defaults.
func DefaultRuntimeGuarantees() RuntimeGuarantees {
	return RuntimeGuarantees{
		RuntimeMin:            10 * time.Minute,
		RuntimeMinEJ:           3 * time.Minute,
		RuntimeMinHighPriority: 5 * time.Minute,
		RuntimeFreeQuotaMax:    30 * time.Minute,
	}
}

// restrictedEJCap is the ceiling applied to the expedited minimum
// guarantee for RESTRICTED-bucket apps.
const restrictedEJCap = 5 * time.Minute

// MinimumExecutionGuarantee returns how long job is guaranteed to keep
// running once started, per §4.6.3's expedited / high-priority /
// regular tiers.
func (g RuntimeGuarantees) MinimumExecutionGuarantee(job *jobmodel.Job) time.Duration {
	if job.IsExpedited || job.StartedAsExpedited {
		min := g.RuntimeMinEJ
		if job.Bucket == jobmodel.BucketRestricted && min > restrictedEJCap {
			min = restrictedEJCap
		}
		return min
	}
	if job.PriorityClass == jobmodel.PriorityHigh {
		return g.RuntimeMinHighPriority
	}
	return g.RuntimeMin
}

// HasExceededMinimumGuarantee reports whether job, started at
// startedAt, has already run at least its minimum execution guarantee
// as of now. This is the function ConcurrencyManager.AssignJobsToContexts
// and ShouldStopRunningJob use to gate preemption.
func (g RuntimeGuarantees) HasExceededMinimumGuarantee(job *jobmodel.Job, startedAt time.Time, now time.Time) bool {
	if startedAt.IsZero() {
		return true
	}
	return now.Sub(startedAt) >= g.MinimumExecutionGuarantee(job)
}

// MaximumRuntime is the quota-engine-bounded ceiling on total runtime;
// quotaEngineMax is the external QuotaEngine.maxRuntime(job) result (0
// or negative means "no additional cap").
func (g RuntimeGuarantees) MaximumRuntime(quotaEngineMax time.Duration) time.Duration {
	if quotaEngineMax > 0 && quotaEngineMax < g.RuntimeFreeQuotaMax {
		return quotaEngineMax
	}
	return g.RuntimeFreeQuotaMax
}
