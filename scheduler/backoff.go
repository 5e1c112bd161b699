package scheduler

import (
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

// Backoff bounds, per spec §4.6.1. MIN_LINEAR_BACKOFF and
// MIN_EXP_BACKOFF mirror Android's JobInfo defaults; MAX_BACKOFF_DELAY
// is the ceiling on any single reschedule delay.
const (
	MinLinearBackoff = 30 * time.Second
	MinExpBackoff    = 10 * time.Second
	MaxBackoffDelay  = 5 * time.Hour
)

// NoLatestRuntime marks a rescheduled job as having no deadline.
var NoLatestRuntime = time.Time{}

// NextFailureSchedule derives the earliest/latest run time and updated
// failure count for a job that just finished with a failure, per the
// §4.6.1 derivation.
func NextFailureSchedule(job *jobmodel.Job, now time.Time) (earliest time.Time, latest time.Time, numFailures int) {
	attempts := job.NumFailures + 1

	var delay time.Duration
	initial := time.Duration(job.InitialBackoffMs) * time.Millisecond
	switch job.BackoffPolicy {
	case jobmodel.BackoffLinear:
		base := initial
		if base < MinLinearBackoff {
			base = MinLinearBackoff
		}
		delay = base * time.Duration(attempts)
	default: // BackoffExponential
		base := initial
		if base < MinExpBackoff {
			base = MinExpBackoff
		}
		delay = base * time.Duration(pow2(attempts-1))
	}
	if delay > MaxBackoffDelay {
		delay = MaxBackoffDelay
	}

	return now.Add(delay), NoLatestRuntime, attempts
}

func pow2(n int) int64 {
	if n <= 0 {
		return 1
	}
	var r int64 = 1
	for i := 0; i < n; i++ {
		r *= 2
	}
	return r
}
