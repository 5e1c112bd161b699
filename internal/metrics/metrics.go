// Package metrics exposes scheduler counters via expvar, the way the
// teacher's internal/metrics singleton wraps expvar counters behind a
// package-level GetMetrics() accessor.
package metrics

import (
	"expvar"
	"sync"
	"time"
)

// Metrics holds the scheduler's process-wide counters.
type Metrics struct {
	JobsScheduled     *expvar.Int
	JobsCompleted     *expvar.Int
	JobsFailed        *expvar.Int
	JobsCancelled     *expvar.Int
	JobsPreempted     *expvar.Int
	AssignmentPasses  *expvar.Int
	RunnerStartFailed *expvar.Int
	ActiveSlots       *expvar.Int
	PendingQueueSize  *expvar.Int
	PackageThrottled  *expvar.Int

	startTime time.Time
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide Metrics singleton, creating it (and
// registering its expvar variables) on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			JobsScheduled:     expvar.NewInt("scheduler_jobs_scheduled_total"),
			JobsCompleted:     expvar.NewInt("scheduler_jobs_completed_total"),
			JobsFailed:        expvar.NewInt("scheduler_jobs_failed_total"),
			JobsCancelled:     expvar.NewInt("scheduler_jobs_cancelled_total"),
			JobsPreempted:     expvar.NewInt("scheduler_jobs_preempted_total"),
			AssignmentPasses:  expvar.NewInt("scheduler_assignment_passes_total"),
			RunnerStartFailed: expvar.NewInt("scheduler_runner_start_failed_total"),
			ActiveSlots:       expvar.NewInt("scheduler_active_slots"),
			PendingQueueSize:  expvar.NewInt("scheduler_pending_queue_size"),
			PackageThrottled:  expvar.NewInt("scheduler_package_throttled_total"),
			startTime:         time.Now(),
		}

		expvar.Publish("scheduler_uptime_seconds", expvar.Func(func() any {
			return int64(time.Since(instance.startTime).Seconds())
		}))
	})
	return instance
}

// Uptime reports how long this process has been running.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
