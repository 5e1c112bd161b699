// Package scheduler implements the scheduler core (spec C6): the job
// store, pending queue, running set, and recently-completed ring, tied
// together with the concurrency manager and readiness evaluator behind
// a single-threaded cooperative event loop.
package scheduler

import (
	"time"

	"github.com/bravo1goingdark/schedcore/internal/concurrency"
	"github.com/bravo1goingdark/schedcore/internal/introspect"
	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/bravo1goingdark/schedcore/internal/jobstore"
	"github.com/bravo1goingdark/schedcore/internal/logging"
	"github.com/bravo1goingdark/schedcore/internal/notify"
	"github.com/bravo1goingdark/schedcore/internal/ratelimiter"
	"github.com/bravo1goingdark/schedcore/internal/readiness"
	"github.com/bravo1goingdark/schedcore/internal/schederr"
)

// MaxJobsPerApp is the per-uid cap on stored jobs (spec §4.6: MAX_JOBS_PER_APP).
const MaxJobsPerApp = 150

// Result is the outcome of a schedule() call.
type Result int

const (
	ResultSuccess Result = iota
	ResultFailure
)

// QuotaEngine is the external collaborator that bounds a job's maximum
// runtime beyond the free quota (spec §4.6.3).
type QuotaEngine interface {
	MaxRuntime(job *jobmodel.Job) time.Duration
}

type noopQuotaEngine struct{}

func (noopQuotaEngine) MaxRuntime(*jobmodel.Job) time.Duration { return 0 }

// Scheduler is the scheduler core. All of its state is owned by a
// single dedicated goroutine (run, in events.go); public methods post
// messages to it rather than mutating state directly.
type Scheduler struct {
	store      jobstore.JobStore
	pending    *jobmodel.PendingQueue
	running    *jobmodel.RunningSet
	completed  jobmodel.CompletedHistoryRing
	concurrency *concurrency.ConcurrencyManager
	readiness  *readiness.Evaluator
	rateLimit  *ratelimiter.RateLimiter
	guarantees RuntimeGuarantees
	quotaEngine QuotaEngine
	notifier   *notify.Client
	introspect *introspect.Hub
	log        logging.Logger

	uidBias      map[int]jobmodel.Bias
	backingUp    map[int]bool
	userStarted  map[int]bool
	uidGone      map[int]bool
	badApps      map[int]bool
	missingComponent map[int]bool

	mailbox chan message
	stopped chan struct{}

	now func() time.Time
}

// Deps bundles the collaborators a Scheduler needs; every field is
// required except Notifier, Introspect, QuotaEngine, and Log.
type Deps struct {
	Store       jobstore.JobStore
	Concurrency *concurrency.ConcurrencyManager
	RateLimit   *ratelimiter.RateLimiter
	Guarantees  RuntimeGuarantees
	QuotaEngine QuotaEngine
	Notifier    *notify.Client
	Introspect  *introspect.Hub
	Log         logging.Logger
}

// New builds a Scheduler and starts its event loop goroutine. Callers
// must call Stop when done.
func New(deps Deps) *Scheduler {
	if deps.Log == nil {
		deps.Log = logging.Noop()
	}
	if deps.QuotaEngine == nil {
		deps.QuotaEngine = noopQuotaEngine{}
	}

	s := &Scheduler{
		store:            deps.Store,
		pending:          jobmodel.NewPendingQueue(),
		running:          jobmodel.NewRunningSet(),
		concurrency:      deps.Concurrency,
		rateLimit:        deps.RateLimit,
		guarantees:       deps.Guarantees,
		quotaEngine:      deps.QuotaEngine,
		notifier:         deps.Notifier,
		introspect:       deps.Introspect,
		log:              deps.Log,
		uidBias:          make(map[int]jobmodel.Bias),
		backingUp:        make(map[int]bool),
		userStarted:      make(map[int]bool),
		uidGone:          make(map[int]bool),
		badApps:          make(map[int]bool),
		missingComponent: make(map[int]bool),
		mailbox:          make(chan message, 256),
		stopped:          make(chan struct{}),
		now:              time.Now,
	}
	s.readiness = readiness.New(noopConstraints{}, deps.Store, s, s, nil)
	go s.run()
	return s
}

// Stop drains and halts the event loop. No further calls should be
// made against the scheduler afterward.
func (s *Scheduler) Stop() {
	close(s.mailbox)
	<-s.stopped
}

// --- readiness.UserState / readiness.MembershipState ---

func (s *Scheduler) IsUserStarted(userID int) bool       { return s.userStarted[userID] }
func (s *Scheduler) IsUidBackingUp(uid int) bool         { return s.backingUp[uid] }
func (s *Scheduler) HasTargetComponent(j *jobmodel.Job) bool { return !s.missingComponent[j.SourceUID] }
func (s *Scheduler) IsBadApp(uid int) bool               { return s.badApps[uid] }
func (s *Scheduler) IsPending(j *jobmodel.Job) bool       { return s.pending.Contains(j) }
func (s *Scheduler) IsRunning(j *jobmodel.Job) bool       { return s.running.Contains(j) }

type noopConstraints struct{}

func (noopConstraints) IsReady(*jobmodel.Job) bool { return true }
func (noopConstraints) Prepare(*jobmodel.Job)       {}
func (noopConstraints) Unprepare(*jobmodel.Job)     {}

// SetReadinessEvaluator swaps in a readiness evaluator; call
// before Schedule is used in anger. Not safe to call concurrently with
// other scheduler calls.
func (s *Scheduler) SetReadinessEvaluator(e *readiness.Evaluator) {
	s.readiness = e
}

// Schedule implements spec §4.6's schedule(): rate-limits persistent
// same-package calls, otherwise enforces MaxJobsPerApp, atomically
// replaces any existing (uid, jobId), and pushes the job onto the
// pending queue if it is newly ready.
func (s *Scheduler) Schedule(job *jobmodel.Job, persistentSameSource bool) Result {
	var result Result
	s.post(func() {
		result = s.scheduleLocked(job, persistentSameSource)
	})
	return result
}

func (s *Scheduler) scheduleLocked(job *jobmodel.Job, persistentSameSource bool) Result {
	if persistentSameSource && s.rateLimit != nil {
		if !s.rateLimit.IsWithinQuota(job.SourceUserID, job.SourcePackage, "schedule") {
			s.log.Warnf("schedule rate-limited for uid=%d pkg=%s", job.SourceUID, job.SourcePackage)
			return ResultFailure
		}
		s.rateLimit.NoteEvent(job.SourceUserID, job.SourcePackage, "schedule")
	} else {
		count, _ := s.store.CountForUID(job.SourceUID)
		if count >= MaxJobsPerApp {
			s.log.Errorf("schedule rejected for uid=%d: %v", job.SourceUID, schederr.New(schederr.KindTooManyJobsForUID, "uid exceeds MaxJobsPerApp"))
			return ResultFailure
		}
	}

	if existing, ok := s.store.Get(job.SourceUID, job.JobID); ok {
		s.cancelInternal(existing, "replaced")
	}

	job.LastEvaluatedBias = s.biasFor(job.SourceUID)
	if err := s.store.Add(job); err != nil {
		s.log.Errorf("store add failed: %v", err)
		return ResultFailure
	}

	if s.readiness.IsReadyToBeExecuted(job, true) {
		s.pending.Add(job)
		s.runAssignmentPass()
	}
	return ResultSuccess
}

func (s *Scheduler) biasFor(uid int) jobmodel.Bias {
	if b, ok := s.uidBias[uid]; ok {
		return b
	}
	return jobmodel.BiasDefault
}

func (s *Scheduler) runAssignmentPass() {
	s.concurrency.AssignJobsToContexts(s.pending, s.running)
	s.publishSnapshot()
}

func (s *Scheduler) publishSnapshot() {
	if s.introspect == nil {
		return
	}
	snap := introspect.Snapshot{
		Timestamp:    s.now(),
		PendingCount: s.pending.Size(),
		RunningCount: s.running.Size(),
	}
	for _, j := range s.running.Snapshot() {
		snap.Slots = append(snap.Slots, introspect.SlotSnapshot{
			InternalID: j.InternalID,
			Package:    j.SourcePackage,
			WorkType:   j.RunningAs.String(),
			StartedAt:  j.StartedAt,
		})
	}
	s.introspect.Report(snap)
}

// cancelInternal removes job from the store and, if running, asks the
// concurrency manager to stop it; if pending, removes it synchronously.
func (s *Scheduler) cancelInternal(job *jobmodel.Job, reason string) {
	if s.pending.Contains(job) {
		s.pending.Remove(job)
	}
	if s.running.Contains(job) {
		for _, slot := range s.slotsSnapshot() {
			if slot.Running != nil && slot.Running.InternalID == job.InternalID {
				s.concurrency.OnJobCompleted(slot, s.running, s.pending)
				break
			}
		}
	}
	_ = s.store.Remove(job.SourceUID, job.JobID)
	s.completed.Push(job, s.now())
}

func (s *Scheduler) slotsSnapshot() []*jobmodel.Slot {
	return s.concurrency.SlotsForIntrospection()
}

// Cancel implements cancel(uid, jobId, reason).
func (s *Scheduler) Cancel(uid int, jobID int64, reason string) {
	s.post(func() {
		if job, ok := s.store.Get(uid, jobID); ok {
			s.cancelInternal(job, reason)
		}
	})
}

// CancelForUid implements cancelForUid(uid, reason).
func (s *Scheduler) CancelForUid(uid int, reason string) {
	s.post(func() {
		s.forEachStoreMatch(func(j *jobmodel.Job) bool { return j.SourceUID == uid }, reason)
	})
}

// CancelForPackage implements cancelForPackage(uid, package, reason).
func (s *Scheduler) CancelForPackage(uid int, pkg string, reason string) {
	s.post(func() {
		s.forEachStoreMatch(func(j *jobmodel.Job) bool {
			return j.SourceUID == uid && j.SourcePackage == pkg
		}, reason)
	})
}

// CancelForUser implements cancelForUser(userId).
func (s *Scheduler) CancelForUser(userID int) {
	s.post(func() {
		s.forEachStoreMatch(func(j *jobmodel.Job) bool { return j.SourceUserID == userID }, "user removed")
	})
}

func (s *Scheduler) forEachStoreMatch(match func(*jobmodel.Job) bool, reason string) {
	var victims []*jobmodel.Job
	_ = s.store.ForEach(func(j *jobmodel.Job) bool {
		if match(j) {
			victims = append(victims, j)
		}
		return true
	})
	for _, j := range victims {
		s.cancelInternal(j, reason)
	}
}

// GetPending returns a snapshot of uid's currently pending jobs.
func (s *Scheduler) GetPending(uid int) []*jobmodel.Job {
	var out []*jobmodel.Job
	s.post(func() {
		for _, j := range s.pending.Snapshot() {
			if j.SourceUID == uid {
				out = append(out, j)
			}
		}
	})
	return out
}

// GetPendingJob returns uid's pending job with the given jobID, if any.
func (s *Scheduler) GetPendingJob(uid int, jobID int64) (*jobmodel.Job, bool) {
	var result *jobmodel.Job
	s.post(func() {
		for _, j := range s.pending.Snapshot() {
			if j.SourceUID == uid && j.JobID == jobID {
				result = j
				return
			}
		}
	})
	return result, result != nil
}

// GetStartedJobs returns a snapshot of every currently running job
// (system-caller only, per spec §6.1).
func (s *Scheduler) GetStartedJobs() []*jobmodel.Job {
	var out []*jobmodel.Job
	s.post(func() {
		out = s.running.Snapshot()
	})
	return out
}

// ReconsiderAll re-evaluates readiness for every stored job that is
// neither pending nor running and promotes the ones that now clear
// every gate. Nothing in the scheduler core itself notices the passage
// of time (constraints, earliest-run-time windows) the way it notices
// an explicit event sink call, so a caller is expected to invoke this
// on a timer.
func (s *Scheduler) ReconsiderAll() {
	s.post(func() {
		var promote []*jobmodel.Job
		_ = s.store.ForEach(func(j *jobmodel.Job) bool {
			if s.pending.Contains(j) || s.running.Contains(j) {
				return true
			}
			if s.readiness.IsReadyToBeExecuted(j, true) {
				promote = append(promote, j)
			}
			return true
		})
		if len(promote) == 0 {
			return
		}
		s.pending.AddAll(promote)
		s.runAssignmentPass()
	})
}

// OnJobFinished is the runner.FinishedFunc posted back asynchronously
// when a started job's work completes; it hands the slot back, then
// drives the §4.6.1/§4.6.2 reschedule derivations.
func (s *Scheduler) OnJobFinished(job *jobmodel.Job, workType jobmodel.WorkType, failed bool) {
	s.postAsync(func() {
		var slot *jobmodel.Slot
		for _, sl := range s.slotsSnapshot() {
			if sl.Running != nil && sl.Running.InternalID == job.InternalID {
				slot = sl
				break
			}
		}
		if slot == nil {
			return
		}
		s.concurrency.OnJobCompleted(slot, s.running, s.pending)
		_ = s.store.Remove(job.SourceUID, job.JobID)
		s.completed.Push(job, s.now())

		if failed {
			earliest, latest, failures := NextFailureSchedule(job, s.now())
			reJob := jobmodel.NewJob(job.Identity)
			copyMutableFields(reJob, job)
			reJob.EarliestRunTime = earliest
			reJob.LatestRunTime = latest
			reJob.NumFailures = failures
			reJob.LastFailedRunTime = s.now()
			s.scheduleLocked(reJob, false)
		} else if job.IsPeriodic {
			earliest, latest := NextPeriodicWindow(job, s.now())
			reJob := jobmodel.NewJob(job.Identity)
			copyMutableFields(reJob, job)
			reJob.EarliestRunTime = earliest
			reJob.LatestRunTime = latest
			reJob.OriginalLatestRunTimeElapsed = latest
			reJob.LastSuccessfulRunTime = s.now()
			reJob.NumFailures = 0
			s.scheduleLocked(reJob, false)
		}

		if s.notifier != nil {
			status := "completed"
			if failed {
				status = "failed"
			}
			_ = s.notifier.Notify("", notify.JobEvent{
				InternalID: job.InternalID,
				SourceUID:  job.SourceUID,
				Package:    job.SourcePackage,
				JobID:      job.JobID,
				WorkType:   workType,
				Status:     status,
				At:         s.now(),
			})
		}
		s.publishSnapshot()
	})
}

// --- Event sinks (spec §6.3) ---

func (s *Scheduler) OnUidProcStateChanged(uid int, bias jobmodel.Bias) {
	s.postAsync(func() {
		s.uidBias[uid] = bias
		s.concurrency.SetUidBias(uid, bias)
		s.runAssignmentPass()
	})
}

func (s *Scheduler) OnUidGone(uid int, disabled bool) {
	s.postAsync(func() {
		s.uidGone[uid] = true
		if disabled {
			s.badApps[uid] = true
		}
		s.forEachStoreMatch(func(j *jobmodel.Job) bool { return j.SourceUID == uid }, "uid gone")
	})
}

func (s *Scheduler) OnUidIdle(uid int)   { s.postAsync(func() {}) }
func (s *Scheduler) OnUidActive(uid int) { s.postAsync(func() { s.runAssignmentPass() }) }

func (s *Scheduler) OnDeviceIdle(active bool) {
	s.postAsync(func() {
		toCancel := s.concurrency.OnDeviceIdleChanged(active)
		for _, slot := range toCancel {
			s.cancelInternal(slot.Running, StopReasonDeviceIdle)
		}
		s.runAssignmentPass()
	})
}

func (s *Scheduler) OnPowerSave(active bool) {
	s.postAsync(func() {
		toCancel := s.concurrency.OnPowerSaveChanged(active)
		for _, slot := range toCancel {
			s.cancelInternal(slot.Running, concurrency.StopReasonBatterySaver)
		}
		s.runAssignmentPass()
	})
}

func (s *Scheduler) OnInteractiveChanged(interactive bool) {
	s.postAsync(func() {
		s.concurrency.SetInteractive(interactive, func() {
			s.postAsync(s.runAssignmentPass)
		})
		s.runAssignmentPass()
	})
}

func (s *Scheduler) OnMemoryTrim(level jobmodel.MemoryTrimLevel) {
	s.postAsync(func() {
		s.concurrency.RefreshMemoryTrim(level)
		s.runAssignmentPass()
	})
}

func (s *Scheduler) OnUserStarted(userID int) {
	s.postAsync(func() {
		s.userStarted[userID] = true
		s.concurrency.Grace().OnUserSwitch(userID)
		s.runAssignmentPass()
	})
}

func (s *Scheduler) OnUserStopped(userID int) {
	s.postAsync(func() { delete(s.userStarted, userID) })
}

func (s *Scheduler) OnUserSwitched(userID int) {
	s.postAsync(func() {
		s.concurrency.Grace().OnUserSwitch(userID)
		s.runAssignmentPass()
	})
}

func (s *Scheduler) OnUserRemoved(userID int) {
	s.postAsync(func() {
		delete(s.userStarted, userID)
		s.concurrency.Grace().OnUserRemoved(userID)
		s.forEachStoreMatch(func(j *jobmodel.Job) bool { return j.SourceUserID == userID }, "user removed")
	})
}

func (s *Scheduler) OnPackageChanged(pkg string, uid int) {
	s.postAsync(func() { s.runAssignmentPass() })
}

func (s *Scheduler) OnPackageRemoved(pkg string, uid int) {
	s.postAsync(func() {
		s.forEachStoreMatch(func(j *jobmodel.Job) bool {
			return j.SourceUID == uid && j.SourcePackage == pkg
		}, "package removed")
	})
}

func (s *Scheduler) OnBackingUp(uid int, backingUp bool) {
	s.postAsync(func() {
		s.backingUp[uid] = backingUp
		if !backingUp {
			s.runAssignmentPass()
		}
	})
}

// StopReasonDeviceIdle labels cancellations triggered by doze entry
// for jobs lacking the can-run-in-doze marker.
const StopReasonDeviceIdle = "deep doze"

// copyMutableFields carries forward the static, caller-specified
// fields of a rescheduled job (everything but identity and run-time
// scratch state, which the caller sets explicitly afterward).
func copyMutableFields(dst, src *jobmodel.Job) {
	dst.IsPeriodic = src.IsPeriodic
	dst.IsPrefetch = src.IsPrefetch
	dst.IsExpedited = src.IsExpedited
	dst.CanRunInDoze = src.CanRunInDoze
	dst.Bias = src.Bias
	dst.Bucket = src.Bucket
	dst.PeriodMs = src.PeriodMs
	dst.FlexMs = src.FlexMs
	dst.BackoffPolicy = src.BackoffPolicy
	dst.InitialBackoffMs = src.InitialBackoffMs
	dst.PriorityClass = src.PriorityClass
	dst.AcceptableTypes = src.AcceptableTypes
	dst.OriginalLatestRunTimeElapsed = src.OriginalLatestRunTimeElapsed
}
