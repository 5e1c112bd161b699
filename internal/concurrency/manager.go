package concurrency

import (
	"sort"
	"sync"
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/bravo1goingdark/schedcore/internal/logging"
	"github.com/bravo1goingdark/schedcore/internal/runner"
)

// MinExecGuaranteeFunc reports whether job has already run at least as
// long as its minimum execution guarantee (§4.6.3).
type MinExecGuaranteeFunc func(job *jobmodel.Job, startedAt time.Time, now time.Time) bool

// ConcurrencyManager is the heart of the scheduler: it owns the slot
// table, the package limiter, the work-count tracker, the current
// WorkTypeConfig, and interactive/memory-pressure state, and runs the
// assignment pass that hands pending jobs to execution contexts.
type ConcurrencyManager struct {
	mu sync.Mutex

	tracker    *WorkCountTracker
	pkgLimiter *PackageLimiter
	grace      *GracePeriodTracker
	slots      *SlotTable
	runner     runner.JobRunner
	log        logging.Logger

	configs map[jobmodel.ScreenState]map[jobmodel.MemoryTrimLevel]jobmodel.WorkTypeConfig

	uidBias map[int]jobmodel.Bias

	currentInteractive  bool
	effectiveInteractive bool
	screenOffDelay      time.Duration
	screenOffTimer      *time.Timer

	trimLevel       jobmodel.MemoryTrimLevel
	lastTrimRefresh time.Time

	powerSaveActive  bool
	deviceIdleActive bool

	minExecGuarantee MinExecGuaranteeFunc

	now func() time.Time
}

// NewConcurrencyManager wires a manager over configs (keyed by screen
// state and memory trim level), using r to start/cancel work.
func NewConcurrencyManager(
	configs map[jobmodel.ScreenState]map[jobmodel.MemoryTrimLevel]jobmodel.WorkTypeConfig,
	screenOffDelay time.Duration,
	r runner.JobRunner,
	minExecGuarantee MinExecGuaranteeFunc,
	log logging.Logger,
) *ConcurrencyManager {
	if log == nil {
		log = logging.Noop()
	}
	m := &ConcurrencyManager{
		tracker:             NewWorkCountTracker(),
		pkgLimiter:          NewPackageLimiter(),
		grace:               NewGracePeriodTracker(10*time.Minute, nil),
		slots:               NewSlotTable(),
		runner:              r,
		log:                 log,
		configs:             configs,
		uidBias:             make(map[int]jobmodel.Bias),
		currentInteractive:  true,
		effectiveInteractive: true,
		screenOffDelay:      screenOffDelay,
		minExecGuarantee:    minExecGuarantee,
		now:                 time.Now,
	}
	m.slots.Grow()
	m.applyConfigLocked()
	return m
}

// Tracker, PackageLimiter, and Grace expose the sub-collaborators for
// wiring into the scheduler core and for tests.
func (m *ConcurrencyManager) Tracker() *WorkCountTracker   { return m.tracker }
func (m *ConcurrencyManager) PackageLimiter() *PackageLimiter { return m.pkgLimiter }
func (m *ConcurrencyManager) Grace() *GracePeriodTracker   { return m.grace }

// SlotsForIntrospection returns a snapshot of the active slot table,
// for callers (scheduler core, introspection) that need to find which
// context a job is running in.
func (m *ConcurrencyManager) SlotsForIntrospection() []*jobmodel.Slot {
	return m.slots.Active()
}

// SetUidBias records the process-state-derived bias for uid, consulted
// by the next assignment pass when refreshing pending jobs' work types.
func (m *ConcurrencyManager) SetUidBias(uid int, bias jobmodel.Bias) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uidBias[uid] = bias
}

func (m *ConcurrencyManager) PowerSaveActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.powerSaveActive
}

func (m *ConcurrencyManager) DeviceIdleActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceIdleActive
}

// CurrentConfig returns the WorkTypeConfig row currently in effect.
func (m *ConcurrencyManager) CurrentConfig() jobmodel.WorkTypeConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentConfigLocked()
}

func (m *ConcurrencyManager) currentConfigLocked() jobmodel.WorkTypeConfig {
	state := jobmodel.ScreenOff
	if m.effectiveInteractive {
		state = jobmodel.ScreenOn
	}
	return m.configs[state][m.trimLevel]
}

func (m *ConcurrencyManager) applyConfigLocked() {
	cfg := m.currentConfigLocked()
	m.tracker.SetConfig(cfg)
	m.pkgLimiter.SetMaxTotal(cfg.MaxTotal)
}

// SetInteractive implements the §4.4.1 screen-state rules. On
// screen-on both flags flip true immediately and any pending off-ramp
// is cancelled; on screen-off only currentInteractive drops, and the
// effective flag follows only once the off-ramp timer fires.
func (m *ConcurrencyManager) SetInteractive(interactive bool, onRampComplete func()) {
	m.mu.Lock()
	if interactive {
		m.currentInteractive = true
		m.effectiveInteractive = true
		if m.screenOffTimer != nil {
			m.screenOffTimer.Stop()
			m.screenOffTimer = nil
		}
		m.applyConfigLocked()
		m.mu.Unlock()
		return
	}

	m.currentInteractive = false
	delay := m.screenOffDelay
	if delay <= 0 {
		delay = 30 * time.Second
	}
	if m.screenOffTimer != nil {
		m.screenOffTimer.Stop()
	}
	m.screenOffTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if !m.currentInteractive {
			m.effectiveInteractive = false
			m.applyConfigLocked()
		}
		m.mu.Unlock()
		if onRampComplete != nil {
			onRampComplete()
		}
	})
	m.mu.Unlock()
}

// RefreshMemoryTrim updates the trim level, throttled to at most once
// per second, and re-applies the resulting config.
func (m *ConcurrencyManager) RefreshMemoryTrim(level jobmodel.MemoryTrimLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.now().Sub(m.lastTrimRefresh) < time.Second {
		return
	}
	m.lastTrimRefresh = m.now()
	m.trimLevel = level
	m.applyConfigLocked()
}

// OnDeviceIdleChanged implements the doze-entry cancellation rule:
// cancel every running job lacking the can-run-in-doze marker, plus
// any job already past its minimum execution guarantee.
func (m *ConcurrencyManager) OnDeviceIdleChanged(active bool) []*jobmodel.Slot {
	m.mu.Lock()
	m.deviceIdleActive = active
	m.mu.Unlock()
	if !active {
		return nil
	}
	return m.cancelPastGuaranteeOrNotDozeCapable(true)
}

// OnPowerSaveChanged implements the power-save rule: cancel any
// running job already past its minimum execution guarantee.
func (m *ConcurrencyManager) OnPowerSaveChanged(active bool) []*jobmodel.Slot {
	m.mu.Lock()
	m.powerSaveActive = active
	m.mu.Unlock()
	if !active {
		return nil
	}
	return m.cancelPastGuaranteeOrNotDozeCapable(false)
}

func (m *ConcurrencyManager) cancelPastGuaranteeOrNotDozeCapable(requireDozeMarker bool) []*jobmodel.Slot {
	now := m.now()
	var toCancel []*jobmodel.Slot
	for _, s := range m.slots.Active() {
		if s.Running == nil {
			continue
		}
		exceeded := m.minExecGuarantee != nil && m.minExecGuarantee(s.Running, s.StartedAt, now)
		if requireDozeMarker && !s.Running.CanRunInDoze {
			toCancel = append(toCancel, s)
			continue
		}
		if exceeded {
			toCancel = append(toCancel, s)
		}
	}
	return toCancel
}

// startDecision and stopDecision record what the caller must do once
// the assignment pass's bookkeeping is complete: contexts to start (with
// a job and chosen work type) and contexts to stop (with a reason).
type startDecision struct {
	slot     *jobmodel.Slot
	job      *jobmodel.Job
	workType jobmodel.WorkType
}

type stopDecision struct {
	slot   *jobmodel.Slot
	reason string
}

// AssignJobsToContexts runs one pass of §4.4.2's algorithm: classify
// running contexts, update tracker reservations for the current
// pending set, then walk the pending queue deciding starts and
// preemptions, finally invoking the runner. Idle contexts that were not
// used stay in the slot table; this pass releases none of them.
func (m *ConcurrencyManager) AssignJobsToContexts(pending *jobmodel.PendingQueue, running *jobmodel.RunningSet) {
	if pending.Size() == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.slots.Grow()

	idle, stoppable, preferredOnly := m.slots.Classify(func(s *jobmodel.Slot) (string, bool) {
		exceeded := m.minExecGuarantee != nil && m.minExecGuarantee(s.Running, s.StartedAt, now)
		return m.ShouldStopRunningJob(s, pending, exceeded, m.countTopEJLocked())
	})

	sortByDetermination(stoppable)
	sortByDetermination(preferredOnly)

	for _, j := range pending.Snapshot() {
		bias := m.uidBias[j.SourceUID]
		j.LastEvaluatedBias = bias
		j.AcceptableTypes = jobmodel.ClassifyWorkTypes(bias, j.IsExpedited, m.grace.IsForegroundEquivalent(j.SourceUserID))
		m.tracker.IncrementPending(j.AcceptableTypes)
	}
	m.tracker.OnCountDone()

	cfg := m.currentConfigLocked()

	var starts []startDecision
	var stops []stopDecision
	idleCursor := 0
	topEjRunning := m.countTopEJLocked()

	for _, next := range pending.Snapshot() {
		if running.Contains(next) {
			m.log.Warnf("assignment pass skipping already-running job %s", next.InternalID)
			continue
		}

		w := next.AcceptableTypes
		isTopEJ := next.IsExpedited && next.LastEvaluatedBias == jobmodel.BiasTopApp
		pkgOk := !m.pkgLimiter.IsPackageLimited(next, func() int {
			return pending.Size() + running.Size()
		})
		projectedRunning := running.Size() + len(starts)
		isOverage := projectedRunning > jobmodel.StandardConcurrencyLimit

		assigned := false
		preempted := false
		var chosenSlot *jobmodel.Slot
		var chosenWT jobmodel.WorkType

		// c. try idle slot
		if idleCursor < len(idle) {
			cand := idle[idleCursor]
			if (!cand.HasPreferred || cand.PreferredUID == next.SourceUID) && pkgOk {
				if wt := m.tracker.CanJobStart(w); wt != jobmodel.WorkTypeNone {
					idleCursor++
					chosenSlot, chosenWT = cand, wt
					assigned = true
				}
			}
		}

		// d. stop a stoppable context and reserve it for next. The
		// replacement does not start in this pass: OnJobCompleted
		// claims the slot once the runner confirms the stop.
		if !assigned {
			for i, cand := range stoppable {
				if cand == nil {
					continue
				}
				allow := isTopEJ
				if !allow && !isOverage {
					startedWhenNotTop := cand.Running.LastEvaluatedBias != jobmodel.BiasTopApp
					fellBelowTop := cand.Running.Bias < jobmodel.BiasTopApp
					allow = startedWhenNotTop || fellBelowTop || float64(topEjRunning) > 0.5*float64(cfg.MaxTotal)
				}
				if !allow {
					continue
				}
				if m.tracker.CanJobStartReplacing(w, cand.Running.RunningAs) != jobmodel.WorkTypeNone {
					stoppable[i] = nil
					stops = append(stops, stopDecision{slot: cand, reason: m.lastStopReason(cand, pending, now)})
					cand.PreferredUID = next.SourceUID
					cand.HasPreferred = true
					assigned = true
					preempted = true
					break
				}
			}
		}

		// e. stop a same-uid lower-bias job the same way: reserve the
		// slot for next, defer the actual start to OnJobCompleted.
		if !assigned && !isOverage && !isTopEJ {
			var victim *jobmodel.Slot
			victimIdx := -1
			for i, cand := range preferredOnly {
				if cand == nil || cand.Running.SourceUID != next.SourceUID {
					continue
				}
				if cand.Running.LastEvaluatedBias >= next.LastEvaluatedBias {
					continue
				}
				if victim == nil || cand.Running.LastEvaluatedBias < victim.Running.LastEvaluatedBias {
					victim, victimIdx = cand, i
				}
			}
			if victim != nil {
				if m.tracker.CanJobStartReplacing(w, victim.Running.RunningAs) != jobmodel.WorkTypeNone {
					preferredOnly[victimIdx] = nil
					stops = append(stops, stopDecision{slot: victim, reason: "higher bias job found"})
					victim.PreferredUID = next.SourceUID
					victim.HasPreferred = true
					assigned = true
					preempted = true
				}
			}
		}

		// f. force a slot for top EJ
		if !assigned && isTopEJ {
			if idleCursor < len(idle) {
				chosenSlot = idle[idleCursor]
				idleCursor++
			} else {
				chosenSlot = &jobmodel.Slot{}
			}
			wt := m.tracker.CanJobStart(w)
			if wt == jobmodel.WorkTypeNone {
				wt = jobmodel.WorkTypeTop
			}
			chosenWT = wt
			assigned = true
		}

		if preempted {
			// next stays pending; it is claimed by OnJobCompleted once
			// the victim's stop actually lands, not here.
			continue
		}

		if assigned && chosenSlot != nil {
			forEJ := next.IsExpedited
			key := jobmodel.PackageKey{UserID: next.SourceUserID, Package: next.SourcePackage}
			m.pkgLimiter.AdjustStaged(key, forEJ, 1)
			m.tracker.StageJob(chosenWT, w)
			starts = append(starts, startDecision{slot: chosenSlot, job: next, workType: chosenWT})
			if isTopEJ {
				topEjRunning++
			}
		}
	}

	for _, st := range stops {
		m.runner.Cancel(st.slot.Running, st.reason, st.reason, st.reason)
	}
	for _, sd := range starts {
		sd.slot.Running = sd.job
		sd.slot.StartedAt = now
		sd.job.RunningAs = sd.workType
		sd.job.StartedAt = now
		if sd.job.IsExpedited {
			sd.job.StartedAsExpedited = true
		}
		m.tracker.OnJobStarted(sd.workType)
		key := jobmodel.PackageKey{UserID: sd.job.SourceUserID, Package: sd.job.SourcePackage}
		m.pkgLimiter.AdjustRunning(key, sd.job.IsExpedited, 1)
		running.Add(sd.job)
		pending.Remove(sd.job)
		m.runner.Start(sd.job, sd.workType)
	}

	m.pkgLimiter.ResetStaging()
}

func (m *ConcurrencyManager) countTopEJLocked() int {
	n := 0
	for _, s := range m.slots.Active() {
		if s.Running != nil && s.Running.RunningAs == jobmodel.WorkTypeEJ && s.Running.LastEvaluatedBias == jobmodel.BiasTopApp {
			n++
		}
	}
	return n
}

func (m *ConcurrencyManager) lastStopReason(s *jobmodel.Slot, pending *jobmodel.PendingQueue, now time.Time) string {
	exceeded := m.minExecGuarantee != nil && m.minExecGuarantee(s.Running, s.StartedAt, now)
	reason, ok := m.ShouldStopRunningJob(s, pending, exceeded, m.countTopEJLocked())
	if !ok {
		return "preempted for higher priority work"
	}
	return reason
}

// sortByDetermination orders contexts per the §4.4.2 step-3 comparator:
// contexts with no running job last, non-TOP-app jobs before TOP-app
// jobs, and within a tier the longest-running job first.
func sortByDetermination(slots []*jobmodel.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		aRunning, bRunning := a.Running != nil, b.Running != nil
		if aRunning != bRunning {
			return aRunning
		}
		if !aRunning {
			return false
		}
		aTop := a.Running.Bias >= jobmodel.BiasTopApp
		bTop := b.Running.Bias >= jobmodel.BiasTopApp
		if aTop != bTop {
			return !aTop
		}
		return a.StartedAt.Before(b.StartedAt)
	})
}

// OnJobCompleted implements the §4.4.4 hand-off: release the slot,
// reconcile tracker/package-stats, and start whatever pending job
// should claim the freed context.
func (m *ConcurrencyManager) OnJobCompleted(slot *jobmodel.Slot, running *jobmodel.RunningSet, pending *jobmodel.PendingQueue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := slot.Running
	if job == nil {
		return
	}
	workType := job.RunningAs
	m.tracker.OnJobFinished(workType)
	key := jobmodel.PackageKey{UserID: job.SourceUserID, Package: job.SourcePackage}
	m.pkgLimiter.AdjustRunning(key, job.IsExpedited, -1)
	running.Remove(job)
	prevBias := job.Bias
	slot.Running = nil
	m.slots.Release(slot)

	if slot.HasPreferred {
		var sameUID *jobmodel.Job
		var backup *jobmodel.Job
		for _, cand := range pending.Snapshot() {
			if cand.SourceUID == slot.PreferredUID {
				ignoreCaps := cand.LastEvaluatedBias > prevBias
				pkgOk := ignoreCaps || !m.pkgLimiter.IsPackageLimited(cand, func() int { return pending.Size() + running.Size() })
				if pkgOk && (sameUID == nil || cand.LastEvaluatedBias > sameUID.LastEvaluatedBias) {
					sameUID = cand
				}
			} else if backup == nil {
				if !m.pkgLimiter.IsPackageLimited(cand, func() int { return pending.Size() + running.Size() }) {
					if wt := m.tracker.CanJobStart(cand.AcceptableTypes); wt != jobmodel.WorkTypeNone {
						backup = cand
					}
				}
			}
		}
		winner := sameUID
		if winner == nil {
			winner = backup
		}
		if winner != nil {
			m.startOnSlotLocked(slot, winner, pending, running)
		} else {
			slot.HasPreferred = false
			slot.PreferredUID = 0
		}
		return
	}

	var best *jobmodel.Job
	for _, cand := range pending.Snapshot() {
		if m.pkgLimiter.IsPackageLimited(cand, func() int { return pending.Size() + running.Size() }) {
			continue
		}
		if m.tracker.CanJobStart(cand.AcceptableTypes) == jobmodel.WorkTypeNone {
			continue
		}
		if best == nil || cand.LastEvaluatedBias > best.LastEvaluatedBias {
			best = cand
		}
	}
	if best != nil {
		m.startOnSlotLocked(slot, best, pending, running)
	}
}

func (m *ConcurrencyManager) startOnSlotLocked(slot *jobmodel.Slot, job *jobmodel.Job, pending *jobmodel.PendingQueue, running *jobmodel.RunningSet) {
	wt := m.tracker.CanJobStart(job.AcceptableTypes)
	if wt == jobmodel.WorkTypeNone {
		return
	}
	m.tracker.StageJob(wt, job.AcceptableTypes)
	m.tracker.OnJobStarted(wt)
	key := jobmodel.PackageKey{UserID: job.SourceUserID, Package: job.SourcePackage}
	m.pkgLimiter.AdjustRunning(key, job.IsExpedited, 1)

	slot.Running = job
	slot.StartedAt = m.now()
	job.RunningAs = wt
	job.StartedAt = slot.StartedAt
	if job.IsExpedited {
		job.StartedAsExpedited = true
	}
	running.Add(job)
	pending.Remove(job)
	m.runner.Start(job, wt)
}
