// Package concurrency implements the scheduler's admission-control
// core: the work-count tracker, per-package limiter, grace-period
// tracker, and the concurrency manager that ties them to a slot
// table. The package favors small fixed-size arrays over maps for the
// six work-type counters, grounded on the teacher's worker-pool
// channel capacity pattern of sizing state up front rather than
// growing collections on demand.
package concurrency

import (
	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

const numWorkTypes = 6

func floor0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// WorkCountTracker decides, for a fixed configuration and a set of
// observed running/pending/staging counts per work type, whether one
// more job may start now.
type WorkCountTracker struct {
	cfgMaxTotal      int
	cfgMinReserved   [numWorkTypes]int
	cfgMaxAllowed    [numWorkTypes]int
	running          [numWorkTypes]int
	pending          [numWorkTypes]int
	staging          [numWorkTypes]int
	actuallyReserved [numWorkTypes]int

	unspecializedRemaining int
}

// NewWorkCountTracker creates a tracker with an empty configuration;
// call SetConfig before use.
func NewWorkCountTracker() *WorkCountTracker {
	return &WorkCountTracker{}
}

// SetConfig replaces the thresholds and recomputes unspecialized
// remaining from the current running counts.
func (t *WorkCountTracker) SetConfig(cfg jobmodel.WorkTypeConfig) {
	t.cfgMaxTotal = cfg.MaxTotal
	t.cfgMinReserved = cfg.MinReserved
	t.cfgMaxAllowed = cfg.MaxAllowed

	reserved := 0
	for wt := 0; wt < numWorkTypes; wt++ {
		reserved += maxInt(t.running[wt], t.cfgMinReserved[wt])
	}
	t.unspecializedRemaining = t.cfgMaxTotal - reserved
}

// IncrementPending adds one to pending[wt] for every wt in W.
func (t *WorkCountTracker) IncrementPending(w jobmodel.WorkTypeSet) {
	w.Iterate(func(wt jobmodel.WorkType) bool {
		t.pending[wt]++
		return true
	})
}

// DecrementPending is the inverse of IncrementPending. When W names
// more than one work type, every named type's reservation is then
// re-evaluated (spec: multi-type jobs can free up a slot once they
// leave the pending set for any one of their acceptable types).
func (t *WorkCountTracker) DecrementPending(w jobmodel.WorkTypeSet) {
	multi := 0
	w.Iterate(func(wt jobmodel.WorkType) bool {
		multi++
		return true
	})

	w.Iterate(func(wt jobmodel.WorkType) bool {
		t.pending[wt] = floor0(t.pending[wt] - 1)
		return true
	})

	if multi > 1 {
		w.Iterate(func(wt jobmodel.WorkType) bool {
			t.maybeAdjustReservations(wt)
			return true
		})
	}
}

// StageJob records that a job of the chosen work type has been
// assigned to a slot but not yet confirmed started.
func (t *WorkCountTracker) StageJob(wt jobmodel.WorkType, w jobmodel.WorkTypeSet) {
	t.staging[wt]++
	t.DecrementPending(w)
	if t.staging[wt]+t.running[wt] > t.actuallyReserved[wt] {
		t.unspecializedRemaining--
	}
}

// OnJobStarted moves a job from staging to running for wt.
func (t *WorkCountTracker) OnJobStarted(wt jobmodel.WorkType) {
	t.running[wt]++
	t.staging[wt] = floor0(t.staging[wt] - 1)
}

// OnJobFinished removes a completed job from the running count.
func (t *WorkCountTracker) OnJobFinished(wt jobmodel.WorkType) {
	t.running[wt] = floor0(t.running[wt] - 1)
	t.maybeAdjustReservations(wt)
}

// OnStagedJobFailed reverts a staged job that the runner rejected.
func (t *WorkCountTracker) OnStagedJobFailed(wt jobmodel.WorkType) {
	t.staging[wt] = floor0(t.staging[wt] - 1)
	t.maybeAdjustReservations(wt)
}

// OnCountDone rebuilds actuallyReserved and unspecializedRemaining
// from scratch after pending counts have been refreshed for an
// assignment pass. It is the three-step reservation assignment:
// reserve exactly what's running, then fill toward min reservations,
// then fill further toward max allowed, all in work-type priority
// order (TOP first).
func (t *WorkCountTracker) OnCountDone() {
	unspecialized := t.cfgMaxTotal
	for _, wt := range jobmodel.AllWorkTypes {
		t.actuallyReserved[wt] = t.running[wt]
		unspecialized -= t.running[wt]
	}

	for _, wt := range jobmodel.AllWorkTypes {
		want := t.cfgMinReserved[wt] - t.actuallyReserved[wt]
		if want <= 0 {
			continue
		}
		demandCap := t.running[wt] + t.pending[wt] - t.actuallyReserved[wt]
		take := minInt(want, minInt(demandCap, unspecialized))
		take = maxInt(take, 0)
		t.actuallyReserved[wt] += take
		unspecialized -= take
	}

	for _, wt := range jobmodel.AllWorkTypes {
		want := t.cfgMaxAllowed[wt] - t.actuallyReserved[wt]
		if want <= 0 {
			continue
		}
		demandCap := t.running[wt] + t.pending[wt] - t.actuallyReserved[wt]
		take := minInt(want, minInt(demandCap, unspecialized))
		take = maxInt(take, 0)
		t.actuallyReserved[wt] += take
		unspecialized -= take
	}

	t.unspecializedRemaining = unspecialized
}

// CanJobStart picks the first work type in W (iterated TOP, FGS, EJ,
// BG, BGUSER_I, BGUSER) with spare capacity, or WorkTypeNone if none
// has room.
func (t *WorkCountTracker) CanJobStart(w jobmodel.WorkTypeSet) jobmodel.WorkType {
	result := jobmodel.WorkTypeNone
	w.Iterate(func(wt jobmodel.WorkType) bool {
		ceiling := minInt(t.cfgMaxAllowed[wt], t.actuallyReserved[wt]+t.unspecializedRemaining)
		if t.running[wt]+t.staging[wt] < ceiling {
			result = wt
			return false
		}
		return true
	})
	return result
}

// CanJobStartReplacing simulates replacingWt's current occupant
// ending, then evaluates CanJobStart(W) as if that slot were free.
func (t *WorkCountTracker) CanJobStartReplacing(w jobmodel.WorkTypeSet, replacingWt jobmodel.WorkType) jobmodel.WorkType {
	orig := t.running[replacingWt]
	t.running[replacingWt] = floor0(orig - 1)
	t.unspecializedRemaining++

	result := t.CanJobStart(w)

	t.running[replacingWt] = orig
	t.unspecializedRemaining--
	return result
}

// IsOverTypeLimit reports whether wt is currently running more jobs
// than its configured maximum allows.
func (t *WorkCountTracker) IsOverTypeLimit(wt jobmodel.WorkType) bool {
	return t.running[wt] > t.cfgMaxAllowed[wt]
}

// Running, Pending, and Staging expose the raw counters for tests and
// for ConcurrencyManager bookkeeping.
func (t *WorkCountTracker) Running(wt jobmodel.WorkType) int { return t.running[wt] }
func (t *WorkCountTracker) Pending(wt jobmodel.WorkType) int { return t.pending[wt] }
func (t *WorkCountTracker) Staging(wt jobmodel.WorkType) int { return t.staging[wt] }
func (t *WorkCountTracker) ActuallyReserved(wt jobmodel.WorkType) int {
	return t.actuallyReserved[wt]
}
func (t *WorkCountTracker) UnspecializedRemaining() int { return t.unspecializedRemaining }
func (t *WorkCountTracker) MaxTotal() int                { return t.cfgMaxTotal }

// maybeAdjustReservations shrinks wt's reservation toward its actual
// demand when that demand has dropped, redonating the freed capacity
// to the highest-priority work type that still wants it (or, failing
// that, back to the unspecialized pool).
func (t *WorkCountTracker) maybeAdjustReservations(wt jobmodel.WorkType) {
	demand := maxInt(t.cfgMinReserved[wt], t.running[wt]+t.staging[wt]+t.pending[wt])
	if demand >= t.actuallyReserved[wt] {
		return
	}

	freed := t.actuallyReserved[wt] - demand
	t.actuallyReserved[wt] = demand

	for _, wt2 := range jobmodel.AllWorkTypes {
		if wt2 == wt {
			continue
		}
		demand2 := maxInt(t.cfgMinReserved[wt2], t.running[wt2]+t.staging[wt2]+t.pending[wt2])
		if t.actuallyReserved[wt2] >= t.cfgMaxAllowed[wt2] || demand2 <= t.actuallyReserved[wt2] {
			continue
		}
		headroom := t.cfgMaxAllowed[wt2] - t.actuallyReserved[wt2]
		give := minInt(freed, headroom)
		t.actuallyReserved[wt2] += give
		freed -= give
		if freed == 0 {
			return
		}
	}

	t.unspecializedRemaining += freed
}
