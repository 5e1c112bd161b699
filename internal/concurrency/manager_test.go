package concurrency

import (
	"testing"
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	started []*jobmodel.Job
	cancelled []*jobmodel.Job
}

func (f *fakeRunner) Start(job *jobmodel.Job, wt jobmodel.WorkType) bool {
	f.started = append(f.started, job)
	return true
}

func (f *fakeRunner) Cancel(job *jobmodel.Job, reason, internalReason, debugReason string) {
	f.cancelled = append(f.cancelled, job)
}

func neverExceeds(job *jobmodel.Job, startedAt, now time.Time) bool { return false }

func newTestManager(maxTotal int) (*ConcurrencyManager, *fakeRunner) {
	cfg := jobmodel.WorkTypeConfig{
		MaxTotal:    maxTotal,
		MinReserved: [6]int{1, 0, 0, 0, 0, 0},
		MaxAllowed:  [6]int{maxTotal, maxTotal, maxTotal, maxTotal, maxTotal, maxTotal},
	}
	configs := map[jobmodel.ScreenState]map[jobmodel.MemoryTrimLevel]jobmodel.WorkTypeConfig{
		jobmodel.ScreenOn:  {jobmodel.TrimNormal: cfg},
		jobmodel.ScreenOff: {jobmodel.TrimNormal: cfg},
	}
	r := &fakeRunner{}
	m := NewConcurrencyManager(configs, 30*time.Second, r, neverExceeds, nil)
	return m, r
}

func newBGJob(uid int, pkg string, jobID int64) *jobmodel.Job {
	j := jobmodel.NewJob(jobmodel.Identity{SourceUID: uid, SourceUserID: 0, SourcePackage: pkg, JobID: jobID})
	j.AcceptableTypes = jobmodel.NewWorkTypeSet(jobmodel.WorkTypeBG)
	j.Bias = jobmodel.BiasDefault
	j.LastEvaluatedBias = jobmodel.BiasDefault
	return j
}

func TestAssignJobsToContextsStartsJobsWithinCapacity(t *testing.T) {
	m, r := newTestManager(4)
	pending := jobmodel.NewPendingQueue()
	running := jobmodel.NewRunningSet()

	for i := 0; i < 3; i++ {
		pending.Add(newBGJob(1000+i, "com.example.app", int64(i)))
	}

	m.AssignJobsToContexts(pending, running)

	assert.Equal(t, 3, running.Size())
	assert.Equal(t, 0, pending.Size())
	assert.Len(t, r.started, 3)
}

func TestAssignJobsToContextsRespectsStandardConcurrencyLimit(t *testing.T) {
	m, _ := newTestManager(4)
	pending := jobmodel.NewPendingQueue()
	running := jobmodel.NewRunningSet()

	for i := 0; i < 5; i++ {
		pending.Add(newBGJob(1000+i, "com.example.app", int64(i)))
	}

	m.AssignJobsToContexts(pending, running)

	// maxTotal is 4, so only 4 of 5 BG jobs start.
	assert.Equal(t, 4, running.Size())
	assert.Equal(t, 1, pending.Size())
}

func TestOnJobCompletedStartsNextPendingJob(t *testing.T) {
	m, r := newTestManager(1)
	pending := jobmodel.NewPendingQueue()
	running := jobmodel.NewRunningSet()

	first := newBGJob(1000, "com.example.app", 1)
	second := newBGJob(1001, "com.example.other", 2)
	pending.Add(first)
	pending.Add(second)

	m.AssignJobsToContexts(pending, running)
	require.Equal(t, 1, running.Size())
	require.Equal(t, 1, pending.Size())

	var slot *jobmodel.Slot
	for _, s := range m.slots.Active() {
		if s.Running != nil {
			slot = s
		}
	}
	require.NotNil(t, slot)

	m.OnJobCompleted(slot, running, pending)

	assert.Equal(t, 1, running.Size())
	assert.Equal(t, 0, pending.Size())
	assert.Len(t, r.started, 2)
}
