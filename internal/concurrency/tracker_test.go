package concurrency

import (
	"testing"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() jobmodel.WorkTypeConfig {
	return jobmodel.WorkTypeConfig{
		MaxTotal:    4,
		MinReserved: [6]int{1, 0, 0, 0, 0, 0},
		MaxAllowed:  [6]int{4, 4, 4, 4, 4, 4},
	}
}

func TestWorkCountTrackerCanJobStartRespectsMaxTotal(t *testing.T) {
	tr := NewWorkCountTracker()
	tr.SetConfig(smallConfig())

	bg := jobmodel.NewWorkTypeSet(jobmodel.WorkTypeBG)
	for i := 0; i < 4; i++ {
		tr.IncrementPending(bg)
	}
	tr.OnCountDone()

	started := 0
	for i := 0; i < 10; i++ {
		wt := tr.CanJobStart(bg)
		if wt == jobmodel.WorkTypeNone {
			break
		}
		tr.StageJob(wt, bg)
		tr.OnJobStarted(wt)
		started++
	}
	assert.Equal(t, 4, started, "should not exceed maxTotal across a single work type")
}

func TestWorkCountTrackerReservesMinimumForTop(t *testing.T) {
	tr := NewWorkCountTracker()
	tr.SetConfig(smallConfig())

	bg := jobmodel.NewWorkTypeSet(jobmodel.WorkTypeBG)
	top := jobmodel.NewWorkTypeSet(jobmodel.WorkTypeTop)
	for i := 0; i < 4; i++ {
		tr.IncrementPending(bg)
	}
	tr.IncrementPending(top)
	tr.OnCountDone()

	for i := 0; i < 3; i++ {
		wt := tr.CanJobStart(bg)
		require.NotEqual(t, jobmodel.WorkTypeNone, wt)
		tr.StageJob(wt, bg)
		tr.OnJobStarted(wt)
	}

	// the fourth BG job must be refused: the pending TOP job holds the
	// one reserved TOP slot.
	wt := tr.CanJobStart(bg)
	assert.Equal(t, jobmodel.WorkTypeNone, wt)

	tr.IncrementPending(top)
	tr.OnCountDone()
	assert.Equal(t, jobmodel.WorkTypeTop, tr.CanJobStart(top))
}

func TestWorkCountTrackerOnJobFinishedFreesSlot(t *testing.T) {
	tr := NewWorkCountTracker()
	tr.SetConfig(smallConfig())

	bg := jobmodel.NewWorkTypeSet(jobmodel.WorkTypeBG)
	for i := 0; i < 4; i++ {
		tr.IncrementPending(bg)
	}
	tr.IncrementPending(jobmodel.NewWorkTypeSet(jobmodel.WorkTypeTop))
	tr.OnCountDone()

	for i := 0; i < 3; i++ {
		wt := tr.CanJobStart(bg)
		require.NotEqual(t, jobmodel.WorkTypeNone, wt)
		tr.StageJob(wt, bg)
		tr.OnJobStarted(wt)
	}
	require.Equal(t, jobmodel.WorkTypeNone, tr.CanJobStart(bg))

	tr.OnJobFinished(jobmodel.WorkTypeBG)
	assert.Equal(t, 2, tr.Running(jobmodel.WorkTypeBG))
}

func TestWorkCountTrackerOnStagedJobFailedReverts(t *testing.T) {
	tr := NewWorkCountTracker()
	tr.SetConfig(smallConfig())

	bg := jobmodel.NewWorkTypeSet(jobmodel.WorkTypeBG)
	tr.IncrementPending(bg)
	tr.OnCountDone()

	wt := tr.CanJobStart(bg)
	require.Equal(t, jobmodel.WorkTypeBG, wt)
	tr.StageJob(wt, bg)
	assert.Equal(t, 1, tr.Staging(jobmodel.WorkTypeBG))

	tr.OnStagedJobFailed(jobmodel.WorkTypeBG)
	assert.Equal(t, 0, tr.Staging(jobmodel.WorkTypeBG))
}

func TestWorkCountTrackerIsOverTypeLimit(t *testing.T) {
	tr := NewWorkCountTracker()
	cfg := smallConfig()
	cfg.MaxAllowed[jobmodel.WorkTypeBG] = 1
	tr.SetConfig(cfg)

	assert.False(t, tr.IsOverTypeLimit(jobmodel.WorkTypeBG))
	tr.OnJobStarted(jobmodel.WorkTypeBG)
	tr.OnJobStarted(jobmodel.WorkTypeBG)
	assert.True(t, tr.IsOverTypeLimit(jobmodel.WorkTypeBG))
}

func TestWorkCountTrackerCanJobStartReplacingFreesTargetType(t *testing.T) {
	tr := NewWorkCountTracker()
	tr.SetConfig(smallConfig())

	bg := jobmodel.NewWorkTypeSet(jobmodel.WorkTypeBG)
	for i := 0; i < 4; i++ {
		tr.IncrementPending(bg)
	}
	tr.IncrementPending(jobmodel.NewWorkTypeSet(jobmodel.WorkTypeTop))
	tr.OnCountDone()
	for i := 0; i < 3; i++ {
		wt := tr.CanJobStart(bg)
		require.NotEqual(t, jobmodel.WorkTypeNone, wt)
		tr.StageJob(wt, bg)
		tr.OnJobStarted(wt)
	}
	require.Equal(t, jobmodel.WorkTypeNone, tr.CanJobStart(bg))

	wt := tr.CanJobStartReplacing(bg, jobmodel.WorkTypeBG)
	assert.Equal(t, jobmodel.WorkTypeBG, wt)
	// the transient decrement must not leak into steady state.
	assert.Equal(t, 3, tr.Running(jobmodel.WorkTypeBG))
}
