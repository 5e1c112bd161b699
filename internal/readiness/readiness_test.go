package readiness

import (
	"testing"

	"github.com/bravo1goingdark/schedcore/internal/constraint"
	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/bravo1goingdark/schedcore/internal/jobstore"
	"github.com/bravo1goingdark/schedcore/internal/restriction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserState struct {
	started    map[int]bool
	backingUp  map[int]bool
	hasTarget  bool
	badApp     bool
}

func (f *fakeUserState) IsUserStarted(userID int) bool       { return f.started[userID] }
func (f *fakeUserState) IsUidBackingUp(uid int) bool          { return f.backingUp[uid] }
func (f *fakeUserState) HasTargetComponent(*jobmodel.Job) bool { return f.hasTarget }
func (f *fakeUserState) IsBadApp(uid int) bool                { return f.badApp }

type fakeMembership struct {
	pending, running bool
}

func (f *fakeMembership) IsPending(*jobmodel.Job) bool { return f.pending }
func (f *fakeMembership) IsRunning(*jobmodel.Job) bool { return f.running }

func newTestJob() *jobmodel.Job {
	return jobmodel.NewJob(jobmodel.Identity{SourceUID: 1000, SourceUserID: 0, SourcePackage: "com.example.app", JobID: 1})
}

func TestIsReadyToBeExecutedAllGatesPass(t *testing.T) {
	store := jobstore.NewMemoryStore()
	job := newTestJob()
	require.NoError(t, store.Add(job))

	users := &fakeUserState{started: map[int]bool{0: true}, backingUp: map[int]bool{}, hasTarget: true}
	members := &fakeMembership{}
	e := New(constraint.AlwaysReady{}, store, users, members, nil)

	assert.True(t, e.IsReadyToBeExecuted(job, true))
}

func TestIsReadyToBeExecutedFailsWhenNotInStore(t *testing.T) {
	store := jobstore.NewMemoryStore()
	job := newTestJob()
	users := &fakeUserState{started: map[int]bool{0: true}, hasTarget: true}
	e := New(constraint.AlwaysReady{}, store, users, &fakeMembership{}, nil)

	assert.False(t, e.IsReadyToBeExecuted(job, true))
}

func TestIsReadyToBeExecutedRejectsActiveWhenRequested(t *testing.T) {
	store := jobstore.NewMemoryStore()
	job := newTestJob()
	require.NoError(t, store.Add(job))
	users := &fakeUserState{started: map[int]bool{0: true}, hasTarget: true}
	members := &fakeMembership{pending: true}
	e := New(constraint.AlwaysReady{}, store, users, members, nil)

	assert.False(t, e.IsReadyToBeExecuted(job, true))
	assert.True(t, e.IsReadyToBeExecuted(job, false))
}

func TestCheckRestrictedShortCircuitsAboveFgService(t *testing.T) {
	rule, err := restriction.NewRule("thermal", `bucket == 5`)
	require.NoError(t, err)
	set := restriction.Set{rule}

	store := jobstore.NewMemoryStore()
	job := newTestJob()
	job.Bucket = jobmodel.BucketRestricted
	job.LastEvaluatedBias = jobmodel.BiasFgService
	require.NoError(t, store.Add(job))

	users := &fakeUserState{started: map[int]bool{0: true}, hasTarget: true}
	e := New(constraint.AlwaysReady{}, store, users, &fakeMembership{}, set)

	name, restricted := e.CheckRestricted(job)
	assert.False(t, restricted)
	assert.Empty(t, name)
}

func TestCheckRestrictedAppliesBelowFgService(t *testing.T) {
	rule, err := restriction.NewRule("thermal", `bucket == 5`)
	require.NoError(t, err)
	set := restriction.Set{rule}

	store := jobstore.NewMemoryStore()
	job := newTestJob()
	job.Bucket = jobmodel.BucketRestricted
	job.LastEvaluatedBias = jobmodel.BiasDefault
	require.NoError(t, store.Add(job))

	e := New(constraint.AlwaysReady{}, store, &fakeUserState{started: map[int]bool{0: true}, hasTarget: true}, &fakeMembership{}, set)

	name, restricted := e.CheckRestricted(job)
	assert.True(t, restricted)
	assert.Equal(t, "thermal", name)
}
