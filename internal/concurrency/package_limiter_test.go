package concurrency

import (
	"testing"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/stretchr/testify/assert"
)

func newLimiterJob(uid int, pkg string, bias jobmodel.Bias, expedited bool) *jobmodel.Job {
	j := jobmodel.NewJob(jobmodel.Identity{SourceUID: uid, SourceUserID: 0, SourcePackage: pkg, JobID: 1})
	j.LastEvaluatedBias = bias
	j.IsExpedited = expedited
	return j
}

func noHeadroom() int { return 1000 }

func TestIsPackageLimitedTopAppAlwaysExempt(t *testing.T) {
	p := NewPackageLimiter()
	p.SetMaxTotal(0)
	job := newLimiterJob(1, "com.example.app", jobmodel.BiasTopApp, false)
	assert.False(t, p.IsPackageLimited(job, noHeadroom))
}

func TestIsPackageLimitedGlobalHeadroomShortcut(t *testing.T) {
	p := NewPackageLimiter()
	p.SetMaxTotal(16)
	job := newLimiterJob(1, "com.example.app", jobmodel.BiasDefault, false)
	assert.False(t, p.IsPackageLimited(job, func() int { return 2 }))
}

func TestIsPackageLimitedRegularLaneCap(t *testing.T) {
	p := NewPackageLimiter()
	p.SetMaxTotal(0)
	p.SetLimits(DefaultLimitEJ, 2)
	key := jobmodel.PackageKey{UserID: 0, Package: "com.example.app"}
	p.AdjustRunning(key, false, 2)

	job := newLimiterJob(1, "com.example.app", jobmodel.BiasDefault, false)
	assert.True(t, p.IsPackageLimited(job, noHeadroom))
}

func TestIsPackageLimitedEJLaneIndependentOfRegular(t *testing.T) {
	p := NewPackageLimiter()
	p.SetMaxTotal(0)
	p.SetLimits(1, DefaultLimitRegular)
	key := jobmodel.PackageKey{UserID: 0, Package: "com.example.app"}
	p.AdjustRunning(key, true, 1)

	ejJob := newLimiterJob(1, "com.example.app", jobmodel.BiasDefault, true)
	regularJob := newLimiterJob(1, "com.example.app", jobmodel.BiasDefault, false)

	assert.True(t, p.IsPackageLimited(ejJob, noHeadroom))
	assert.False(t, p.IsPackageLimited(regularJob, noHeadroom))
}

func TestAdjustRunningPrunesEmptyEntries(t *testing.T) {
	p := NewPackageLimiter()
	key := jobmodel.PackageKey{UserID: 0, Package: "com.example.app"}
	p.AdjustRunning(key, false, 1)
	assert.Len(t, p.Snapshot(), 1)

	p.AdjustRunning(key, false, -1)
	assert.Empty(t, p.Snapshot())
}

func TestResetStagingZeroesStagedCounters(t *testing.T) {
	p := NewPackageLimiter()
	key := jobmodel.PackageKey{UserID: 0, Package: "com.example.app"}
	p.AdjustStaged(key, false, 3)
	p.AdjustRunning(key, false, 1)

	p.ResetStaging()

	snap := p.Snapshot()
	stats := snap[key]
	assert.Equal(t, 0, stats.NumStagedRegular)
	assert.Equal(t, 1, stats.NumRunningRegular)
}
