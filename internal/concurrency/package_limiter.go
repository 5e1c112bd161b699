package concurrency

import (
	"sync"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

// DefaultLimitEJ and DefaultLimitRegular are the per-package caps used
// when the owning config does not override them.
const (
	DefaultLimitEJ      = 3
	DefaultLimitRegular = jobmodel.StandardConcurrencyLimit / 2
)

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > jobmodel.StandardConcurrencyLimit {
		return jobmodel.StandardConcurrencyLimit
	}
	return n
}

// PackageLimiter caps concurrent running+staged jobs per (user,
// package), independently for expedited vs. regular lanes, so a
// single app cannot monopolize the slot pool.
type PackageLimiter struct {
	mu          sync.Mutex
	stats       map[jobmodel.PackageKey]*jobmodel.PackageStats
	limitEJ     int
	limitRegular int
	cfgMaxTotal int
}

// NewPackageLimiter builds a limiter with the default caps; call
// SetLimits or SetMaxTotal to override.
func NewPackageLimiter() *PackageLimiter {
	return &PackageLimiter{
		stats:        make(map[jobmodel.PackageKey]*jobmodel.PackageStats),
		limitEJ:      DefaultLimitEJ,
		limitRegular: DefaultLimitRegular,
	}
}

// SetLimits overrides the per-package caps, clamped to [1, StandardConcurrencyLimit].
func (p *PackageLimiter) SetLimits(limitEJ, limitRegular int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limitEJ = clampLimit(limitEJ)
	p.limitRegular = clampLimit(limitRegular)
}

// SetMaxTotal records the tracker's current cfgMaxTotal, used by the
// global-headroom shortcut in IsPackageLimited.
func (p *PackageLimiter) SetMaxTotal(maxTotal int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfgMaxTotal = maxTotal
}

// statsFor returns the PackageStats for key, creating it if absent.
// Callers must hold p.mu.
func (p *PackageLimiter) statsFor(key jobmodel.PackageKey) *jobmodel.PackageStats {
	s, ok := p.stats[key]
	if !ok {
		s = &jobmodel.PackageStats{}
		p.stats[key] = s
	}
	return s
}

// lookupFor returns the PackageStats for key without creating it.
func (p *PackageLimiter) lookupFor(key jobmodel.PackageKey) (*jobmodel.PackageStats, bool) {
	s, ok := p.stats[key]
	return s, ok
}

// AdjustRunning updates the running counter for key's ej/regular lane
// and prunes the entry once every counter is back to zero.
func (p *PackageLimiter) AdjustRunning(key jobmodel.PackageKey, forEJ bool, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.statsFor(key)
	s.AdjustRunning(forEJ, delta)
	p.pruneLocked(key, s)
}

// AdjustStaged updates the staged counter for key's ej/regular lane.
func (p *PackageLimiter) AdjustStaged(key jobmodel.PackageKey, forEJ bool, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.statsFor(key)
	s.AdjustStaged(forEJ, delta)
	p.pruneLocked(key, s)
}

func (p *PackageLimiter) pruneLocked(key jobmodel.PackageKey, s *jobmodel.PackageStats) {
	if s.IsEmpty() {
		delete(p.stats, key)
	}
}

// ResetStaging zeroes every package's staged counters, run at the end
// of an assignment pass once staging has been reconciled into running.
func (p *PackageLimiter) ResetStaging() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, s := range p.stats {
		s.NumStagedEJ = 0
		s.NumStagedRegular = 0
		p.pruneLocked(key, s)
	}
}

// PendingRunningTotal is the caller-supplied pending+running job count
// across the whole system, used for the global-headroom shortcut.
type PendingRunningTotal func() int

// IsPackageLimited reports whether job's package has hit its per-app
// concurrency cap. bias and isExpedited are read from job.
func (p *PackageLimiter) IsPackageLimited(job *jobmodel.Job, total PendingRunningTotal) bool {
	if job.LastEvaluatedBias >= jobmodel.BiasTopApp {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if total != nil && total() < p.cfgMaxTotal {
		return false
	}

	key := jobmodel.PackageKey{UserID: job.SourceUserID, Package: job.SourcePackage}
	s, ok := p.lookupFor(key)
	if !ok {
		return false
	}

	if job.IsExpedited {
		return s.NumRunningEJ+s.NumStagedEJ >= p.limitEJ
	}
	return s.NumRunningRegular+s.NumStagedRegular >= p.limitRegular
}

// Snapshot returns a copy of every tracked package's stats, keyed by
// (user, package), for introspection.
func (p *PackageLimiter) Snapshot() map[jobmodel.PackageKey]jobmodel.PackageStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[jobmodel.PackageKey]jobmodel.PackageStats, len(p.stats))
	for k, v := range p.stats {
		out[k] = *v
	}
	return out
}
