package scheduler

import (
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

// Periodic job bounds, per spec §4.6.2. MinPeriod/MinFlex mirror
// Android's JobInfo floors; MaxPeriod is a generous ceiling the spec
// leaves unspecified.
const (
	MinPeriod            = 15 * time.Minute
	MaxPeriod            = 365 * 24 * time.Hour
	MinFlex              = 5 * time.Minute
	PeriodicWindowBuffer = 30 * time.Minute
)

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// NextPeriodicWindow derives the next (earliest, latest) run window
// for a periodic job that just completed, per the §4.6.2 re-window
// derivation.
func NextPeriodicWindow(job *jobmodel.Job, now time.Time) (earliest time.Time, latest time.Time) {
	period := clampDuration(time.Duration(job.PeriodMs)*time.Millisecond, MinPeriod, MaxPeriod)
	flex := clampDuration(time.Duration(job.FlexMs)*time.Millisecond, MinFlex, period)

	lrt := job.OriginalLatestRunTimeElapsed
	diff := now.Sub(lrt)
	if diff < 0 {
		diff = -diff
	}

	var newLatest time.Time
	var headBuffer time.Duration

	if now.After(lrt) {
		skipped := int64(diff/period) + 1
		if period != flex {
			rem := diff % period
			if period-flex-rem <= flex/6 {
				skipped++
			}
		}
		newLatest = lrt.Add(period * time.Duration(skipped))
	} else {
		newLatest = lrt.Add(period)
		if diff < PeriodicWindowBuffer && diff < period/6 {
			headBuffer = minDuration(PeriodicWindowBuffer, period/6-diff)
		}
	}

	flexWindow := flex
	if period-headBuffer < flexWindow {
		flexWindow = period - headBuffer
	}
	newEarliest := newLatest.Add(-flexWindow)

	if newLatest.Before(now) {
		newEarliest = now.Add(period - flex)
		newLatest = now.Add(period)
	}

	return newEarliest, newLatest
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
