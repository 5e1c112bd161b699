package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGracePeriodTrackerCurrentUserIsForegroundEquivalent(t *testing.T) {
	g := NewGracePeriodTracker(time.Minute, func() time.Time { return time.Unix(0, 0) })
	g.OnUserSwitch(10)
	assert.True(t, g.IsForegroundEquivalent(10))
}

func TestGracePeriodTrackerPreviousUserWithinWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	g := NewGracePeriodTracker(time.Minute, func() time.Time { return now })
	g.OnUserSwitch(10)
	g.OnUserSwitch(20)

	now = now.Add(30 * time.Second)
	assert.True(t, g.IsForegroundEquivalent(10))
	assert.True(t, g.IsForegroundEquivalent(20))
}

func TestGracePeriodTrackerPreviousUserExpiresAfterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	g := NewGracePeriodTracker(time.Minute, func() time.Time { return now })
	g.OnUserSwitch(10)
	g.OnUserSwitch(20)

	now = now.Add(2 * time.Minute)
	assert.False(t, g.IsForegroundEquivalent(10))
}

func TestGracePeriodTrackerPrimaryUserAlwaysEquivalent(t *testing.T) {
	now := time.Unix(1000, 0)
	g := NewGracePeriodTracker(time.Minute, func() time.Time { return now })
	g.SetPrimaryUsers(7)
	g.OnUserSwitch(20)

	now = now.Add(time.Hour)
	assert.True(t, g.IsForegroundEquivalent(7))
}

func TestGracePeriodTrackerOnUserRemovedClearsStanding(t *testing.T) {
	now := time.Unix(1000, 0)
	g := NewGracePeriodTracker(time.Minute, func() time.Time { return now })
	g.OnUserSwitch(10)
	g.OnUserSwitch(20)

	g.OnUserRemoved(10)
	assert.False(t, g.IsForegroundEquivalent(10))
}
