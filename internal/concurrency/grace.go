package concurrency

import (
	"sync"
	"time"
)

// GracePeriodTracker lets a just-backgrounded user's jobs keep counting
// as foreground-equivalent for a short window after a user switch, so
// in-flight work isn't abruptly demoted.
type GracePeriodTracker struct {
	mu sync.Mutex

	gracePeriod time.Duration
	now         func() time.Time

	currentUserID  int
	primaryUserIDs map[int]bool
	previousUserID int
	switchedAt     time.Time
	hasPrevious    bool
}

// NewGracePeriodTracker builds a tracker with the given grace window.
// now defaults to time.Now when nil, overridable in tests.
func NewGracePeriodTracker(gracePeriod time.Duration, now func() time.Time) *GracePeriodTracker {
	if now == nil {
		now = time.Now
	}
	return &GracePeriodTracker{
		gracePeriod:    gracePeriod,
		now:            now,
		primaryUserIDs: make(map[int]bool),
	}
}

// SetPrimaryUsers replaces the set of users considered always
// foreground-equivalent (e.g. the device owner on a multi-user build).
func (g *GracePeriodTracker) SetPrimaryUsers(userIDs ...int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primaryUserIDs = make(map[int]bool, len(userIDs))
	for _, id := range userIDs {
		g.primaryUserIDs[id] = true
	}
}

// OnUserSwitch records that newUserID became the interactive user,
// starting the grace window for whoever held that role before.
func (g *GracePeriodTracker) OnUserSwitch(newUserID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.currentUserID == newUserID {
		return
	}
	g.previousUserID = g.currentUserID
	g.hasPrevious = true
	g.switchedAt = g.now()
	g.currentUserID = newUserID
}

// OnUserRemoved clears any grace-period standing for a user who has
// been fully removed from the device.
func (g *GracePeriodTracker) OnUserRemoved(userID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.primaryUserIDs, userID)
	if g.hasPrevious && g.previousUserID == userID {
		g.hasPrevious = false
	}
}

// IsForegroundEquivalent reports whether userID should be treated as
// the foreground user: it is the current user, a primary user, or the
// previous current user within the grace window.
func (g *GracePeriodTracker) IsForegroundEquivalent(userID int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if userID == g.currentUserID {
		return true
	}
	if g.primaryUserIDs[userID] {
		return true
	}
	if g.hasPrevious && userID == g.previousUserID {
		if g.now().Sub(g.switchedAt) <= g.gracePeriod {
			return true
		}
	}
	return false
}
