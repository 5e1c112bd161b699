package concurrency

import (
	"sync"
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

// MaxRetainedObjects bounds how many idle Slot objects the table keeps
// cached between assignment passes, beyond STANDARD_CONCURRENCY_LIMIT
// active ones, before it starts discarding instead of pooling them.
const MaxRetainedObjects = jobmodel.IdlePoolLimit

// SlotTable owns the fixed pool of execution contexts: up to
// STANDARD_CONCURRENCY_LIMIT actively tracked slots, backed by an idle
// pool of spare Slot objects capped at MaxRetainedObjects.
type SlotTable struct {
	mu sync.Mutex

	active             []*jobmodel.Slot
	idlePool           []*jobmodel.Slot
	nextID             int
	numDroppedContexts int
}

// NewSlotTable builds an empty table; Grow populates it up to the
// configured active-context limit.
func NewSlotTable() *SlotTable {
	return &SlotTable{}
}

// Grow ensures there are exactly StandardConcurrencyLimit active
// slots, borrowing from the idle pool first and constructing new
// Slot objects only when the pool is exhausted.
func (t *SlotTable) Grow() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.active) < jobmodel.StandardConcurrencyLimit {
		t.active = append(t.active, t.takeOrNewLocked())
	}
}

func (t *SlotTable) takeOrNewLocked() *jobmodel.Slot {
	if n := len(t.idlePool); n > 0 {
		s := t.idlePool[n-1]
		t.idlePool = t.idlePool[:n-1]
		return s
	}
	t.nextID++
	return &jobmodel.Slot{ID: t.nextID}
}

// Active returns the current active-context slice. Callers must not
// mutate slot pointers concurrently with other SlotTable calls.
func (t *SlotTable) Active() []*jobmodel.Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*jobmodel.Slot, len(t.active))
	copy(out, t.active)
	return out
}

// Classify splits the active contexts into idle, stoppable, and
// preferredUidOnly buckets per the assignment pass's step 2, using
// stopReason to decide whether a running context is stoppable.
func (t *SlotTable) Classify(stopReason func(*jobmodel.Slot) (string, bool)) (idle, stoppable, preferredUidOnly []*jobmodel.Slot) {
	t.mu.Lock()
	active := make([]*jobmodel.Slot, len(t.active))
	copy(active, t.active)
	t.mu.Unlock()

	for _, s := range active {
		if s.Running == nil {
			idle = append(idle, s)
			continue
		}
		if _, ok := stopReason(s); ok {
			stoppable = append(stoppable, s)
			continue
		}
		preferredUidOnly = append(preferredUidOnly, s)
	}
	return idle, stoppable, preferredUidOnly
}

// Release returns s to the idle pool (if there's room under
// MaxRetainedObjects) or drops it, incrementing numDroppedContexts.
func (t *SlotTable) Release(s *jobmodel.Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s.Running = nil
	s.StartedAt = time.Time{}
	if len(t.idlePool) >= MaxRetainedObjects {
		t.numDroppedContexts++
		return
	}
	t.idlePool = append(t.idlePool, s)
}

// NumDroppedContexts reports how many idle contexts have been
// discarded rather than pooled, for introspection/metrics.
func (t *SlotTable) NumDroppedContexts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numDroppedContexts
}

// IdlePoolSize reports the current size of the spare-slot pool.
func (t *SlotTable) IdlePoolSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.idlePool)
}
