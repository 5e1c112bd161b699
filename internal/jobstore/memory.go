package jobstore

import (
	"sync"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

type memKey struct {
	uid   int
	jobID int64
}

// MemoryStore is an in-process JobStore, for tests and for a single
// scheduler instance with no crash-recovery requirement.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[memKey]*jobmodel.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[memKey]*jobmodel.Job)}
}

func (s *MemoryStore) Add(j *jobmodel.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[memKey{j.SourceUID, j.JobID}] = j
	return nil
}

func (s *MemoryStore) Remove(uid int, jobID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, memKey{uid, jobID})
	return nil
}

func (s *MemoryStore) Get(uid int, jobID int64) (*jobmodel.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[memKey{uid, jobID}]
	return j, ok
}

func (s *MemoryStore) ForEach(fn func(j *jobmodel.Job) bool) error {
	s.mu.RLock()
	snapshot := make([]*jobmodel.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		snapshot = append(snapshot, j)
	}
	s.mu.RUnlock()

	for _, j := range snapshot {
		if !fn(j) {
			break
		}
	}
	return nil
}

func (s *MemoryStore) CountForUID(uid int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.jobs {
		if k.uid == uid {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
