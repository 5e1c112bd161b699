// Package jobstore defines the persistent-storage collaborator the
// scheduler core depends on, plus two implementations: an in-memory
// store for tests and a bbolt-backed store for a real process,
// grounded on the teacher's BoltDBClient job persistence layer.
package jobstore

import "github.com/bravo1goingdark/schedcore/internal/jobmodel"

// JobStore is the interface the scheduler core uses for persistence.
// It never makes scheduling decisions; it just remembers what was
// scheduled (spec §6: "the core only uses JobStore.forEach/add/remove").
type JobStore interface {
	Add(j *jobmodel.Job) error
	Remove(uid int, jobID int64) error
	Get(uid int, jobID int64) (*jobmodel.Job, bool)
	ForEach(fn func(j *jobmodel.Job) bool) error
	CountForUID(uid int) (int, error)
	Close() error
}
