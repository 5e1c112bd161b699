package jobmodel

import "time"

// Slot is a bounded execution context: either idle, or running exactly
// one Job. PreferredUID sticks a slot to a uid to simplify same-uid
// rescheduling after preemption (spec §3, §4.4.4).
type Slot struct {
	ID int

	Running      *Job
	PreferredUID int
	HasPreferred bool

	StartedAt time.Time
}
