package scheduler

// The scheduler core is single-threaded cooperative (spec §5): every
// public method posts a closure onto an ordered mailbox channel, and
// one dedicated goroutine drains it in FIFO order, running each
// handler to completion with no interior suspension. This file is the
// harness; scheduler.go holds the handlers themselves.

type message func()

// run is the scheduler's dedicated goroutine loop. It exits once
// s.mailbox is closed (via Stop).
func (s *Scheduler) run() {
	for msg := range s.mailbox {
		msg()
	}
	close(s.stopped)
}

// post enqueues fn to run on the scheduler goroutine and blocks until
// it has executed, returning whatever fn chooses to capture into its
// closure. Used by every synchronous public API method.
func (s *Scheduler) post(fn func()) {
	done := make(chan struct{})
	s.mailbox <- func() {
		fn()
		close(done)
	}
	<-done
}

// postAsync enqueues fn without waiting for it to run, used for
// fire-and-forget event sinks where the caller doesn't need the
// effects to be visible before returning.
func (s *Scheduler) postAsync(fn func()) {
	s.mailbox <- fn
}
