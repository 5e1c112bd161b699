// Package runner implements the JobRunner collaborator: the thing
// that actually binds to and invokes a package's work. InProcessRunner
// wraps each package's work function with a circuit breaker so a
// package whose handler keeps returning errors stops being retried
// immediately (a panicking handler is not recovered here), the pattern
// grounded on the teacher's email
// resilience manager (minus its retry policy, since job-level backoff
// is the scheduler core's responsibility here, not the runner's).
package runner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

// WorkFunc is the application code a package registers to actually
// perform a job's work when the runner starts it.
type WorkFunc func(ctx context.Context, job *jobmodel.Job) error

// JobRunner is the external collaborator the concurrency manager
// invokes to start, cancel, and learn about the completion of jobs.
type JobRunner interface {
	Start(job *jobmodel.Job, workType jobmodel.WorkType) bool
	Cancel(job *jobmodel.Job, reason, internalReason, debugReason string)
}

// FinishedFunc is posted back asynchronously when a started job's
// work function returns, mirroring JobRunner.finished in spec §6.2.
type FinishedFunc func(job *jobmodel.Job, workType jobmodel.WorkType)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

type circuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetAfter   time.Duration
	state        breakerState
	failures     int
	nextAttempt  time.Time
}

func newCircuitBreaker(maxFailures int, resetAfter time.Duration) *circuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetAfter <= 0 {
		resetAfter = 60 * time.Second
	}
	return &circuitBreaker{maxFailures: maxFailures, resetAfter: resetAfter}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Now().After(cb.nextAttempt) {
			cb.state = breakerHalfOpen
			return true
		}
		return false
	default: // breakerHalfOpen
		return true
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.failures = 0
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = breakerOpen
		cb.nextAttempt = time.Now().Add(cb.resetAfter)
	}
}

// InProcessRunner runs registered WorkFuncs in their own goroutine,
// cancellable via context, with one circuit breaker per package.
type InProcessRunner struct {
	mu        sync.Mutex
	work      map[string]WorkFunc
	cancels   map[string]context.CancelFunc
	breakers  map[string]*circuitBreaker
	onFinish  FinishedFunc
	ctxParent context.Context
}

// NewInProcessRunner creates a runner. ctx bounds the lifetime of every
// job started through it (cancelling ctx cancels all in-flight work).
func NewInProcessRunner(ctx context.Context, onFinish FinishedFunc) *InProcessRunner {
	return &InProcessRunner{
		work:      make(map[string]WorkFunc),
		cancels:   make(map[string]context.CancelFunc),
		breakers:  make(map[string]*circuitBreaker),
		onFinish:  onFinish,
		ctxParent: ctx,
	}
}

// Register binds pkg's work, keyed by source package name.
func (r *InProcessRunner) Register(pkg string, fn WorkFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.work[pkg] = fn
}

func (r *InProcessRunner) breakerFor(pkg string) *circuitBreaker {
	if b, ok := r.breakers[pkg]; ok {
		return b
	}
	b := newCircuitBreaker(5, 60*time.Second)
	r.breakers[pkg] = b
	return b
}

// Start launches job's registered work function. It returns false
// (accept failure) when no work is registered, the package's circuit
// breaker is open, or the package name looks malformed.
func (r *InProcessRunner) Start(job *jobmodel.Job, workType jobmodel.WorkType) bool {
	pkg := strings.TrimSpace(job.SourcePackage)
	if pkg == "" {
		return false
	}

	r.mu.Lock()
	fn, ok := r.work[pkg]
	breaker := r.breakerFor(pkg)
	r.mu.Unlock()

	if !ok || !breaker.allow() {
		return false
	}

	ctx, cancel := context.WithCancel(r.ctxParent)
	r.mu.Lock()
	r.cancels[job.InternalID] = cancel
	r.mu.Unlock()

	go func() {
		err := fn(ctx, job)

		r.mu.Lock()
		delete(r.cancels, job.InternalID)
		r.mu.Unlock()

		if err != nil {
			breaker.recordFailure()
		} else {
			breaker.recordSuccess()
		}

		if r.onFinish != nil {
			r.onFinish(job, workType)
		}
	}()

	return true
}

// Cancel stops job's running work, if any. reason/internalReason/
// debugReason are accepted for parity with the external contract but
// are not otherwise inspected here.
func (r *InProcessRunner) Cancel(job *jobmodel.Job, reason, internalReason, debugReason string) {
	r.mu.Lock()
	cancel, ok := r.cancels[job.InternalID]
	delete(r.cancels, job.InternalID)
	r.mu.Unlock()

	if ok {
		cancel()
	}
}
