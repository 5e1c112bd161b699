// Package jobmodel holds the data types shared by the scheduler core and
// the concurrency manager: jobs, work types, slots, package stats, and the
// pending queue / completed-history ring they move through.
package jobmodel

import (
	"time"

	"github.com/google/uuid"
)

// Bias is an ordered importance level computed from the owning app's
// process state. Higher values win preemption.
type Bias int

const (
	BiasDefault Bias = iota
	BiasBoundFgService
	BiasFgService
	BiasTopApp
)

func (b Bias) String() string {
	switch b {
	case BiasDefault:
		return "DEFAULT"
	case BiasBoundFgService:
		return "BOUND_FG_SERVICE"
	case BiasFgService:
		return "FG_SERVICE"
	case BiasTopApp:
		return "TOP_APP"
	default:
		return "UNKNOWN"
	}
}

// Bucket is the coarse app-standby classification used to gate eligibility.
type Bucket int

const (
	BucketExempted Bucket = iota
	BucketActive
	BucketWorking
	BucketFrequent
	BucketRare
	BucketRestricted
	BucketNever
)

// BackoffPolicy selects the failure-reschedule curve (§4.6.1).
type BackoffPolicy int

const (
	BackoffLinear BackoffPolicy = iota
	BackoffExponential
)

// PriorityClass captures the minimum-execution-guarantee tier (§4.6.3).
type PriorityClass int

const (
	PriorityDefault PriorityClass = iota
	PriorityHigh
)

// Identity uniquely addresses a Job within the scheduler.
type Identity struct {
	SourceUID     int
	SourceUserID  int
	SourcePackage string
	JobID         int64
}

// Job is the scheduled unit of work. It carries everything the
// concurrency core needs to classify, queue, run, and reschedule it.
type Job struct {
	Identity

	InternalID string // stable handle, independent of JobID reuse

	IsPeriodic   bool
	IsPrefetch   bool
	IsExpedited  bool
	CanRunInDoze bool

	Bias   Bias
	Bucket Bucket

	EarliestRunTime               time.Time
	LatestRunTime                 time.Time
	NumFailures                   int
	LastSuccessfulRunTime         time.Time
	LastFailedRunTime             time.Time
	OriginalLatestRunTimeElapsed  time.Time
	PeriodMs                      int64
	FlexMs                        int64

	BackoffPolicy    BackoffPolicy
	InitialBackoffMs int64

	PriorityClass PriorityClass

	// scratch, valid only for the lifetime of a single run
	LastEvaluatedBias        Bias
	FirstForceBatchedElapsed time.Time
	StartedAsExpedited       bool
	RunningAs                WorkType
	StartedAt                time.Time

	AcceptableTypes WorkTypeSet
}

// NewJob constructs a Job with a generated internal ID and DEFAULT bias.
func NewJob(id Identity) *Job {
	return &Job{
		Identity:   id,
		InternalID: uuid.NewString(),
		Bias:       BiasDefault,
		Bucket:     BucketActive,
	}
}

// Key returns the (sourceUid, jobId) pair the spec's store uniqueness
// invariant is keyed on.
func (j *Job) Key() (int, int64) {
	return j.SourceUID, j.JobID
}
