// Package schederr defines the error kinds from spec §7 as sentinel
// values wrapped with github.com/pkg/errors, the way the teacher's
// database package wraps bbolt failures instead of building a custom
// exception hierarchy.
package schederr

import "github.com/pkg/errors"

// Kind identifies which of spec §7's error categories an error belongs
// to, so callers can branch without string-matching error text.
type Kind string

const (
	KindInvalidScheduleRequest Kind = "invalid_schedule_request"
	KindQuotaExceeded          Kind = "quota_exceeded"
	KindTooManyJobsForUID      Kind = "too_many_jobs_for_uid"
	KindInvariantViolation     Kind = "invariant_violation"
	KindTransientRunnerFailure Kind = "transient_runner_failure"
)

var (
	ErrInvalidScheduleRequest = errors.New(string(KindInvalidScheduleRequest))
	ErrQuotaExceeded          = errors.New(string(KindQuotaExceeded))
	ErrTooManyJobsForUID      = errors.New(string(KindTooManyJobsForUID))
	ErrInvariantViolation     = errors.New(string(KindInvariantViolation))
)

// kinded wraps an error with a Kind, so errors.Wrapf callers keep both
// the formatted context and a stable, branch-able category.
type kinded struct {
	kind Kind
	err  error
}

func (k *kinded) Error() string { return k.err.Error() }
func (k *kinded) Unwrap() error { return k.err }
func (k *kinded) Kind() Kind    { return k.kind }

// Wrap attaches kind to err, formatting the extra context the way
// errors.Wrapf does elsewhere in this module.
func Wrap(kind Kind, err error, context string) error {
	if err == nil {
		return nil
	}
	return &kinded{kind: kind, err: errors.Wrap(err, context)}
}

// New creates a kinded error with a formatted message.
func New(kind Kind, msg string) error {
	return &kinded{kind: kind, err: errors.New(msg)}
}

// KindOf extracts the Kind from an error produced by this package, if any.
func KindOf(err error) (Kind, bool) {
	var k *kinded
	for err != nil {
		if kk, ok := err.(*kinded); ok {
			k = kk
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if k == nil {
		return "", false
	}
	return k.kind, true
}
