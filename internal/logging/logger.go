// Package logging provides the minimal structured logger used across
// the scheduler packages, backed by logrus the way the teacher's
// metrics collector holds its own *logrus.Logger rather than calling
// the stdlib log package directly.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow interface scheduler components depend on,
// mirroring the shape the teacher's logger.New() returned.
type Logger interface {
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
	WithField(key string, value any) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New returns a Logger named for the given component, so log lines can
// be filtered by subsystem the way the teacher tags metrics by kind.
func New(component string) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: l.WithField("component", component)}
}

func (l *logrusLogger) Infof(format string, v ...any)  { l.entry.Infof(format, v...) }
func (l *logrusLogger) Warnf(format string, v ...any)  { l.entry.Warnf(format, v...) }
func (l *logrusLogger) Errorf(format string, v ...any) { l.entry.Errorf(format, v...) }

func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

// Noop discards everything; tests that don't care about log output
// pass this instead of wiring up a real sink.
func Noop() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Infof(string, ...any)        {}
func (noopLogger) Warnf(string, ...any)        {}
func (noopLogger) Errorf(string, ...any)       {}
func (n noopLogger) WithField(string, any) Logger { return n }
