// Package logrus adapts a sirupsen/logrus entry to caslist.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/caslist"
)

type Logger struct{ E *logrus.Entry }

var _ caslist.Logger = Logger{}

// New tags every record with component, e.g. "caslist" or a list name.
func New(l *logrus.Logger, component string) Logger {
	e := logrus.NewEntry(l)
	if component != "" {
		e = e.WithField("component", component)
	}
	return Logger{E: e}
}

func (l Logger) Debug(msg string, f caslist.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f caslist.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f caslist.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f caslist.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f caslist.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	if err, ok := f["err"].(error); ok {
		rest := make(logrus.Fields, len(f)-1)
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return l.E.WithError(err).WithFields(rest)
	}
	return l.E.WithFields(logrus.Fields(f))
}
