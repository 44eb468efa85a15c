// Package zap adapts a go.uber.org/zap logger to caslist.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/caslist"
)

type Logger struct{ L *zap.Logger }

var _ caslist.Logger = Logger{}

// New names the logger (zap's dotted logger name), e.g. "caslist.users".
func New(l *zap.Logger, name string) Logger {
	if name != "" {
		l = l.Named(name)
	}
	return Logger{L: l}
}

func (z Logger) Debug(msg string, f caslist.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f caslist.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f caslist.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f caslist.Fields) { z.L.Error(msg, fields(f)...) }

// fields emits keys in sorted order so encoded lines are stable.
func fields(f caslist.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
