package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/caslist"
	cllogrus "github.com/unkn0wn-root/caslist/log/logrus"
	clslog "github.com/unkn0wn-root/caslist/log/slog"
	clzap "github.com/unkn0wn-root/caslist/log/zap"
)

// newLogger builds the configured backend. The returned func flushes it.
func newLogger(cfg config) (caslist.Logger, func(), error) {
	switch cfg.Logger {
	case "zap":
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		zc := zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(lvl)
		zl, err := zc.Build()
		if err != nil {
			return nil, nil, err
		}
		return clzap.New(zl, "demo"), func() { _ = zl.Sync() }, nil
	case "slog":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
		return clslog.New(slog.New(h), "demo"), func() {}, nil
	default:
		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return cllogrus.New(l, "demo"), func() {}, nil
	}
}
