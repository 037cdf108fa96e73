// Package loggingtest provides an in-memory logging service for tests.
package loggingtest

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type TestLogService struct {
	root *zap.Logger
	logs *observer.ObservedLogs
}

// New returns a log service that records every entry at debug level and above.
func New() *TestLogService {
	core, logs := observer.New(zapcore.DebugLevel)
	return &TestLogService{
		root: zap.New(core),
		logs: logs,
	}
}

func (l *TestLogService) Root() *zap.Logger {
	return l.root
}

func (l *TestLogService) SetLevel(string) error {
	return nil
}

// Logs returns the entries recorded so far.
func (l *TestLogService) Logs() *observer.ObservedLogs {
	return l.logs
}
