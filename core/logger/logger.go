// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package logger

// Logger is the logging interface used by the orchestration engine.
// A loggo.Logger satisfies it.
type Logger interface {
	Criticalf(format string, args ...any)
	Errorf(format string, args ...any)
	Warningf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
	Tracef(format string, args ...any)
}
