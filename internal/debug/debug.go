// Package debug holds the process-wide debug level spec.md §9's "Global
// debug-level state" design note calls for: a single atomic integer set
// once at start-up and read, never locked, at each log call site.
package debug

import (
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Level is one of the four Pallas debug levels PALLAS_DEBUG_LEVEL
// selects between.
type Level int32

const (
	LevelQuiet Level = iota
	LevelNormal
	LevelDebug
	LevelVerbose
)

// String renders the level's env-var spelling.
func (l Level) String() string {
	switch l {
	case LevelQuiet:
		return "quiet"
	case LevelNormal:
		return "normal"
	case LevelDebug:
		return "debug"
	case LevelVerbose:
		return "verbose"
	default:
		return "unknown"
	}
}

// logrusLevel maps a Pallas Level onto the logrus.Level that reports it.
func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelQuiet:
		return logrus.ErrorLevel
	case LevelDebug:
		return logrus.InfoLevel
	case LevelVerbose:
		return logrus.DebugLevel
	default:
		return logrus.WarnLevel
	}
}

var current atomic.Int32

func init() {
	SetLevel(levelFromEnv())
}

// levelFromEnv parses PALLAS_DEBUG_LEVEL, defaulting to LevelNormal for
// an unset or unrecognized value.
func levelFromEnv() Level {
	switch os.Getenv("PALLAS_DEBUG_LEVEL") {
	case "quiet":
		return LevelQuiet
	case "debug":
		return LevelDebug
	case "verbose":
		return LevelVerbose
	default:
		return LevelNormal
	}
}

// SetLevel sets the process-wide debug level and reconfigures the
// package logger's logrus.Level to match, so callers that log through
// Logger() see the new verbosity immediately.
func SetLevel(l Level) {
	current.Store(int32(l))
	Logger().SetLevel(l.logrusLevel())
}

// CurrentLevel returns the process-wide debug level, read lock-free.
func CurrentLevel() Level {
	return Level(current.Load())
}

var logger = logrus.New()

// Logger returns the shared logrus.Logger every Pallas package logs
// through, its level kept in sync with SetLevel.
func Logger() *logrus.Logger {
	return logger
}
