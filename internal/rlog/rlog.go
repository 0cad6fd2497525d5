// Package rlog configures the process-wide logger used by every rserve-go
// component. It follows the same backend/formatter/level-override shape
// as krd's logging setup: a colorized stderr backend by default, with an
// environment variable allowed to override the configured level.
package rlog

import (
	"os"

	"github.com/op/go-logging"
)

// Log is the shared logger. Every package logs through this handle rather
// than the standard library's log package.
var Log = logging.MustGetLogger("rserve")

var stderrFormat = logging.MustStringFormatter(
	`%{color}%{time:15:04:05.000} rserve[%{pid}] %{level:.4s} ▶%{color:reset} %{message}`,
)

// LevelEnvVar overrides the configured default level, mirroring krd's
// KR_LOG_LEVEL convention.
const LevelEnvVar = "RSERVE_LOG_LEVEL"

// Setup installs the stderr backend at defaultLevel, unless LevelEnvVar
// names a recognized level, and returns the shared logger.
func Setup(defaultLevel logging.Level) *logging.Logger {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, stderrFormat)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(levelFromEnv(defaultLevel), "")
	logging.SetBackend(leveled)
	return Log
}

func levelFromEnv(defaultLevel logging.Level) logging.Level {
	switch os.Getenv(LevelEnvVar) {
	case "CRITICAL":
		return logging.CRITICAL
	case "ERROR":
		return logging.ERROR
	case "WARNING":
		return logging.WARNING
	case "NOTICE":
		return logging.NOTICE
	case "INFO":
		return logging.INFO
	case "DEBUG":
		return logging.DEBUG
	default:
		return defaultLevel
	}
}
