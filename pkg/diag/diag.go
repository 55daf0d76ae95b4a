// Package diag provides structured diagnostic logging and a concurrent-safe
// failure ledger for decode/lift/evaluate/cache events, in the style of
// other_examples' BPF assembler (logrus Debugf/WithError) adapted to this
// module's domain.
package diag

import (
	log "github.com/sirupsen/logrus"
)

// Logger is the package-level diagnostic logger. Callers may replace it
// (e.g. to redirect output or raise the level) before driving the engine.
var Logger = log.StandardLogger()

// Decoded logs a successful decode at debug level.
func Decoded(mnemonic string, offset uint64, length int) {
	if Logger.IsLevelEnabled(log.DebugLevel) {
		Logger.Debugf("decode: %s at %#x (%d bytes)", mnemonic, offset, length)
	}
}

// DecodeFailed logs a decode failure, tagged with its error.
func DecodeFailed(offset uint64, err error) {
	Logger.WithError(err).WithField("offset", offset).Debug("decode failed")
}

// LiftFailed logs a lift failure.
func LiftFailed(offset uint64, err error) {
	Logger.WithError(err).WithField("offset", offset).Warn("lift failed")
}

// CacheTransition logs a translation-cache block state change.
func CacheTransition(entry uint64, from, to string) {
	if Logger.IsLevelEnabled(log.DebugLevel) {
		Logger.Debugf("cache: block %#x %s -> %s", entry, from, to)
	}
}

// EvalFailed logs an evaluation-time error.
func EvalFailed(pc uint64, err error) {
	Logger.WithError(err).WithField("pc", pc).Error("evaluation failed")
}
