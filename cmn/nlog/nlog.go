// Package nlog is the region-server's process-wide leveled logger.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package nlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// verbosity mirrors AIStore's FastV(level, module) gate: callers pass a
// numeric level and the log line is only emitted when the configured
// threshold is >= that level.
var (
	mu       sync.RWMutex
	logger   = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	verbosity int
)

// SetLevel configures zerolog's global level (panic..trace).
func SetLevel(lvl zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(lvl)
}

// SetVerbosity sets the FastV threshold used by this package's V-gated
// helpers.
func SetVerbosity(v int) {
	mu.Lock()
	defer mu.Unlock()
	verbosity = v
}

// FastV reports whether a module's log line at the given numeric level
// should be emitted. rez does not (yet) have a per-module mask; all
// modules share one threshold.
func FastV(level int, _module string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbosity >= level
}

func snapshot() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Infoln(args ...any)            { snapshot().Info().Msg(sprint(args...)) }
func Infof(format string, a ...any)  { snapshot().Info().Msg(fmt.Sprintf(format, a...)) }
func Warningln(args ...any)          { snapshot().Warn().Msg(sprint(args...)) }
func Warningf(format string, a ...any) { snapshot().Warn().Msg(fmt.Sprintf(format, a...)) }
func Errorln(args ...any)            { snapshot().Error().Msg(sprint(args...)) }
func Errorf(format string, a ...any) { snapshot().Error().Msg(fmt.Sprintf(format, a...)) }
func Fatalln(args ...any)            { snapshot().Fatal().Msg(sprint(args...)) }

func sprint(args ...any) string {
	return fmt.Sprintln(args...)
}
