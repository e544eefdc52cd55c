// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the leveled stderr logger shared by all loom
// packages. Output goes to stderr so it never mixes with piped command
// output or exported session data.
package logging

import (
	"log"
	"os"
	"sync/atomic"
)

// Level represents the logging verbosity.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	level  atomic.Int32
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	level.Store(int32(LevelInfo))
}

// SetLevel sets the global log level.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// SetVerbose enables debug logging when verbose is true.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelInfo)
	}
}

// SetOutput redirects log output. Used by tests.
func SetOutput(l *log.Logger) {
	logger = l
}

// Errorf logs at error level.
func Errorf(format string, args ...any) {
	if Level(level.Load()) >= LevelError {
		logger.Printf("[ERROR] "+format, args...)
	}
}

// Warnf logs at warn level.
func Warnf(format string, args ...any) {
	if Level(level.Load()) >= LevelWarn {
		logger.Printf("[WARN] "+format, args...)
	}
}

// Infof logs at info level.
func Infof(format string, args ...any) {
	if Level(level.Load()) >= LevelInfo {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) {
	if Level(level.Load()) >= LevelDebug {
		logger.Printf("[DEBUG] "+format, args...)
	}
}
