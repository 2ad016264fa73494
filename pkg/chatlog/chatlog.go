// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package chatlog appends relayed chat lines to a rotating log file.
package chatlog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Direction labels which way a relayed message traveled.
type Direction string

const (
	GameToDiscord Direction = "Game"
	DiscordToGame Direction = "Discord"
)

const (
	maxSizeMB  = 10
	maxBackups = 3
)

// Logger writes timestamped chat lines to a size-rotated file. Writing is
// best effort: failures are logged once per open file, never surfaced to the
// relay.
type Logger struct {
	log zerolog.Logger

	mu       sync.Mutex
	out      io.WriteCloser
	enabled  bool
	path     string
	reported bool

	now func() time.Time
}

// New returns a disabled logger. Call Configure to open the file.
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Str("component", "chatlog").Logger(),
		now: time.Now,
	}
}

// Configure enables or disables logging and points it at the given file.
// A path change closes the previous file and opens the new one lazily.
func (l *Logger) Configure(enabled bool, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out != nil && (!enabled || path != l.path) {
		l.out.Close()
		l.out = nil
	}
	l.enabled = enabled
	l.path = path
	l.reported = false
	if enabled && l.out == nil {
		l.out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		}
		l.log.Info().Str("path", path).Msg("Chat logging enabled")
	}
}

// Write appends one chat line. A no-op while disabled.
func (l *Logger) Write(dir Direction, sender, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || l.out == nil {
		return
	}
	stamp := l.now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] [%s] %s: %s\n", stamp, dir, sender, text)
	if _, err := io.WriteString(l.out, line); err != nil && !l.reported {
		l.reported = true
		l.log.Error().Err(err).Str("path", l.path).Msg("Failed to write chat log")
	}
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out != nil {
		l.out.Close()
		l.out = nil
	}
}
