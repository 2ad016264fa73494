// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Store holds the current configuration and notifies registered callbacks
// when a reload changes the bot token, the chatlog settings or the channel
// links. The bridge reads through Current on every access, never caching the
// config, since a reload may swap it at any time.
type Store struct {
	log  zerolog.Logger
	path string

	current atomic.Pointer[Config]

	mu        sync.Mutex // serializes Reload and callback registration
	onToken   []func(oldToken, newToken string)
	onChatlog []func(cfg *Config)
	onLinks   []func(cfg *Config)
}

// NewStore loads the configuration from path and wraps it in a store.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		log:  log.With().Str("component", "config").Logger(),
		path: path,
	}
	s.install(cfg)
	return s, nil
}

// NewStaticStore wraps an in-memory config without a backing file. Reload is
// a no-op. Used by tests and the check-config command.
func NewStaticStore(cfg *Config, log zerolog.Logger) *Store {
	s := &Store{log: log.With().Str("component", "config").Logger()}
	s.install(cfg)
	return s
}

func (s *Store) install(cfg *Config) {
	for _, line := range cfg.Normalize() {
		s.log.Info().Msg("Config correction: " + line)
	}
	s.current.Store(cfg)
}

// Current returns the active configuration. The returned value must be
// treated as read-only.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// OnTokenChanged registers a callback fired when a reload changes the bot
// token.
func (s *Store) OnTokenChanged(fn func(oldToken, newToken string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onToken = append(s.onToken, fn)
}

// OnChatlogChanged registers a callback fired when a reload toggles chat
// logging or moves the chatlog file.
func (s *Store) OnChatlogChanged(fn func(cfg *Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChatlog = append(s.onChatlog, fn)
}

// OnLinksChanged registers a callback fired when a reload changes the set of
// configured channel links or status channels.
func (s *Store) OnLinksChanged(fn func(cfg *Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLinks = append(s.onLinks, fn)
}

// Reload re-reads the backing file, swaps the active config and fires change
// callbacks for every difference found.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Load(s.path)
	if err != nil {
		return err
	}
	prev := s.current.Load()
	s.install(next)

	if prev.BotToken != next.BotToken {
		s.log.Info().Msg("Bot token changed, client restart required")
		for _, fn := range s.onToken {
			fn(prev.BotToken, next.BotToken)
		}
	}
	if prev.LogChat != next.LogChat || prev.ChatlogPath != next.ChatlogPath {
		for _, fn := range s.onChatlog {
			fn(next)
		}
	}
	if !slices.Equal(prev.linkIDs(), next.linkIDs()) {
		s.log.Info().Msg("Channel links changed")
		for _, fn := range s.onLinks {
			fn(next)
		}
	}

	return nil
}
