// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package gamechat provides the game-server side of the bridge: chat and
// player event streams, the synthetic relay identity and the server info
// snapshot used by the status view.
package gamechat

import (
	"strings"
	"time"
)

// ChatMessage is a single line from the game chat feed.
type ChatMessage struct {
	// Text is the raw message text, possibly containing game markup tags.
	Text string
	// Sender is the display name of the sending player. Empty for
	// server-originated messages.
	Sender string
	// Tag is the channel tag including the leading # character, e.g. "#general".
	Tag string
}

// SystemOriginated reports whether the message was produced by the server
// itself rather than a player.
func (m ChatMessage) SystemOriginated() bool {
	return strings.TrimSpace(m.Sender) == ""
}

// PlayerEventKind classifies a player lifecycle event.
type PlayerEventKind string

const (
	PlayerJoined    PlayerEventKind = "joined"
	PlayerLeft      PlayerEventKind = "left"
	PlayerFirstJoin PlayerEventKind = "first_join"
)

// PlayerEvent is a structured login/logout signal from the game server.
type PlayerEvent struct {
	Kind       PlayerEventKind
	PlayerID   string
	PlayerName string
}

// Identity is a chat participant on the game side. The bridge registers one
// long-lived synthetic identity that externally sourced messages are posted
// under.
type Identity struct {
	ID   string
	Name string
}

// ServerInfo is a snapshot of game server state, rendered into the live
// status message.
type ServerInfo struct {
	Name            string
	Description     string
	LogoURL         string
	Address         string
	PlayerCount     int
	OnlinePlayers   []string
	WorldAge        time.Duration
	MeteorCountdown time.Duration
	MeteorHasHit    bool
	WorldLeader     string
}

// Source is the game chat collaborator. Subscriptions return a remove
// function; calling it unsubscribes the handler.
type Source interface {
	// SubscribeChat registers a handler for incoming chat messages.
	SubscribeChat(fn func(ChatMessage)) (remove func())
	// SubscribePlayers registers a handler for player lifecycle events.
	SubscribePlayers(fn func(PlayerEvent)) (remove func())
	// SendChat posts text into the named game channel as the given identity.
	// The tag is passed without the leading # character.
	SendChat(tag, text string, as Identity) error
	// EnsureIdentity registers the relay identity with the game server,
	// creating it if it does not exist yet.
	EnsureIdentity(id, name string) (Identity, error)
	// PlayerExists reports whether a player with the given name is known to
	// the server.
	PlayerExists(name string) bool
	// Info returns the latest server info snapshot, if one has been received.
	Info() (ServerInfo, bool)
}
