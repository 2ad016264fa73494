// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config holds the bridge configuration schema, normalization rules
// and the reloadable store the rest of the bridge reads from.
package config

import (
	"fmt"
	"strings"
)

// InviteLinkToken is the placeholder in the invite message that gets replaced
// with the actual Discord invite URL.
const InviteLinkToken = "[LINK]"

// Default values restored when the corresponding field is left blank.
const (
	DefaultCommandPrefix      = "?"
	DefaultGameCommandChannel = "General"
	DefaultChatlogPath        = "./chatlog.txt"
)

// DefaultInviteMessage is the default text for the invite command.
const DefaultInviteMessage = "Join us on Discord!\n" + InviteLinkToken

// ChannelLink pairs a game chat channel with a Discord guild+channel for
// message relay. Created and edited by the operator; the bridge only
// normalizes and verifies it.
type ChannelLink struct {
	// DiscordGuild is the Discord guild (server) by name or snowflake ID.
	DiscordGuild string `koanf:"discord_guild"`
	// DiscordChannel is the Discord channel by name or snowflake ID. Stored
	// normalized: lowercase, spaces replaced with dashes, no leading #.
	DiscordChannel string `koanf:"discord_channel"`
	// GameChannel is the game chat channel, without the leading # character.
	GameChannel string `koanf:"game_channel"`

	// Mention permissions default to allowed when not set.
	AllowUserMentions    *bool `koanf:"allow_user_mentions"`
	AllowRoleMentions    *bool `koanf:"allow_role_mentions"`
	AllowChannelMentions *bool `koanf:"allow_channel_mentions"`
}

// UserMentionsAllowed reports whether @name tokens may resolve to members.
func (l ChannelLink) UserMentionsAllowed() bool {
	return l.AllowUserMentions == nil || *l.AllowUserMentions
}

// RoleMentionsAllowed reports whether @name tokens may resolve to roles.
func (l ChannelLink) RoleMentionsAllowed() bool {
	return l.AllowRoleMentions == nil || *l.AllowRoleMentions
}

// ChannelMentionsAllowed reports whether #name tokens may resolve to channels.
func (l ChannelLink) ChannelMentionsAllowed() bool {
	return l.AllowChannelMentions == nil || *l.AllowChannelMentions
}

// LinkID returns the human-readable identity of the link, used as the key in
// the verified set and in verification reports.
func (l ChannelLink) LinkID() string {
	return l.DiscordGuild + " - " + l.DiscordChannel + " <--> " + l.GameChannel + " (Chat Link)"
}

// Blank reports whether any side of the link is missing, making it
// non-relayable and exempt from verification.
func (l ChannelLink) Blank() bool {
	return strings.TrimSpace(l.DiscordGuild) == "" ||
		strings.TrimSpace(l.DiscordChannel) == "" ||
		strings.TrimSpace(l.GameChannel) == ""
}

// StatusChannel is a Discord channel hosting one continuously updated live
// status message. The Use* flags select which server info components the
// rendered message includes.
type StatusChannel struct {
	DiscordGuild   string `koanf:"discord_guild"`
	DiscordChannel string `koanf:"discord_channel"`

	UseName           bool `koanf:"use_name"`
	UseDescription    bool `koanf:"use_description"`
	UseLogo           bool `koanf:"use_logo"`
	UseAddress        bool `koanf:"use_address"`
	UsePlayerCount    bool `koanf:"use_player_count"`
	UsePlayerList     bool `koanf:"use_player_list"`
	UseTimeSinceStart bool `koanf:"use_time_since_start"`
	UseTimeRemaining  bool `koanf:"use_time_remaining"`
	UseMeteorHasHit   bool `koanf:"use_meteor_has_hit"`
	UseWorldLeader    bool `koanf:"use_world_leader"`
}

// LinkID returns the human-readable identity of the status channel config.
func (s StatusChannel) LinkID() string {
	return s.DiscordGuild + " - " + s.DiscordChannel + " (Status)"
}

// Blank reports whether the config is missing its guild or channel.
func (s StatusChannel) Blank() bool {
	return strings.TrimSpace(s.DiscordGuild) == "" || strings.TrimSpace(s.DiscordChannel) == ""
}

// ComponentFlags is a bitset of status message components.
type ComponentFlags uint16

const (
	ComponentName ComponentFlags = 1 << iota
	ComponentDescription
	ComponentLogo
	ComponentAddress
	ComponentPlayerCount
	ComponentPlayerList
	ComponentTimeSinceStart
	ComponentTimeRemaining
	ComponentMeteorHasHit
	ComponentWorldLeader
)

// Has reports whether the given component is selected.
func (f ComponentFlags) Has(c ComponentFlags) bool { return f&c != 0 }

// Components derives the flag bitset from the Use* booleans.
func (s StatusChannel) Components() ComponentFlags {
	var f ComponentFlags
	set := func(use bool, c ComponentFlags) {
		if use {
			f |= c
		}
	}
	set(s.UseName, ComponentName)
	set(s.UseDescription, ComponentDescription)
	set(s.UseLogo, ComponentLogo)
	set(s.UseAddress, ComponentAddress)
	set(s.UsePlayerCount, ComponentPlayerCount)
	set(s.UsePlayerList, ComponentPlayerList)
	set(s.UseTimeSinceStart, ComponentTimeSinceStart)
	set(s.UseTimeRemaining, ComponentTimeRemaining)
	set(s.UseMeteorHasHit, ComponentMeteorHasHit)
	set(s.UseWorldLeader, ComponentWorldLeader)
	return f
}

// PlayerConfig maps a game player to per-player settings.
type PlayerConfig struct {
	Username       string `koanf:"username"`
	DefaultGuild   string `koanf:"default_guild"`
	DefaultChannel string `koanf:"default_channel"`
}

// Config is the full bridge configuration.
type Config struct {
	// BotToken is the Discord bot token. Changing it triggers a client
	// restart on reload.
	BotToken string `koanf:"bot_token"`
	// CommandPrefix marks Discord messages as commands; the relay drops them.
	CommandPrefix string `koanf:"command_prefix"`
	// GatewayURL is the websocket address of the game server chat feed.
	GatewayURL string `koanf:"gateway_url"`

	ServerName        string `koanf:"server_name"`
	ServerDescription string `koanf:"server_description"`
	ServerLogo        string `koanf:"server_logo"`
	// ServerAddress overrides the autodetected game server address shown in
	// the status message. IP or host:port.
	ServerAddress string `koanf:"server_address"`

	// GameCommandChannel is the game channel used for public command output,
	// without the leading # character.
	GameCommandChannel string `koanf:"game_command_channel"`
	// InviteMessage is the invite command text; must contain InviteLinkToken.
	InviteMessage string `koanf:"invite_message"`

	LogChat     bool   `koanf:"log_chat"`
	ChatlogPath string `koanf:"chatlog_path"`

	ChatLinks      []ChannelLink   `koanf:"chat_links"`
	StatusChannels []StatusChannel `koanf:"status_channels"`
	Players        []PlayerConfig  `koanf:"players"`
}

// NormalizeChannelName applies the Discord channel naming convention:
// lowercase, spaces replaced with dashes, leading # stripped. Idempotent.
func NormalizeChannelName(name string) string {
	name = strings.TrimPrefix(name, "#")
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, " ", "-")
}

// Normalize corrects the config in place and returns one line per
// correction made. Blank fields with defaults are restored; Discord channel
// names are normalized to the platform convention.
func (c *Config) Normalize() []string {
	var corrections []string

	if strings.TrimSpace(c.CommandPrefix) == "" {
		c.CommandPrefix = DefaultCommandPrefix
		corrections = append(corrections, "command prefix found empty - reset to default")
	}
	if strings.TrimSpace(c.GameCommandChannel) == "" {
		c.GameCommandChannel = DefaultGameCommandChannel
		corrections = append(corrections, "game command channel found empty - reset to default")
	}
	if strings.TrimSpace(c.InviteMessage) == "" {
		c.InviteMessage = DefaultInviteMessage
		corrections = append(corrections, "invite message found empty - reset to default")
	}
	if strings.TrimSpace(c.ChatlogPath) == "" {
		c.ChatlogPath = DefaultChatlogPath
	}

	for i := range c.ChatLinks {
		link := &c.ChatLinks[i]
		if strings.TrimSpace(link.DiscordChannel) == "" {
			continue
		}
		if normalized := NormalizeChannelName(link.DiscordChannel); normalized != link.DiscordChannel {
			corrections = append(corrections, fmt.Sprintf(
				"corrected Discord channel name in chat link with guild %q from %q to %q",
				link.DiscordGuild, link.DiscordChannel, normalized))
			link.DiscordChannel = normalized
		}
	}

	for i := range c.StatusChannels {
		status := &c.StatusChannels[i]
		if strings.TrimSpace(status.DiscordChannel) == "" {
			continue
		}
		if normalized := NormalizeChannelName(status.DiscordChannel); normalized != status.DiscordChannel {
			corrections = append(corrections, fmt.Sprintf(
				"corrected Discord channel name in status channel with guild %q from %q to %q",
				status.DiscordGuild, status.DiscordChannel, normalized))
			status.DiscordChannel = normalized
		}
	}

	return corrections
}

// LinkForGameChannel returns the chat link whose game channel matches the
// given name, case-insensitively, or nil.
func (c *Config) LinkForGameChannel(name string) *ChannelLink {
	lower := strings.ToLower(name)
	for i := range c.ChatLinks {
		if strings.ToLower(c.ChatLinks[i].GameChannel) == lower {
			return &c.ChatLinks[i]
		}
	}
	return nil
}

// LinkForDiscordChannel returns the chat link whose Discord channel matches
// the given name or ID, or nil.
func (c *Config) LinkForDiscordChannel(nameOrID string) *ChannelLink {
	for i := range c.ChatLinks {
		if c.ChatLinks[i].DiscordChannel == nameOrID {
			return &c.ChatLinks[i]
		}
	}
	return nil
}

// LinkForDiscordGuildChannel returns the chat link matching the guild and
// channel names, case-insensitively, or nil. Used to select the mention
// permission flags for an outbound message.
func (c *Config) LinkForDiscordGuildChannel(guild, channel string) *ChannelLink {
	guildLower := strings.ToLower(guild)
	channelLower := strings.ToLower(channel)
	for i := range c.ChatLinks {
		link := &c.ChatLinks[i]
		if strings.ToLower(link.DiscordGuild) == guildLower &&
			strings.ToLower(link.DiscordChannel) == channelLower {
			return link
		}
	}
	return nil
}

// linkIDs returns the identity strings of every non-blank chat link and
// status channel. Used for reload diffing and verification accounting.
func (c *Config) linkIDs() []string {
	var ids []string
	for _, link := range c.ChatLinks {
		if !link.Blank() {
			ids = append(ids, link.LinkID())
		}
	}
	for _, status := range c.StatusChannels {
		if !status.Blank() {
			ids = append(ids, status.LinkID())
		}
	}
	return ids
}

// ConfiguredLinkCount returns the number of non-blank links subject to
// verification.
func (c *Config) ConfiguredLinkCount() int {
	return len(c.linkIDs())
}
