// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// ECOLINK_BOT_TOKEN.
const EnvPrefix = "ECOLINK_"

// Load reads the configuration from the given path (TOML or YAML, selected
// by extension), layered over built-in defaults and under ECOLINK_*
// environment overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"command_prefix":       DefaultCommandPrefix,
		"game_command_channel": DefaultGameCommandChannel,
		"invite_message":       DefaultInviteMessage,
		"chatlog_path":         DefaultChatlogPath,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load config defaults: %w", err)
	}

	if path != "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			var tree map[string]interface{}
			if err := yaml.Unmarshal(raw, &tree); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
			if err := k.Load(confmap.Provider(tree, "."), nil); err != nil {
				return nil, fmt.Errorf("failed to load YAML config: %w", err)
			}
		default:
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Init writes a commented sample configuration to the given path. It refuses
// to overwrite an existing file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists at %s", path)
	}

	sample := `# ecolink configuration

bot_token = ""
command_prefix = "?"
gateway_url = "ws://localhost:3001/chat"

server_name = ""
server_description = ""
server_logo = ""
server_address = ""

game_command_channel = "General"
invite_message = "Join us on Discord!\n[LINK]"

log_chat = false
chatlog_path = "./chatlog.txt"

[[chat_links]]
discord_guild = "My Guild"
discord_channel = "general"
game_channel = "General"

[[status_channels]]
discord_guild = "My Guild"
discord_channel = "server-status"
use_name = true
use_address = true
use_player_count = true
use_player_list = true
use_time_since_start = true
use_time_remaining = true
use_world_leader = true
`
	return os.WriteFile(path, []byte(sample), 0o644)
}
