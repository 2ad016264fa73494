// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ecolink/ecolink/pkg/config"
	"github.com/ecolink/ecolink/pkg/gamechat"
)

// statusMarker identifies the live status message among a channel's recent
// messages. It appears in the embed title and in the flattened text form.
const statusMarker = "Live Server Status"

// renderStatus builds the status embed from a server info snapshot, filtered
// by the status channel's component flags. Config-level overrides (server
// name, description, logo, address) take precedence over the snapshot.
func renderStatus(info gamechat.ServerInfo, cfg *config.Config, flags config.ComponentFlags) *discordgo.MessageEmbed {
	name := cfg.ServerName
	if name == "" {
		name = info.Name
	}
	description := cfg.ServerDescription
	if description == "" {
		description = info.Description
	}
	logo := cfg.ServerLogo
	if logo == "" {
		logo = info.LogoURL
	}
	address := cfg.ServerAddress
	if address == "" {
		address = info.Address
	}

	embed := &discordgo.MessageEmbed{Title: statusMarker}
	if flags.Has(config.ComponentName) && name != "" {
		embed.Title = statusMarker + " - " + name
	}
	if flags.Has(config.ComponentDescription) && description != "" {
		embed.Description = description
	}
	if flags.Has(config.ComponentLogo) && logo != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: logo}
	}

	addField := func(name, value string) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  name,
			Value: value,
		})
	}
	if flags.Has(config.ComponentAddress) && address != "" {
		addField("Server Address", address)
	}
	if flags.Has(config.ComponentPlayerCount) {
		addField("Online Players", fmt.Sprintf("%d", info.PlayerCount))
	}
	if flags.Has(config.ComponentPlayerList) {
		list := "-- No players online --"
		if len(info.OnlinePlayers) > 0 {
			list = strings.Join(info.OnlinePlayers, "\n")
		}
		addField("Player List", list)
	}
	if flags.Has(config.ComponentTimeSinceStart) {
		addField("Time Since World Start", formatDuration(info.WorldAge))
	}
	if flags.Has(config.ComponentTimeRemaining) {
		remaining := formatDuration(info.MeteorCountdown)
		if info.MeteorHasHit {
			remaining = "0:00"
		}
		addField("Time Until Meteor", remaining)
	}
	if flags.Has(config.ComponentMeteorHasHit) && info.MeteorHasHit {
		addField("Meteor Status", "The meteor has hit!")
	}
	if flags.Has(config.ComponentWorldLeader) && info.WorldLeader != "" {
		addField("World Leader", info.WorldLeader)
	}
	return embed
}

// embedToText flattens a status embed into the plain-text form used when the
// channel denies the embed-links permission.
func embedToText(embed *discordgo.MessageEmbed) string {
	var b strings.Builder
	b.WriteString("**" + embed.Title + "**\n")
	if embed.Description != "" {
		b.WriteString(embed.Description + "\n")
	}
	for _, field := range embed.Fields {
		b.WriteString("\n**" + field.Name + "**\n" + field.Value + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatDuration renders a duration as days and hours:minutes, matching the
// in-game clock display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%d days %d:%02d", days, hours, minutes)
	}
	return fmt.Sprintf("%d:%02d", hours, minutes)
}
