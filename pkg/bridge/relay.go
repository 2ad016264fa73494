// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ecolink/ecolink/pkg/bridge/discordfmt"
	"github.com/ecolink/ecolink/pkg/bridge/gamefmt"
	"github.com/ecolink/ecolink/pkg/chatlog"
	"github.com/ecolink/ecolink/pkg/config"
	"github.com/ecolink/ecolink/pkg/gamechat"
)

// EchoToken marks a message posted under the relay identity that should be
// forwarded anyway. Without it, relay-authored game messages are dropped to
// prevent loops.
const EchoToken = "[ECHO]"

// nametagColor is the Discord blurple hex used for inbound sender nametags.
const nametagColor = "7289DA"

var channelMentionPattern = regexp.MustCompile(`<#(\d+)>`)

// Relay forwards chat between the game source and Discord. It holds no
// per-message state; each event is handled independently.
type Relay struct {
	log      zerolog.Logger
	store    *config.Store
	svc      chatService
	source   gamechat.Source
	chatlog  *chatlog.Logger
	identity gamechat.Identity

	// onSystemMessage is invoked instead of relaying when the game emits a
	// server-originated line. Used to trigger a status refresh.
	onSystemMessage func()
}

func newRelay(log zerolog.Logger, store *config.Store, svc chatService, source gamechat.Source,
	clog *chatlog.Logger, identity gamechat.Identity, onSystemMessage func()) *Relay {
	return &Relay{
		log:             log.With().Str("component", "relay").Logger(),
		store:           store,
		svc:             svc,
		source:          source,
		chatlog:         clog,
		identity:        identity,
		onSystemMessage: onSystemMessage,
	}
}

// HandleGameMessage forwards one game chat line to its linked Discord
// channel.
func (r *Relay) HandleGameMessage(m gamechat.ChatMessage) {
	if m.Sender == r.identity.Name && !strings.HasPrefix(m.Text, EchoToken) {
		return
	}
	if m.SystemOriginated() {
		if r.onSystemMessage != nil {
			r.onSystemMessage()
		}
		return
	}

	cfg := r.store.Current()
	tag := strings.TrimPrefix(m.Tag, "#")
	link := cfg.LinkForGameChannel(tag)
	if link == nil || link.Blank() {
		return
	}

	guild := r.svc.GuildByNameOrID(link.DiscordGuild)
	if guild == nil {
		r.log.Warn().Str("guild", link.DiscordGuild).Msg("Failed to find guild for chat link")
		return
	}
	channel := r.svc.ChannelByNameOrID(guild, link.DiscordChannel)
	if channel == nil {
		r.log.Warn().Str("channel", link.DiscordChannel).Msg("Failed to find channel for chat link")
		return
	}

	text := strings.TrimPrefix(m.Text, EchoToken)
	content := gamefmt.Format(text, m.Sender, gamefmt.MentionOptions{
		Users:    link.UserMentionsAllowed(),
		Roles:    link.RoleMentionsAllowed(),
		Channels: link.ChannelMentionsAllowed(),
	}, directoryFor(guild))

	if _, err := r.svc.SendMessage(channel.ID, content); err != nil {
		r.log.Error().Err(err).Str("channel", channel.Name).Msg("Failed to forward game message to Discord")
		return
	}
	r.chatlog.Write(chatlog.GameToDiscord, m.Sender, gamefmt.StripTags(m.Text))
}

// HandleDiscordMessage forwards one Discord message into its linked game
// channel.
func (r *Relay) HandleDiscordMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == r.svc.BotUserID() {
		return
	}

	cfg := r.store.Current()
	if cfg.CommandPrefix != "" && strings.HasPrefix(m.Content, cfg.CommandPrefix) {
		return
	}

	link := r.linkForMessage(cfg, m)
	if link == nil || link.Blank() {
		return
	}

	readable := discordfmt.Readable(m.Content, r.mentionsFor(m))
	nametag := gamefmt.Bold(gamefmt.Color(nametagColor, senderName(m)))
	line := "#" + link.GameChannel + " " + nametag + ": " + readable

	if err := r.source.SendChat(link.GameChannel, line, r.identity); err != nil {
		r.log.Error().Err(err).Str("channel", link.GameChannel).Msg("Failed to forward Discord message to game")
		return
	}
	r.chatlog.Write(chatlog.DiscordToGame, senderName(m), readable)
}

// linkForMessage resolves the chat link by channel name first, then by
// channel ID.
func (r *Relay) linkForMessage(cfg *config.Config, m *discordgo.MessageCreate) *config.ChannelLink {
	if channel := r.svc.ChannelByID(m.ChannelID); channel != nil {
		if link := cfg.LinkForDiscordChannel(channel.Name); link != nil {
			return link
		}
	}
	return cfg.LinkForDiscordChannel(m.ChannelID)
}

// mentionsFor extracts the ID to display-name maps from the message's
// structured mention lists.
func (r *Relay) mentionsFor(m *discordgo.MessageCreate) discordfmt.Mentions {
	mentions := discordfmt.Mentions{
		Users:    make(map[string]string, len(m.Mentions)),
		Roles:    make(map[string]string, len(m.MentionRoles)),
		Channels: make(map[string]string),
	}
	for _, user := range m.Mentions {
		mentions.Users[user.ID] = user.Username
	}
	if len(m.MentionRoles) > 0 {
		if guild := r.guildForMessage(m); guild != nil {
			byID := make(map[string]string, len(guild.Roles))
			for _, role := range guild.Roles {
				byID[role.ID] = role.Name
			}
			for _, roleID := range m.MentionRoles {
				if name, ok := byID[roleID]; ok {
					mentions.Roles[roleID] = name
				}
			}
		}
	}
	for _, match := range channelMentionPattern.FindAllStringSubmatch(m.Content, -1) {
		if channel := r.svc.ChannelByID(match[1]); channel != nil {
			mentions.Channels[match[1]] = channel.Name
		}
	}
	return mentions
}

func (r *Relay) guildForMessage(m *discordgo.MessageCreate) *discordgo.Guild {
	if m.GuildID == "" {
		return nil
	}
	return r.svc.GuildByNameOrID(m.GuildID)
}

func senderName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	return m.Author.Username
}

// directoryFor builds the ordered mention candidate lists for a guild. Roles
// are limited to mentionable ones; channels to text channels.
func directoryFor(guild *discordgo.Guild) gamefmt.Directory {
	var dir gamefmt.Directory
	for _, role := range guild.Roles {
		if role.Mentionable {
			dir.Roles = append(dir.Roles, gamefmt.Candidate{Name: role.Name, Mention: role.Mention()})
		}
	}
	for _, member := range guild.Members {
		if member.User == nil {
			continue
		}
		dir.Members = append(dir.Members, gamefmt.Candidate{Name: member.DisplayName(), Mention: member.User.Mention()})
	}
	for _, channel := range guild.Channels {
		if channel.Type == discordgo.ChannelTypeGuildText {
			dir.Channels = append(dir.Channels, gamefmt.Candidate{Name: channel.Name, Mention: channel.Mention()})
		}
	}
	return dir
}
