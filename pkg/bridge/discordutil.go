// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.mau.fi/util/ptr"
)

// ErrMessageMissing reports that a previously known message no longer exists
// on the platform, as opposed to a transient fetch failure.
var ErrMessageMissing = errors.New("message no longer exists")

// chatService is the slice of the Discord client the bridge components use.
// Narrow on purpose: tests substitute a fake.
type chatService interface {
	BotUserID() string
	GuildByNameOrID(nameOrID string) *discordgo.Guild
	ChannelByID(channelID string) *discordgo.Channel
	ChannelByNameOrID(guild *discordgo.Guild, nameOrID string) *discordgo.Channel
	HasChannelPermission(channelID string, permission int64) bool
	SendMessage(channelID, content string) (*discordgo.Message, error)
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
	EditMessage(channelID, messageID, content string) error
	EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error
	Message(channelID, messageID string) (*discordgo.Message, error)
	RecentMessages(channelID string, limit int) ([]*discordgo.Message, error)
}

// ParseSnowflake parses a Discord snowflake ID. Small integers are rejected
// so that channel names consisting of digits are not mistaken for IDs.
func ParseSnowflake(s string) (uint64, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id <= 0xFFFFFFFFFFFFF {
		return 0, false
	}
	return id, true
}

// session adapts a discordgo session to the chatService interface, reading
// directories from the state cache and pre-translating the unknown-message
// error.
type session struct {
	s *discordgo.Session
}

var _ chatService = (*session)(nil)

func (c *session) BotUserID() string {
	if c.s.State.User == nil {
		return ""
	}
	return c.s.State.User.ID
}

func (c *session) GuildByNameOrID(nameOrID string) *discordgo.Guild {
	if _, ok := ParseSnowflake(nameOrID); ok {
		guild, err := c.s.State.Guild(nameOrID)
		if err == nil {
			return guild
		}
		return nil
	}
	lower := strings.ToLower(nameOrID)
	for _, guild := range c.s.State.Guilds {
		if strings.ToLower(guild.Name) == lower {
			return guild
		}
	}
	return nil
}

func (c *session) ChannelByID(channelID string) *discordgo.Channel {
	channel, err := c.s.State.Channel(channelID)
	if err != nil {
		return nil
	}
	return channel
}

func (c *session) ChannelByNameOrID(guild *discordgo.Guild, nameOrID string) *discordgo.Channel {
	byID, _ := ParseSnowflake(nameOrID)
	lower := strings.ToLower(nameOrID)
	for _, channel := range guild.Channels {
		if byID != 0 && channel.ID == nameOrID {
			return channel
		}
		if channel.Type == discordgo.ChannelTypeGuildText && strings.ToLower(channel.Name) == lower {
			return channel
		}
	}
	return nil
}

func (c *session) HasChannelPermission(channelID string, permission int64) bool {
	perms, err := c.s.State.UserChannelPermissions(c.BotUserID(), channelID)
	if err != nil {
		return false
	}
	return perms&permission == permission
}

func (c *session) SendMessage(channelID, content string) (*discordgo.Message, error) {
	msg, err := c.s.ChannelMessageSend(channelID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}

func (c *session) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	msg, err := c.s.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to send embed: %w", err)
	}
	return msg, nil
}

func (c *session) EditMessage(channelID, messageID, content string) error {
	// Clearing the embed list downgrades a previously embedded status
	// message to plain text.
	_, err := c.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: channelID,
		ID:      messageID,
		Content: ptr.Ptr(content),
		Embeds:  ptr.Ptr([]*discordgo.MessageEmbed{}),
	})
	if err != nil {
		return translateMessageError(err)
	}
	return nil
}

func (c *session) EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	if _, err := c.s.ChannelMessageEditEmbed(channelID, messageID, embed); err != nil {
		return translateMessageError(err)
	}
	return nil
}

func (c *session) Message(channelID, messageID string) (*discordgo.Message, error) {
	msg, err := c.s.ChannelMessage(channelID, messageID)
	if err != nil {
		return nil, translateMessageError(err)
	}
	return msg, nil
}

func (c *session) RecentMessages(channelID string, limit int) ([]*discordgo.Message, error) {
	msgs, err := c.s.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent messages: %w", err)
	}
	return msgs, nil
}

func translateMessageError(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownMessage {
		return ErrMessageMissing
	}
	return err
}
