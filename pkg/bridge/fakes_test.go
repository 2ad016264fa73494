// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ecolink/ecolink/pkg/config"
	"github.com/ecolink/ecolink/pkg/gamechat"
)

const (
	testBotID           = "999000000000000001"
	testGuildID         = "100000000000000001"
	testGeneralID       = "200000000000000001"
	testStatusChannelID = "200000000000000002"
)

type sentMessage struct {
	channelID string
	content   string
	embed     *discordgo.MessageEmbed
}

// fakeService is an in-memory chatService. Messages sent through it become
// fetchable and editable.
type fakeService struct {
	botID    string
	guilds   []*discordgo.Guild
	perms    map[string]int64
	recent   map[string][]*discordgo.Message
	messages map[string]*discordgo.Message
	fetchErr error
	sendErr  error

	sends  []sentMessage
	edits  []sentMessage
	nextID int
}

var _ chatService = (*fakeService)(nil)

func newFakeService() *fakeService {
	allPerms := int64(discordgo.PermissionSendMessages |
		discordgo.PermissionEmbedLinks |
		discordgo.PermissionReadMessageHistory)
	return &fakeService{
		botID: testBotID,
		guilds: []*discordgo.Guild{{
			ID:   testGuildID,
			Name: "Test Guild",
			Roles: []*discordgo.Role{
				{ID: "900", Name: "admins", Mentionable: true},
				{ID: "901", Name: "hidden", Mentionable: false},
			},
			Members: []*discordgo.Member{
				{User: &discordgo.User{ID: "123", Username: "bob"}},
				{User: &discordgo.User{ID: "124", Username: "alice"}},
			},
			Channels: []*discordgo.Channel{
				{ID: testGeneralID, GuildID: testGuildID, Name: "general", Type: discordgo.ChannelTypeGuildText},
				{ID: testStatusChannelID, GuildID: testGuildID, Name: "server-status", Type: discordgo.ChannelTypeGuildText},
			},
		}},
		perms: map[string]int64{
			testGeneralID:       allPerms,
			testStatusChannelID: allPerms,
		},
		recent:   make(map[string][]*discordgo.Message),
		messages: make(map[string]*discordgo.Message),
	}
}

func (f *fakeService) BotUserID() string { return f.botID }

func (f *fakeService) GuildByNameOrID(nameOrID string) *discordgo.Guild {
	for _, guild := range f.guilds {
		if guild.ID == nameOrID || strings.EqualFold(guild.Name, nameOrID) {
			return guild
		}
	}
	return nil
}

func (f *fakeService) ChannelByID(channelID string) *discordgo.Channel {
	for _, guild := range f.guilds {
		for _, channel := range guild.Channels {
			if channel.ID == channelID {
				return channel
			}
		}
	}
	return nil
}

func (f *fakeService) ChannelByNameOrID(guild *discordgo.Guild, nameOrID string) *discordgo.Channel {
	for _, channel := range guild.Channels {
		if channel.ID == nameOrID || strings.EqualFold(channel.Name, nameOrID) {
			return channel
		}
	}
	return nil
}

func (f *fakeService) HasChannelPermission(channelID string, permission int64) bool {
	return f.perms[channelID]&permission == permission
}

func (f *fakeService) store(channelID, content string, embed *discordgo.MessageEmbed) *discordgo.Message {
	f.nextID++
	msg := &discordgo.Message{
		ID:        fmt.Sprintf("msg-%d", f.nextID),
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: f.botID},
	}
	if embed != nil {
		msg.Embeds = []*discordgo.MessageEmbed{embed}
	}
	f.messages[msg.ID] = msg
	f.recent[channelID] = append([]*discordgo.Message{msg}, f.recent[channelID]...)
	return msg
}

func (f *fakeService) SendMessage(channelID, content string) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	msg := f.store(channelID, content, nil)
	f.sends = append(f.sends, sentMessage{channelID: channelID, content: content})
	return msg, nil
}

func (f *fakeService) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	msg := f.store(channelID, "", embed)
	f.sends = append(f.sends, sentMessage{channelID: channelID, embed: embed})
	return msg, nil
}

func (f *fakeService) EditMessage(channelID, messageID, content string) error {
	msg, ok := f.messages[messageID]
	if !ok {
		return ErrMessageMissing
	}
	msg.Content = content
	msg.Embeds = nil
	f.edits = append(f.edits, sentMessage{channelID: channelID, content: content})
	return nil
}

func (f *fakeService) EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	msg, ok := f.messages[messageID]
	if !ok {
		return ErrMessageMissing
	}
	msg.Embeds = []*discordgo.MessageEmbed{embed}
	f.edits = append(f.edits, sentMessage{channelID: channelID, embed: embed})
	return nil
}

func (f *fakeService) Message(channelID, messageID string) (*discordgo.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, ErrMessageMissing
	}
	return msg, nil
}

func (f *fakeService) RecentMessages(channelID string, limit int) ([]*discordgo.Message, error) {
	msgs := f.recent[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeService) deleteMessage(messageID string) {
	delete(f.messages, messageID)
	for channelID, msgs := range f.recent {
		kept := msgs[:0]
		for _, msg := range msgs {
			if msg.ID != messageID {
				kept = append(kept, msg)
			}
		}
		f.recent[channelID] = kept
	}
}

type gameSend struct {
	tag  string
	text string
	as   gamechat.Identity
}

// fakeSource is an in-memory gamechat.Source.
type fakeSource struct {
	mu             sync.Mutex
	chatHandlers   map[int]func(gamechat.ChatMessage)
	playerHandlers map[int]func(gamechat.PlayerEvent)
	nextSub        int
	sent           []gameSend
	players        map[string]bool
	info           gamechat.ServerInfo
	haveInfo       bool
	sendErr        error
}

var _ gamechat.Source = (*fakeSource)(nil)

func newFakeSource() *fakeSource {
	return &fakeSource{
		chatHandlers:   make(map[int]func(gamechat.ChatMessage)),
		playerHandlers: make(map[int]func(gamechat.PlayerEvent)),
		players:        make(map[string]bool),
	}
}

func (f *fakeSource) SubscribeChat(fn func(gamechat.ChatMessage)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	id := f.nextSub
	f.chatHandlers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.chatHandlers, id)
	}
}

func (f *fakeSource) SubscribePlayers(fn func(gamechat.PlayerEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSub++
	id := f.nextSub
	f.playerHandlers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.playerHandlers, id)
	}
}

func (f *fakeSource) SendChat(tag, text string, as gamechat.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, gameSend{tag: tag, text: text, as: as})
	return nil
}

func (f *fakeSource) EnsureIdentity(id, name string) (gamechat.Identity, error) {
	return gamechat.Identity{ID: id, Name: name}, nil
}

func (f *fakeSource) PlayerExists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[name]
}

func (f *fakeSource) Info() (gamechat.ServerInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.haveInfo
}

func testStore(cfg *config.Config) *config.Store {
	return config.NewStaticStore(cfg, zerolog.Nop())
}

func testConfig() *config.Config {
	cfg := &config.Config{
		CommandPrefix: "?",
		ChatLinks: []config.ChannelLink{
			{DiscordGuild: "Test Guild", DiscordChannel: "general", GameChannel: "General"},
		},
		StatusChannels: []config.StatusChannel{
			{
				DiscordGuild:   "Test Guild",
				DiscordChannel: "server-status",
				UseName:        true,
				UsePlayerCount: true,
				UsePlayerList:  true,
			},
		},
	}
	cfg.Normalize()
	return cfg
}
