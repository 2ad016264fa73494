// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ecolink/ecolink/pkg/config"
	"github.com/ecolink/ecolink/pkg/gamechat"
)

const (
	// statusRefreshInterval is the recurring refresh period.
	statusRefreshInterval = 5 * time.Minute
	// recentMessageScan bounds the discovery scan for an existing status
	// message.
	recentMessageScan = 20
)

// StatusManager maintains exactly one live status message per configured
// status channel: created once, edited in place, rediscovered by marker text
// if the cache is lost, recreated if deleted externally.
type StatusManager struct {
	log    zerolog.Logger
	store  *config.Store
	svc    chatService
	source gamechat.Source

	mu      sync.Mutex
	handles map[string]string // StatusChannel LinkID -> message ID

	trigger chan struct{}
}

func newStatusManager(log zerolog.Logger, store *config.Store, svc chatService, source gamechat.Source) *StatusManager {
	return &StatusManager{
		log:     log.With().Str("component", "status").Logger(),
		store:   store,
		svc:     svc,
		source:  source,
		handles: make(map[string]string),
		trigger: make(chan struct{}, 1),
	}
}

// Run refreshes all status channels on a fixed interval and whenever
// Trigger fires, until the context is canceled.
func (m *StatusManager) Run(ctx context.Context) {
	ticker := time.NewTicker(statusRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshAll()
		case <-m.trigger:
			m.RefreshAll()
		}
	}
}

// Trigger requests an immediate refresh. Non-blocking; coalesces with a
// pending request.
func (m *StatusManager) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// RefreshAll refreshes the status message of every configured channel.
func (m *StatusManager) RefreshAll() {
	cfg := m.store.Current()
	info, _ := m.source.Info()
	for _, status := range cfg.StatusChannels {
		if status.Blank() {
			continue
		}
		m.refreshOne(cfg, status, info)
	}
}

func (m *StatusManager) refreshOne(cfg *config.Config, status config.StatusChannel, info gamechat.ServerInfo) {
	guild := m.svc.GuildByNameOrID(status.DiscordGuild)
	if guild == nil {
		return
	}
	channel := m.svc.ChannelByNameOrID(guild, status.DiscordChannel)
	if channel == nil {
		return
	}
	if !m.svc.HasChannelPermission(channel.ID, discordgo.PermissionReadMessageHistory) {
		return
	}

	embed := renderStatus(info, cfg, status.Components())
	// Re-evaluated every refresh; channel permissions can change.
	useEmbed := m.svc.HasChannelPermission(channel.ID, discordgo.PermissionEmbedLinks)
	key := status.LinkID()

	messageID, created := m.resolveMessage(key, channel.ID, embed, useEmbed)
	if messageID == "" || created {
		return
	}

	var err error
	if useEmbed {
		err = m.svc.EditEmbed(channel.ID, messageID, embed)
	} else {
		err = m.svc.EditMessage(channel.ID, messageID, embedToText(embed))
	}
	if errors.Is(err, ErrMessageMissing) {
		// Deleted between fetch and edit; next refresh recreates it.
		m.evict(key)
		return
	}
	if err != nil {
		m.log.Error().Err(err).Str("channel", channel.Name).Msg("Failed to edit status message")
	}
}

// resolveMessage returns the ID of the channel's status message, adopting an
// existing one by marker or creating a new one. created reports that the
// message was sent this refresh and needs no edit.
func (m *StatusManager) resolveMessage(key, channelID string, embed *discordgo.MessageEmbed, useEmbed bool) (messageID string, created bool) {
	if id, ok := m.handle(key); ok {
		_, err := m.svc.Message(channelID, id)
		switch {
		case err == nil:
			return id, false
		case errors.Is(err, ErrMessageMissing):
			m.evict(key)
		default:
			// Transient fetch failure: keep the cache entry, skip this
			// refresh.
			m.log.Warn().Err(err).Msg("Failed to fetch status message")
			return "", false
		}
	}

	recent, err := m.svc.RecentMessages(channelID, recentMessageScan)
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to scan for existing status message")
		return "", false
	}
	botID := m.svc.BotUserID()
	for _, msg := range recent {
		if msg.Author == nil || msg.Author.ID != botID {
			continue
		}
		if hasStatusMarker(msg) {
			m.setHandle(key, msg.ID)
			return msg.ID, false
		}
	}

	var sent *discordgo.Message
	if useEmbed {
		sent, err = m.svc.SendEmbed(channelID, embed)
	} else {
		sent, err = m.svc.SendMessage(channelID, embedToText(embed))
	}
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to create status message")
		return "", false
	}
	m.setHandle(key, sent.ID)
	return sent.ID, true
}

func hasStatusMarker(msg *discordgo.Message) bool {
	if strings.Contains(msg.Content, statusMarker) {
		return true
	}
	for _, embed := range msg.Embeds {
		if strings.Contains(embed.Title, statusMarker) {
			return true
		}
	}
	return false
}

func (m *StatusManager) handle(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.handles[key]
	return id, ok
}

func (m *StatusManager) setHandle(key, messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles[key] = messageID
}

func (m *StatusManager) evict(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, key)
}

// ClearCache drops every cached message handle. Called on reconnect and on
// token change, when cached IDs may no longer be valid.
func (m *StatusManager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = make(map[string]string)
}

// HandleCount returns the number of cached status message handles.
func (m *StatusManager) HandleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}
