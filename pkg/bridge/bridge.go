// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package bridge contains the relay engine: bidirectional chat forwarding,
// channel link verification and the live status message manager, wired to a
// Discord session and a game chat source.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ecolink/ecolink/pkg/chatlog"
	"github.com/ecolink/ecolink/pkg/config"
	"github.com/ecolink/ecolink/pkg/gamechat"
)

// Connection status strings, surfaced through Status.
const (
	StatusConnecting = "Attempting connection..."
	StatusConnected  = "Connection successful"
	StatusFailed     = "Connection failed"
)

const (
	// staticVerifyDelay orders the static verification report after the
	// connection log lines.
	staticVerifyDelay = 5 * time.Second
	// readyRefreshDelay is how soon after readiness the first status
	// refresh runs.
	readyRefreshDelay = 3 * time.Second
)

// relayIdentityName is the display name of the synthetic game participant
// that externally sourced messages are posted under.
const (
	relayIdentityID   = "discord-relay"
	relayIdentityName = "Discord"
)

// Bridge owns the Discord session and the component lifecycles. Restart
// tears everything down in a fixed order before reconnecting.
type Bridge struct {
	log     zerolog.Logger
	store   *config.Store
	source  gamechat.Source
	chatlog *chatlog.Logger

	runCtx context.Context

	mu           sync.Mutex
	dg           *discordgo.Session
	svc          chatService
	relay        *Relay
	verifier     *Verifier
	status       *StatusManager
	statusCancel context.CancelFunc
	relayActive  bool
	unsubscribe  []func()
	identity     gamechat.Identity
	connStatus   string
}

// New wires a bridge to its collaborators. Run must be called to connect.
func New(log zerolog.Logger, store *config.Store, source gamechat.Source, clog *chatlog.Logger) *Bridge {
	b := &Bridge{
		log:     log.With().Str("component", "bridge").Logger(),
		store:   store,
		source:  source,
		chatlog: clog,
	}
	store.OnTokenChanged(func(string, string) {
		if err := b.Restart(); err != nil {
			b.log.Error().Err(err).Msg("Failed to restart after token change")
		}
	})
	store.OnChatlogChanged(func(cfg *config.Config) {
		clog.Configure(cfg.LogChat, cfg.ChatlogPath)
	})
	store.OnLinksChanged(func(*config.Config) {
		b.mu.Lock()
		verifier, status := b.verifier, b.status
		b.mu.Unlock()
		if verifier != nil {
			verifier.VerifyChannelLinks()
		}
		if status != nil {
			status.Trigger()
		}
	})
	return b
}

// Status returns the last connection status string.
func (b *Bridge) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connStatus
}

func (b *Bridge) setStatus(s string) {
	b.mu.Lock()
	b.connStatus = s
	b.mu.Unlock()
	b.log.Info().Msg(s)
}

// Run connects to Discord and relays until the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	b.runCtx = ctx

	identity, err := b.source.EnsureIdentity(relayIdentityID, relayIdentityName)
	if err != nil {
		return fmt.Errorf("failed to register relay identity: %w", err)
	}
	b.mu.Lock()
	b.identity = identity
	b.mu.Unlock()

	cfg := b.store.Current()
	b.chatlog.Configure(cfg.LogChat, cfg.ChatlogPath)

	if err := b.connect(); err != nil {
		return err
	}

	<-ctx.Done()
	b.teardown()
	return nil
}

// connect builds the session, the components and the subscriptions. Callers
// must have torn down any previous session first.
func (b *Bridge) connect() error {
	b.setStatus(StatusConnecting)

	cfg := b.store.Current()
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		b.setStatus(StatusFailed)
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent
	dg.StateEnabled = true

	svc := &session{s: dg}
	verifier := newVerifier(b.log, b.store, svc, b.source)
	status := newStatusManager(b.log, b.store, svc, b.source)
	relay := newRelay(b.log, b.store, svc, b.source, b.chatlog, b.identity, status.Trigger)

	var removers []func()
	removers = append(removers,
		dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) {
			b.log.Info().Msg("Discord session ready")
			time.AfterFunc(staticVerifyDelay, verifier.RunStatic)
			verifier.StartTimeout(verificationTimeout)
			time.AfterFunc(readyRefreshDelay, status.Trigger)
		}),
		dg.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
			b.log.Debug().Str("guild", g.Name).Msg("Guild available")
			verifier.VerifyChannelLinks()
		}),
		dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			relay.HandleDiscordMessage(m)
		}),
		dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
			b.log.Warn().Msg("Discord session disconnected")
			status.ClearCache()
		}),
	)

	if err := dg.Open(); err != nil {
		b.setStatus(StatusFailed)
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	statusCtx, statusCancel := context.WithCancel(b.runCtx)
	go status.Run(statusCtx)

	b.mu.Lock()
	b.dg = dg
	b.svc = svc
	b.relay = relay
	b.verifier = verifier
	b.status = status
	b.statusCancel = statusCancel
	b.unsubscribe = removers
	b.mu.Unlock()

	b.subscribeGame()
	b.setStatus(StatusConnected)
	return nil
}

// subscribeGame attaches the relay to the game chat source. The relayActive
// flag guards against duplicate registration across restarts.
func (b *Bridge) subscribeGame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.relayActive {
		return
	}
	relay, status := b.relay, b.status
	removeChat := b.source.SubscribeChat(relay.HandleGameMessage)
	removePlayers := b.source.SubscribePlayers(func(gamechat.PlayerEvent) {
		status.Trigger()
	})
	b.unsubscribe = append(b.unsubscribe, removeChat, removePlayers)
	b.relayActive = true
}

// teardown stops the components and closes the session. The order is
// mandatory: timers first, then cached state, then subscriptions, then the
// awaited disconnect.
func (b *Bridge) teardown() {
	b.mu.Lock()
	statusCancel := b.statusCancel
	verifier := b.verifier
	status := b.status
	unsubscribe := b.unsubscribe
	dg := b.dg
	b.statusCancel = nil
	b.unsubscribe = nil
	b.relayActive = false
	b.dg = nil
	b.mu.Unlock()

	if statusCancel != nil {
		statusCancel()
	}
	if verifier != nil {
		verifier.Reset()
	}
	if status != nil {
		status.ClearCache()
	}
	for _, remove := range unsubscribe {
		remove()
	}
	if dg != nil {
		// Close blocks until the websocket is fully shut down, so no send
		// can race the reconnect.
		if err := dg.Close(); err != nil {
			b.log.Warn().Err(err).Msg("Error closing Discord session")
		}
	}
}

// Restart tears the session down and reconnects with the current
// configuration. Used when the bot token changes.
func (b *Bridge) Restart() error {
	b.log.Info().Msg("Restarting Discord client")
	b.teardown()
	return b.connect()
}
