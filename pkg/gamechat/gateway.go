// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package gamechat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// reconnectDelay is the wait between reconnection attempts after the feed
// drops.
const reconnectDelay = 5 * time.Second

// Gateway implements Source over the game server's websocket JSON feed.
type Gateway struct {
	url string
	log zerolog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	mu         sync.RWMutex
	chatSubs   map[int]func(ChatMessage)
	playerSubs map[int]func(PlayerEvent)
	nextSub    int
	info       *ServerInfo
	players    map[string]struct{}
	identity   *Identity

	stopOnce sync.Once
	stopChan chan struct{}
}

var _ Source = (*Gateway)(nil)

// NewGateway creates a gateway for the given websocket URL. Connect must be
// called before the gateway delivers any events.
func NewGateway(url string, log zerolog.Logger) *Gateway {
	return &Gateway{
		url:        url,
		log:        log.With().Str("component", "game_gateway").Logger(),
		chatSubs:   make(map[int]func(ChatMessage)),
		playerSubs: make(map[int]func(PlayerEvent)),
		players:    make(map[string]struct{}),
		stopChan:   make(chan struct{}),
	}
}

// frame is the wire envelope for the gateway feed. Exactly one payload field
// is set, selected by Type.
type frame struct {
	Type   string       `json:"type"`
	Chat   *chatFrame   `json:"chat,omitempty"`
	Player *playerFrame `json:"player,omitempty"`
	Info   *infoFrame   `json:"info,omitempty"`
	Roster []string     `json:"roster,omitempty"`
}

type chatFrame struct {
	Text     string `json:"text"`
	Sender   string `json:"sender"`
	SenderID string `json:"sender_id,omitempty"`
	Tag      string `json:"tag"`
}

type playerFrame struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type infoFrame struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	LogoURL       string   `json:"logo_url"`
	Address       string   `json:"address"`
	PlayerCount   int      `json:"player_count"`
	OnlinePlayers []string `json:"online_players"`
	WorldAgeSec   int64    `json:"world_age_sec"`
	MeteorSec     int64    `json:"meteor_sec"`
	MeteorHasHit  bool     `json:"meteor_has_hit"`
	WorldLeader   string   `json:"world_leader"`
}

// Connect dials the game server feed and starts the read loop. The read loop
// reconnects on its own until Close is called.
func (g *Gateway) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial game gateway: %w", err)
	}
	g.connMu.Lock()
	g.conn = conn
	g.connMu.Unlock()

	g.log.Info().Str("url", g.url).Msg("Connected to game gateway")
	go g.readLoop()
	return nil
}

func (g *Gateway) readLoop() {
	for {
		g.connMu.Lock()
		conn := g.conn
		g.connMu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-g.stopChan:
				return
			default:
			}
			g.log.Warn().Err(err).Msg("Game gateway read failed, reconnecting")
			g.reconnect()
			continue
		}
		g.handleFrame(data)
	}
}

func (g *Gateway) reconnect() {
	for {
		select {
		case <-g.stopChan:
			return
		case <-time.After(reconnectDelay):
		}

		conn, _, err := websocket.DefaultDialer.Dial(g.url, nil)
		if err != nil {
			g.log.Warn().Err(err).Msg("Game gateway reconnect failed")
			continue
		}
		g.connMu.Lock()
		g.conn = conn
		g.connMu.Unlock()
		g.log.Info().Msg("Game gateway reconnected")

		// Re-register the relay identity, the server may have restarted.
		g.mu.RLock()
		ident := g.identity
		g.mu.RUnlock()
		if ident != nil {
			if _, err := g.EnsureIdentity(ident.ID, ident.Name); err != nil {
				g.log.Warn().Err(err).Msg("Failed to re-register relay identity")
			}
		}
		return
	}
}

// handleFrame decodes one feed frame and dispatches it to subscribers.
func (g *Gateway) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		g.log.Warn().Err(err).Msg("Failed to decode gateway frame")
		return
	}

	switch f.Type {
	case "chat":
		if f.Chat == nil {
			return
		}
		g.dispatchChat(ChatMessage{
			Text:   f.Chat.Text,
			Sender: f.Chat.Sender,
			Tag:    f.Chat.Tag,
		})
	case "player":
		if f.Player == nil {
			return
		}
		evt := PlayerEvent{
			Kind:       PlayerEventKind(f.Player.Kind),
			PlayerID:   f.Player.ID,
			PlayerName: f.Player.Name,
		}
		g.mu.Lock()
		if evt.Kind == PlayerLeft {
			delete(g.players, evt.PlayerName)
		} else if evt.PlayerName != "" {
			g.players[evt.PlayerName] = struct{}{}
		}
		g.mu.Unlock()
		g.dispatchPlayer(evt)
	case "info":
		if f.Info == nil {
			return
		}
		info := ServerInfo{
			Name:            f.Info.Name,
			Description:     f.Info.Description,
			LogoURL:         f.Info.LogoURL,
			Address:         f.Info.Address,
			PlayerCount:     f.Info.PlayerCount,
			OnlinePlayers:   f.Info.OnlinePlayers,
			WorldAge:        time.Duration(f.Info.WorldAgeSec) * time.Second,
			MeteorCountdown: time.Duration(f.Info.MeteorSec) * time.Second,
			MeteorHasHit:    f.Info.MeteorHasHit,
			WorldLeader:     f.Info.WorldLeader,
		}
		g.mu.Lock()
		g.info = &info
		g.mu.Unlock()
	case "roster":
		g.mu.Lock()
		g.players = make(map[string]struct{}, len(f.Roster))
		for _, name := range f.Roster {
			g.players[name] = struct{}{}
		}
		g.mu.Unlock()
	default:
		g.log.Trace().Str("frame_type", f.Type).Msg("Unhandled gateway frame type")
	}
}

func (g *Gateway) dispatchChat(msg ChatMessage) {
	g.mu.RLock()
	subs := make([]func(ChatMessage), 0, len(g.chatSubs))
	for _, fn := range g.chatSubs {
		subs = append(subs, fn)
	}
	g.mu.RUnlock()
	for _, fn := range subs {
		fn(msg)
	}
}

func (g *Gateway) dispatchPlayer(evt PlayerEvent) {
	g.mu.RLock()
	subs := make([]func(PlayerEvent), 0, len(g.playerSubs))
	for _, fn := range g.playerSubs {
		subs = append(subs, fn)
	}
	g.mu.RUnlock()
	for _, fn := range subs {
		fn(evt)
	}
}

// SubscribeChat implements Source.
func (g *Gateway) SubscribeChat(fn func(ChatMessage)) func() {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.chatSubs[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.chatSubs, id)
		g.mu.Unlock()
	}
}

// SubscribePlayers implements Source.
func (g *Gateway) SubscribePlayers(fn func(PlayerEvent)) func() {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.playerSubs[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.playerSubs, id)
		g.mu.Unlock()
	}
}

// SendChat implements Source.
func (g *Gateway) SendChat(tag, text string, as Identity) error {
	return g.writeFrame(frame{
		Type: "chat",
		Chat: &chatFrame{
			Text:     text,
			Sender:   as.Name,
			SenderID: as.ID,
			Tag:      tag,
		},
	})
}

// EnsureIdentity implements Source. The server creates the identity if it
// does not exist; the call is idempotent.
func (g *Gateway) EnsureIdentity(id, name string) (Identity, error) {
	ident := Identity{ID: id, Name: name}
	err := g.writeFrame(frame{
		Type: "identity",
		Chat: &chatFrame{Sender: name, SenderID: id},
	})
	if err != nil {
		return Identity{}, err
	}
	g.mu.Lock()
	g.identity = &ident
	g.mu.Unlock()
	return ident, nil
}

// PlayerExists implements Source.
func (g *Gateway) PlayerExists(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.players[name]
	return ok
}

// Info implements Source.
func (g *Gateway) Info() (ServerInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.info == nil {
		return ServerInfo{}, false
	}
	return *g.info, true
}

func (g *Gateway) writeFrame(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode gateway frame: %w", err)
	}
	g.connMu.Lock()
	defer g.connMu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("game gateway is not connected")
	}
	if err := g.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write gateway frame: %w", err)
	}
	return nil
}

// Close stops the read loop and closes the connection. Safe to call more
// than once.
func (g *Gateway) Close() {
	g.stopOnce.Do(func() {
		close(g.stopChan)
	})
	g.connMu.Lock()
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
	g.connMu.Unlock()
}
