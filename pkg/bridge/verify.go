// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecolink/ecolink/pkg/config"
	"github.com/ecolink/ecolink/pkg/gamechat"
)

// verificationTimeout is how long after readiness the unverified-links
// report fires.
const verificationTimeout = 15 * time.Second

// Verifier confirms that the configuration resolves against live platform
// data. The verified set is additive until Reset; re-running a pass never
// double-counts or re-logs a link.
type Verifier struct {
	log    zerolog.Logger
	store  *config.Store
	svc    chatService
	source gamechat.Source

	mu             sync.Mutex
	verified       map[string]struct{}
	completeLogged bool
	timer          *time.Timer
}

func newVerifier(log zerolog.Logger, store *config.Store, svc chatService, source gamechat.Source) *Verifier {
	return &Verifier{
		log:      log.With().Str("component", "verify").Logger(),
		store:    store,
		svc:      svc,
		source:   source,
		verified: make(map[string]struct{}),
	}
}

// RunStatic validates configuration invariants that need no live platform
// data. Failures are batched into a single report. The configuration is
// never mutated.
func (v *Verifier) RunStatic() {
	cfg := v.store.Current()
	var problems []string

	if cfg.ServerAddress != "" && !validServerAddress(cfg.ServerAddress) {
		problems = append(problems, "server address \""+cfg.ServerAddress+"\" is not a valid IP or host:port")
	}
	if strings.Contains(cfg.GameCommandChannel, "#") {
		problems = append(problems, "game command channel \""+cfg.GameCommandChannel+"\" must not contain a # character")
	}
	if !strings.Contains(cfg.InviteMessage, config.InviteLinkToken) {
		problems = append(problems, "invite message does not contain the link token "+config.InviteLinkToken)
	}
	for _, player := range cfg.Players {
		if player.Username == "" {
			continue
		}
		if !v.source.PlayerExists(player.Username) {
			problems = append(problems, "player config references unknown player \""+player.Username+"\"")
		}
	}

	if len(problems) == 0 {
		v.log.Info().Msg("Static configuration verification passed")
		return
	}
	v.log.Error().Msg("Static configuration verification failed:\n - " + strings.Join(problems, "\n - "))
}

// VerifyChannelLinks resolves every non-blank chat link and status channel
// against the guild directory, adding newly verified link IDs to the set.
// Safe to run repeatedly; typically invoked per guild-available signal.
func (v *Verifier) VerifyChannelLinks() {
	cfg := v.store.Current()

	for _, link := range cfg.ChatLinks {
		if !link.Blank() && v.resolves(link.DiscordGuild, link.DiscordChannel) {
			v.markVerified(link.LinkID())
		}
	}
	for _, status := range cfg.StatusChannels {
		if !status.Blank() && v.resolves(status.DiscordGuild, status.DiscordChannel) {
			v.markVerified(status.LinkID())
		}
	}

	v.mu.Lock()
	complete := cfg.ConfiguredLinkCount() > 0 &&
		len(v.verified) >= cfg.ConfiguredLinkCount() &&
		!v.completeLogged
	if complete {
		v.completeLogged = true
	}
	v.mu.Unlock()
	if complete {
		v.log.Info().Msg("All channel links verified")
	}
}

func (v *Verifier) resolves(guildNameOrID, channelNameOrID string) bool {
	guild := v.svc.GuildByNameOrID(guildNameOrID)
	if guild == nil {
		return false
	}
	return v.svc.ChannelByNameOrID(guild, channelNameOrID) != nil
}

func (v *Verifier) markVerified(linkID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.verified[linkID]; ok {
		return
	}
	v.verified[linkID] = struct{}{}
	v.log.Info().Msg("Channel link verified: " + linkID)
}

// VerifiedCount returns the size of the verified set.
func (v *Verifier) VerifiedCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.verified)
}

// StartTimeout arms the one-shot unverified-links report. An already armed
// timer is replaced.
func (v *Verifier) StartTimeout(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer != nil {
		v.timer.Stop()
	}
	v.timer = time.AfterFunc(d, v.reportUnverified)
}

// reportUnverified emits one consolidated report naming every configured
// link missing from the verified set. Suppressed when verification is
// complete.
func (v *Verifier) reportUnverified() {
	cfg := v.store.Current()

	v.mu.Lock()
	var missing []string
	for _, link := range cfg.ChatLinks {
		if !link.Blank() {
			if _, ok := v.verified[link.LinkID()]; !ok {
				missing = append(missing, link.LinkID())
			}
		}
	}
	for _, status := range cfg.StatusChannels {
		if !status.Blank() {
			if _, ok := v.verified[status.LinkID()]; !ok {
				missing = append(missing, status.LinkID())
			}
		}
	}
	v.mu.Unlock()

	if len(missing) == 0 {
		return
	}
	v.log.Error().Msg("Failed to verify channel links:\n - " + strings.Join(missing, "\n - "))
}

// Reset stops the pending timeout and clears the verified set. Called on
// client restart.
func (v *Verifier) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.verified = make(map[string]struct{})
	v.completeLogged = false
}

// validServerAddress accepts a bare IP, a hostname, or a host:port pair.
func validServerAddress(address string) bool {
	if net.ParseIP(address) != nil {
		return true
	}
	host, port, err := net.SplitHostPort(address)
	if err == nil {
		if _, perr := strconv.Atoi(port); perr != nil {
			return false
		}
		return host != "" && !strings.ContainsAny(host, " /")
	}
	// A plain hostname: no spaces, at least one non-digit label.
	return !strings.ContainsAny(address, " :/")
}
