// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ecolink/ecolink/pkg/config"
)

// logBuffer is a concurrency-safe log sink for assertions.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestVerifier(cfg *config.Config, svc *fakeService, source *fakeSource) (*Verifier, *logBuffer) {
	buf := &logBuffer{}
	return newVerifier(zerolog.New(buf), testStore(cfg), svc, source), buf
}

func TestVerifyAllLinksResolve(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	v, buf := newTestVerifier(cfg, newFakeService(), newFakeSource())

	v.VerifyChannelLinks()

	if got, want := v.VerifiedCount(), cfg.ConfiguredLinkCount(); got != want {
		t.Errorf("verified count: got %d, want %d", got, want)
	}
	if !strings.Contains(buf.String(), "All channel links verified") {
		t.Errorf("missing completion log, got: %s", buf.String())
	}

	v.reportUnverified()
	if strings.Contains(buf.String(), "Failed to verify") {
		t.Errorf("complete verification must suppress the report, got: %s", buf.String())
	}
}

func TestVerifyMissingLinkReported(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.ChatLinks = append(cfg.ChatLinks, config.ChannelLink{
		DiscordGuild:   "Test Guild",
		DiscordChannel: "no-such-channel",
		GameChannel:    "Trade",
	})
	v, buf := newTestVerifier(cfg, newFakeService(), newFakeSource())

	v.VerifyChannelLinks()
	v.reportUnverified()

	if got, want := v.VerifiedCount(), cfg.ConfiguredLinkCount()-1; got != want {
		t.Errorf("verified count: got %d, want %d", got, want)
	}
	out := buf.String()
	if !strings.Contains(out, "Failed to verify channel links") {
		t.Fatalf("missing unverified report, got: %s", out)
	}
	missingID := cfg.ChatLinks[1].LinkID()
	if !strings.Contains(out, missingID) {
		t.Errorf("report should name %q, got: %s", missingID, out)
	}
	if verifiedID := cfg.ChatLinks[0].LinkID(); strings.Contains(
		strings.SplitN(out, "Failed to verify", 2)[1], verifiedID) {
		t.Errorf("report must not name verified link %q, got: %s", verifiedID, out)
	}
}

func TestVerifyRepeatPassLogsOnce(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	v, buf := newTestVerifier(cfg, newFakeService(), newFakeSource())

	v.VerifyChannelLinks()
	v.VerifyChannelLinks()

	if got := strings.Count(buf.String(), "Channel link verified"); got != cfg.ConfiguredLinkCount() {
		t.Errorf("verified log lines: got %d, want %d", got, cfg.ConfiguredLinkCount())
	}
	if got := strings.Count(buf.String(), "All channel links verified"); got != 1 {
		t.Errorf("completion log lines: got %d, want 1", got)
	}
	if got, want := v.VerifiedCount(), cfg.ConfiguredLinkCount(); got != want {
		t.Errorf("verified count after repeat: got %d, want %d", got, want)
	}

	// A full reset starts a new session; completion may be logged again.
	v.Reset()
	v.VerifyChannelLinks()
	if got := strings.Count(buf.String(), "All channel links verified"); got != 2 {
		t.Errorf("completion log lines after reset: got %d, want 2", got)
	}
}

func TestVerifyResetClearsSet(t *testing.T) {
	t.Parallel()
	v, _ := newTestVerifier(testConfig(), newFakeService(), newFakeSource())

	v.VerifyChannelLinks()
	v.Reset()

	if got := v.VerifiedCount(); got != 0 {
		t.Errorf("verified count after reset: got %d, want 0", got)
	}
}

func TestStaticVerificationPasses(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.ServerAddress = "play.example.com:3000"
	source := newFakeSource()
	source.players["alice"] = true
	cfg.Players = []config.PlayerConfig{{Username: "alice"}}
	v, buf := newTestVerifier(cfg, newFakeService(), source)

	v.RunStatic()

	if !strings.Contains(buf.String(), "Static configuration verification passed") {
		t.Errorf("expected pass log, got: %s", buf.String())
	}
}

func TestStaticVerificationBatchedReport(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.ServerAddress = "not a valid : address"
	cfg.GameCommandChannel = "#General"
	cfg.InviteMessage = "join us"
	cfg.Players = []config.PlayerConfig{{Username: "ghost"}}
	v, buf := newTestVerifier(cfg, newFakeService(), newFakeSource())

	v.RunStatic()

	out := buf.String()
	if got := strings.Count(out, "Static configuration verification failed"); got != 1 {
		t.Fatalf("failure reports: got %d, want 1 batched report: %s", got, out)
	}
	for _, fragment := range []string{"server address", "command channel", "link token", "ghost"} {
		if !strings.Contains(out, fragment) {
			t.Errorf("report missing %q: %s", fragment, out)
		}
	}
}

func TestValidServerAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr string
		want bool
	}{
		{"192.168.0.1", true},
		{"play.example.com:3000", true},
		{"play.example.com", true},
		{"2001:db8::1", true},
		{"not a host", false},
		{"host:", false},
	}
	for _, tt := range tests {
		if got := validServerAddress(tt.addr); got != tt.want {
			t.Errorf("validServerAddress(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
