// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"strings"
	"testing"
	"time"

	"github.com/ecolink/ecolink/pkg/config"
	"github.com/ecolink/ecolink/pkg/gamechat"
)

func fullInfo() gamechat.ServerInfo {
	return gamechat.ServerInfo{
		Name:            "Test Server",
		Description:     "A test world",
		LogoURL:         "https://example.com/logo.png",
		Address:         "game.example.com:3000",
		PlayerCount:     2,
		OnlinePlayers:   []string{"alice", "bob"},
		WorldAge:        26*time.Hour + 30*time.Minute,
		MeteorCountdown: 90 * time.Minute,
		WorldLeader:     "alice",
	}
}

func allComponents() config.ComponentFlags {
	return config.StatusChannel{
		UseName: true, UseDescription: true, UseLogo: true, UseAddress: true,
		UsePlayerCount: true, UsePlayerList: true, UseTimeSinceStart: true,
		UseTimeRemaining: true, UseMeteorHasHit: true, UseWorldLeader: true,
	}.Components()
}

func TestRenderStatusComponents(t *testing.T) {
	t.Parallel()
	embed := renderStatus(fullInfo(), &config.Config{}, allComponents())

	if want := statusMarker + " - Test Server"; embed.Title != want {
		t.Errorf("title: got %q, want %q", embed.Title, want)
	}
	if embed.Description != "A test world" {
		t.Errorf("description: got %q", embed.Description)
	}
	if embed.Thumbnail == nil || embed.Thumbnail.URL != "https://example.com/logo.png" {
		t.Errorf("thumbnail: got %+v", embed.Thumbnail)
	}

	fields := make(map[string]string, len(embed.Fields))
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	if fields["Server Address"] != "game.example.com:3000" {
		t.Errorf("address field: got %q", fields["Server Address"])
	}
	if fields["Online Players"] != "2" {
		t.Errorf("player count field: got %q", fields["Online Players"])
	}
	if fields["Player List"] != "alice\nbob" {
		t.Errorf("player list field: got %q", fields["Player List"])
	}
	if fields["Time Since World Start"] != "1 days 2:30" {
		t.Errorf("world age field: got %q", fields["Time Since World Start"])
	}
	if fields["Time Until Meteor"] != "1:30" {
		t.Errorf("meteor field: got %q", fields["Time Until Meteor"])
	}
	if fields["World Leader"] != "alice" {
		t.Errorf("leader field: got %q", fields["World Leader"])
	}
}

func TestRenderStatusFiltersByFlags(t *testing.T) {
	t.Parallel()
	flags := config.StatusChannel{UsePlayerCount: true}.Components()
	embed := renderStatus(fullInfo(), &config.Config{}, flags)

	if embed.Title != statusMarker {
		t.Errorf("title without name component: got %q", embed.Title)
	}
	if embed.Description != "" || embed.Thumbnail != nil {
		t.Error("unselected components must be absent")
	}
	if len(embed.Fields) != 1 || embed.Fields[0].Name != "Online Players" {
		t.Errorf("fields: got %+v", embed.Fields)
	}
}

func TestRenderStatusConfigOverrides(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		ServerName:    "Configured Name",
		ServerAddress: "configured.example.com",
	}
	embed := renderStatus(fullInfo(), cfg, allComponents())

	if want := statusMarker + " - Configured Name"; embed.Title != want {
		t.Errorf("title: got %q, want %q", embed.Title, want)
	}
	for _, f := range embed.Fields {
		if f.Name == "Server Address" && f.Value != "configured.example.com" {
			t.Errorf("address: got %q", f.Value)
		}
	}
}

func TestRenderStatusMeteorHit(t *testing.T) {
	t.Parallel()
	info := fullInfo()
	info.MeteorHasHit = true
	embed := renderStatus(info, &config.Config{}, allComponents())

	fields := make(map[string]string)
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	if fields["Time Until Meteor"] != "0:00" {
		t.Errorf("countdown after hit: got %q", fields["Time Until Meteor"])
	}
	if fields["Meteor Status"] != "The meteor has hit!" {
		t.Errorf("meteor status: got %q", fields["Meteor Status"])
	}
}

func TestEmbedToText(t *testing.T) {
	t.Parallel()
	embed := renderStatus(fullInfo(), &config.Config{}, allComponents())
	text := embedToText(embed)

	if !strings.HasPrefix(text, "**"+statusMarker+" - Test Server**") {
		t.Errorf("text should start with the bolded title: %q", text)
	}
	for _, fragment := range []string{"A test world", "**Player List**", "alice\nbob", "**World Leader**"} {
		if !strings.Contains(text, fragment) {
			t.Errorf("flattened text missing %q: %q", fragment, text)
		}
	}
	if strings.HasSuffix(text, "\n") {
		t.Error("flattened text should not end with a newline")
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Hour, "0:00"},
		{5 * time.Minute, "0:05"},
		{90 * time.Minute, "1:30"},
		{24 * time.Hour, "1 days 0:00"},
		{50*time.Hour + 12*time.Minute, "2 days 2:12"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
