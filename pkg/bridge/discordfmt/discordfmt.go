// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package discordfmt converts Discord message content into readable game
// chat text by replacing raw mention tokens with the display names from the
// message's structured mention lists.
package discordfmt

import "regexp"

var (
	userPattern    = regexp.MustCompile(`<@!?(\d+)>`)
	rolePattern    = regexp.MustCompile(`<@&(\d+)>`)
	channelPattern = regexp.MustCompile(`<#(\d+)>`)
)

// Mentions maps the IDs carried by a Discord message to display names.
// Only IDs present here are rewritten; resolution is by ID, never by
// searching names in the text.
type Mentions struct {
	Users    map[string]string
	Roles    map[string]string
	Channels map[string]string
}

// Readable replaces <@id>, <@!id>, <@&id> and <#id> tokens with
// @displayName, @roleName and #channelName. Tokens whose ID is not in the
// mention lists are left verbatim.
func Readable(content string, mentions Mentions) string {
	content = replace(content, rolePattern, mentions.Roles, "@")
	content = replace(content, userPattern, mentions.Users, "@")
	content = replace(content, channelPattern, mentions.Channels, "#")
	return content
}

func replace(content string, pattern *regexp.Regexp, names map[string]string, sigil string) string {
	if len(names) == 0 {
		return content
	}
	return pattern.ReplaceAllStringFunc(content, func(token string) string {
		id := pattern.FindStringSubmatch(token)[1]
		if name, ok := names[id]; ok {
			return sigil + name
		}
		return token
	})
}
