// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package gamefmt converts game chat text into Discord-ready content:
// it strips game markup tags and rewrites @name and #channel indicators
// into Discord mention tokens.
package gamefmt

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	tagPattern = regexp.MustCompile(`<[^>]*>`)
	// A mention token is an @ or # sigil followed by everything up to the
	// next whitespace, sigil or end of text.
	mentionPattern = regexp.MustCompile(`[@#][^\s@#]+`)
)

// StripTags removes all <...> game markup tags from the text.
func StripTags(text string) string {
	return tagPattern.ReplaceAllString(text, "")
}

// Bold wraps text in game bold markup.
func Bold(text string) string {
	return "<b>" + text + "</b>"
}

// Color wraps text in game color markup. The color is a hex RGB string
// without a leading #.
func Color(color, text string) string {
	return "<color=#" + color + ">" + text + "</color>"
}

// Candidate is a mentionable Discord entity: a display name paired with the
// mention token Discord renders as a ping.
type Candidate struct {
	Name    string
	Mention string
}

// Directory supplies the ordered candidate lists mention tokens resolve
// against. Order matters: the first matching candidate wins.
type Directory struct {
	Roles    []Candidate
	Members  []Candidate
	Channels []Candidate
}

// MentionOptions gates which candidate kinds a token may resolve to,
// typically taken from the channel link's allow flags.
type MentionOptions struct {
	Users    bool
	Roles    bool
	Channels bool
}

// Format renders a game chat message for Discord. Markup tags are stripped,
// a non-empty sender becomes a bold "**sender**: " prefix, and @name/#channel
// tokens are resolved against the directory. Unresolvable tokens pass through
// verbatim.
func Format(text, sender string, opts MentionOptions, dir Directory) string {
	text = StripTags(text)
	text = resolveMentions(text, opts, dir)
	if sender != "" {
		// The sender name must not itself ping anyone.
		sender = strings.ReplaceAll(sender, "@", "")
		text = "**" + sender + "**: " + text
	}
	return text
}

func resolveMentions(text string, opts MentionOptions, dir Directory) string {
	if !strings.ContainsAny(text, "@#") {
		return text
	}
	return mentionPattern.ReplaceAllStringFunc(text, func(token string) string {
		sigil, body := token[:1], token[1:]
		var candidates []Candidate
		switch sigil {
		case "@":
			// Roles take precedence over members with the same name.
			if opts.Roles {
				candidates = append(candidates, dir.Roles...)
			}
			if opts.Users {
				candidates = append(candidates, dir.Members...)
			}
		case "#":
			if opts.Channels {
				candidates = dir.Channels
			}
		}
		runes := []rune(body)
		lower := make([]rune, len(runes))
		for i, r := range runes {
			lower[i] = unicode.ToLower(r)
		}
		for _, c := range candidates {
			name := lowerRunes(c.Name)
			if len(name) == 0 {
				continue
			}
			if idx := runeIndex(lower, name); idx >= 0 {
				// Keep whatever surrounds the matched name, e.g. the
				// possessive in "@bob's".
				return string(runes[:idx]) + c.Mention + string(runes[idx+len(name):])
			}
		}
		return token
	})
}

// lowerRunes lowercases rune by rune. strings.ToLower can change the byte
// and rune length for special mappings, which would misalign match offsets
// against the original text.
func lowerRunes(s string) []rune {
	rs := []rune(s)
	for i, r := range rs {
		rs[i] = unicode.ToLower(r)
	}
	return rs
}

func runeIndex(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		j := 0
		for j < len(needle) && haystack[i+j] == needle[j] {
			j++
		}
		if j == len(needle) {
			return i
		}
	}
	return -1
}
