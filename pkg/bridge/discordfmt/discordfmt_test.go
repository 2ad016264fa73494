// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package discordfmt

import "testing"

func TestReadable(t *testing.T) {
	t.Parallel()
	mentions := Mentions{
		Users:    map[string]string{"123": "alice", "124": "bob"},
		Roles:    map[string]string{"900": "admins"},
		Channels: map[string]string{"500": "general"},
	}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no mentions here", "no mentions here"},
		{"user", "hey <@123>", "hey @alice"},
		{"nickname form", "hey <@!124>", "hey @bob"},
		{"role", "ping <@&900> please", "ping @admins please"},
		{"channel", "rules in <#500>", "rules in #general"},
		{"mixed", "<@123> see <#500> and <@&900>", "@alice see #general and @admins"},
		{"unknown id verbatim", "ghost <@999> here", "ghost <@999> here"},
		{"unknown channel verbatim", "see <#501>", "see <#501>"},
		{"malformed token verbatim", "weird <@abc> token", "weird <@abc> token"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Readable(tt.in, mentions); got != tt.want {
				t.Errorf("Readable(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReadableEmptyMentions(t *testing.T) {
	t.Parallel()
	in := "untouched <@123> and <#500>"
	if got := Readable(in, Mentions{}); got != in {
		t.Errorf("Readable with empty mentions = %q, want %q", got, in)
	}
}
