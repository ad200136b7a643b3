package irc

import "testing"

func TestIsWM(t *testing.T) {
	cases := []struct {
		wild, text string
		want       bool
	}{
		{"*!*@*.spammers.net", "troll!u@bad.spammers.net", true},
		{"*!*@*.spammers.net", "troll!u@example.com", false},
		{"troll", "TROLL", true},
		{"tro?l", "troll", true},
		{"tro?l", "troool", false},
		{"*", "anything", true},
		{"", "", true},
		{"", "x", false},
	}
	for _, c := range cases {
		if got := IsWM(c.wild, c.text); got != c.want {
			t.Errorf("IsWM(%q, %q) = %v, want %v", c.wild, c.text, got, c.want)
		}
	}
}

func TestMask(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"nick!user@host.example.com", "*!*user@*.example.com"},
		{"nick!user@localhost", "*!*user@*"},
		{"nick", "nick"},
	}
	for _, c := range cases {
		if got := Mask(c.in); got != c.want {
			t.Errorf("Mask(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
