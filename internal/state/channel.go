package state

import (
	"github.com/rirc-go/rirc/internal/mode"
	"github.com/rirc-go/rirc/internal/ring"
	"github.com/rirc-go/rirc/internal/userlist"
)

// Activity is a channel's navigation-indicator level.
type Activity int

const (
	ActivityDefault Activity = iota
	ActivityActive
	ActivityPinged
)

// Channel is one joined (or parted-but-retained) channel: owning server,
// name, mode state, activity indicator, scrollback buffer, and member list.
//
// Grounded on original_source/src/channel.h's `struct channel`.
type Channel struct {
	Server *Server

	Name     string
	TypeFlag byte

	Modes mode.Vector

	Parted   bool
	Activity Activity

	Topic string

	Buffer *ring.Buffer
	Users  *userlist.List
}

func newChannel(s *Server, name string) *Channel {
	c := &Channel{
		Server: s,
		Name:   name,
		Buffer: ring.New(ring.LinesMax),
		Users:  userlist.New(s.fold),
	}
	if len(name) > 0 {
		c.TypeFlag = name[0]
	}
	return c
}

// Reopen clears the Parted flag and empties the member list, as a JOIN of
// self on an already-known (previously parted) channel does.
func (c *Channel) Reopen() {
	c.Parted = false
	c.Users = userlist.New(c.Server.fold)
}
