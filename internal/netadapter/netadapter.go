// Package netadapter wires the root irc package's Client (the dial/scan/
// write network layer) to the protocol and state core in internal/state. It
// is a package of its own because internal/state imports the root package
// for Message, so the root package cannot import internal/state without an
// import cycle; the bridge sits beside internal/state under internal/.
package netadapter

import (
	"context"
	"encoding"

	irc "github.com/rirc-go/rirc"
	"github.com/rirc-go/rirc/internal/state"
)

// Run copies srv's nick, username, realname, password and host:port onto
// client, dials, and feeds every parsed Message into state.Dispatch against srv, until ctx is
// cancelled or the connection ends. It registers itself as srv.Conn so that
// routines (PING replies, CTCP replies, MODE echoes) can write back.
func Run(ctx context.Context, client *irc.Client, srv *state.Server) error {
	conn := &connAdapter{client: client}
	srv.Conn = conn

	handler := irc.HandlerFunc(func(_ irc.MessageWriter, m *irc.Message) {
		state.Dispatch(srv, m)
	})

	client.Nickname = srv.Nick
	client.User = srv.Username
	client.Realname = srv.Realname
	client.Pass = srv.Pass
	client.Addr = srv.Host + ":" + srv.Port

	return client.ConnectAndRun(ctx, handler)
}

// connAdapter satisfies state.Conn by forwarding writes to the underlying
// irc.Client and tracking whether a disconnect has been requested so a
// second QUIT is never sent.
type connAdapter struct {
	client       *irc.Client
	disconnected bool
}

func (c *connAdapter) WriteMessage(m encoding.TextMarshaler) error {
	return c.client.WriteMessage(m)
}

func (c *connAdapter) Disconnect() {
	if c.disconnected {
		return
	}
	c.disconnected = true
	_ = c.client.WriteMessage(irc.Quit("disconnecting"))
}
