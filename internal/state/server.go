// Package state implements the protocol and state core: Server and Channel,
// the handler dispatcher, and the per-command routines that mutate them in
// response to parsed messages from the root irc package.
//
// Grounded on original_source/src/components/server.h (field layout,
// nick_set rotation) and src/channel.h (Channel field layout), plus the
// teacher's router.go/handlers.go for the dispatch shape.
package state

import (
	"time"

	"github.com/rs/xid"
	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	irc "github.com/rirc-go/rirc"
	"github.com/rirc-go/rirc/internal/casemap"
	"github.com/rirc-go/rirc/internal/mode"
	"github.com/rirc-go/rirc/internal/userlist"
)

// Conn is the narrow contract the state layer needs from the network I/O
// layer: send a formatted line and report any write failure, and tear the
// connection down on request. The full connection lifecycle (dial, TLS,
// reconnect/backoff) is an external collaborator and is intentionally not
// modeled here.
type Conn interface {
	irc.MessageWriter
	Disconnect()
}

// Server is the connection-scoped state for one remote IRC connection:
// desired identity, nick rotation, joined channels, ignore list, active
// usermode vector, and ISUPPORT-derived Config.
type Server struct {
	Host     string
	Port     string
	Pass     string
	Username string
	Realname string

	Nick string

	nicks    []string
	nickNext int

	Conn Conn

	CaseMapping casemap.Mapping
	ModeConfig  mode.Config
	UserModes   mode.Vector

	// Ignore holds nick/hostmask wildcard patterns (e.g. "troll",
	// "*!*@*.spammers.net"); see Ignored.
	Ignore *userlist.List

	// channels is the insertion-ordered navigation list of joined channels;
	// chanByName indexes it by mapped name in a plain Go map.
	channels   []*Channel
	chanByName map[string]*Channel

	// Console is the server's own status window — original_source's
	// `struct channel *channel` field on `struct server` — where
	// recoverable errors and server-wide notices are written. It is never
	// part of the channels navigation ring.
	Console *Channel

	Registered bool // true once 001 (RPL_WELCOME) has latched Nick

	latencyMu  deadlock.Mutex
	pingSentAt time.Time
	pingToken  string
	Latency    time.Duration

	Log *logrus.Entry
}

// NewServer returns a Server with the given connection parameters and
// preferred nick list (tried in order; server_nicks_next rotates through
// them and then appends "_" once exhausted, mirroring
// original_source/src/components/server.h's nick_set).
func NewServer(host, port, pass, username, realname string, nicks []string, conn Conn) *Server {
	if len(nicks) == 0 {
		fatal("state: NewServer requires at least one preferred nick")
	}
	s := &Server{
		Host:        host,
		Port:        port,
		Pass:        pass,
		Username:    username,
		Realname:    realname,
		nicks:       append([]string(nil), nicks...),
		Conn:        conn,
		CaseMapping: casemap.Default,
		ModeConfig:  mode.Default(),
		chanByName:  map[string]*Channel{},
		Log:         logrus.WithField("server", host),
	}
	s.Ignore = userlist.New(s.fold)
	s.Nick = s.nicks[0]
	s.Console = newChannel(s, host)
	trackedEntities.WithLabelValues("server").Inc()
	return s
}

func (s *Server) fold(str string) string {
	return s.CaseMapping.FoldString(str)
}

// NicksNext advances the rotation cursor and sets Nick to the next
// preferred nick, or appends "_" to the current nick once the preferred
// set is exhausted — matching original_source's server_nicks_next.
func (s *Server) NicksNext() {
	s.nickNext++
	if s.nickNext < len(s.nicks) {
		s.Nick = s.nicks[s.nickNext]
		return
	}
	s.Nick = s.Nick + "_"
}

// NicksReset rewinds the rotation cursor to the first preferred nick,
// matching original_source's server_nicks_reset (used on reconnect).
func (s *Server) NicksReset() {
	s.nickNext = 0
	s.Nick = s.nicks[0]
}

// Ignored reports whether src matches an entry in s.Ignore. Each stored
// pattern is tried as a wildcard against both the bare nick and the full
// nick!user@host mask, so a plain nick entry ("troll") and a hostmask
// entry ("*!*@*.spammers.net") both work without special-casing which form
// was added.
func (s *Server) Ignored(src irc.Prefix) bool {
	if s.Ignore.Len() == 0 {
		return false
	}
	nick := src.Nick.String()
	mask := src.String()
	for _, u := range s.Ignore.Entries() {
		if irc.IsWM(u.Nick, nick) || irc.IsWM(u.Nick, mask) {
			return true
		}
	}
	return false
}

// IsChanType reports whether b is one of the server's CHANTYPES sigils.
func (s *Server) IsChanType(b byte) bool {
	for i := 0; i < len(s.ModeConfig.ChanTypes); i++ {
		if s.ModeConfig.ChanTypes[i] == b {
			return true
		}
	}
	return false
}

// Channel returns the channel named name (mapped), or nil.
func (s *Server) Channel(name string) *Channel {
	return s.chanByName[s.fold(name)]
}

// Channels returns every channel in insertion order.
func (s *Server) Channels() []*Channel {
	return s.channels
}

// AddChannel creates and registers a new channel, or returns the existing
// one if name is already present (mapped).
func (s *Server) AddChannel(name string) *Channel {
	key := s.fold(name)
	if c, ok := s.chanByName[key]; ok {
		return c
	}
	c := newChannel(s, name)
	s.channels = append(s.channels, c)
	s.chanByName[key] = c
	trackedEntities.WithLabelValues("channel").Inc()
	return c
}

// RemoveChannel deletes a channel entirely, as opposed to a PART which
// merely marks it parted and retains it for scrollback/rejoin.
func (s *Server) RemoveChannel(name string) {
	key := s.fold(name)
	c, ok := s.chanByName[key]
	if !ok {
		return
	}
	delete(s.chanByName, key)
	for i, ch := range s.channels {
		if ch == c {
			s.channels = append(s.channels[:i], s.channels[i+1:]...)
			break
		}
	}
	trackedEntities.WithLabelValues("channel").Dec()
}

// SendPing issues a PING carrying a unique rs/xid nonce and records the
// send time, so that the matching PONG can be used to compute Latency. A
// write failure is reported to the console buffer the same way a Routine's
// returned error would be, since SendPing is normally driven by a
// background keepalive ticker rather than by Dispatch.
func (s *Server) SendPing() {
	s.latencyMu.Lock()
	token := xid.New().String()
	s.pingToken = token
	s.pingSentAt = time.Now()
	s.latencyMu.Unlock()
	if err := s.Conn.WriteMessage(irc.NewMessage(irc.CmdPing, token)); err != nil {
		reportError(s, newError(KindIOSend, "Send fail: %s", err))
	}
}

// RecvPong records round-trip latency if token matches the outstanding
// nonce from SendPing. Returns false if token did not match (e.g. a stray
// or duplicate PONG), in which case the caller should not treat this as a
// latency sample.
func (s *Server) RecvPong(token string) bool {
	s.latencyMu.Lock()
	defer s.latencyMu.Unlock()
	if token == "" || token != s.pingToken {
		return false
	}
	s.Latency = time.Since(s.pingSentAt)
	s.pingToken = ""
	return true
}
