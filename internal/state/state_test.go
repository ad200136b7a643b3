package state_test

import (
	"encoding"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	irc "github.com/rirc-go/rirc"
	"github.com/rirc-go/rirc/internal/state"
)

type fakeConn struct {
	sent         []string
	disconnected bool
	sendErr      error
}

func (f *fakeConn) WriteMessage(m encoding.TextMarshaler) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	b, err := m.MarshalText()
	if err != nil {
		return err
	}
	f.sent = append(f.sent, string(b))
	return nil
}
func (f *fakeConn) Disconnect() { f.disconnected = true }

func newTestServer(t *testing.T) (*state.Server, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	s := state.NewServer("irc.example.org", "6667", "", "guest", "Guest User", []string{"nick", "nick2"}, conn)
	return s, conn
}

func msg(from, cmd string, params ...string) *irc.Message {
	m := irc.NewMessage(irc.Command(cmd), params...)
	if from != "" {
		m.Source = irc.Prefix{Nick: irc.Nickname(from)}
	}
	return m
}

func TestDispatchPingRepliesPong(t *testing.T) {
	s, conn := newTestServer(t)
	state.Dispatch(s, msg("", "PING", "abc123"))
	require.Len(t, conn.sent, 1)
	assert.Contains(t, conn.sent[0], "PONG")
	assert.Contains(t, conn.sent[0], "abc123")
}

func TestDispatchPingWriteFailureReportsSendFail(t *testing.T) {
	s, conn := newTestServer(t)
	conn.sendErr = errors.New("broken pipe")
	state.Dispatch(s, msg("", "PING", "abc123"))
	require.Equal(t, 1, s.Console.Buffer.Len())
	assert.Contains(t, s.Console.Buffer.Head().Text, "Send fail")
}

func TestDispatchNumericStarTargetPreRegistrationDoesNotDisconnect(t *testing.T) {
	s, conn := newTestServer(t)
	s.Registered = false
	state.Dispatch(s, msg("srv", "433", "*", "nick", "in use"))
	assert.False(t, conn.disconnected)
}

func TestDispatchNumericTargetMismatchDisconnects(t *testing.T) {
	s, conn := newTestServer(t)
	s.Nick = "nick"
	state.Dispatch(s, msg("srv", "433", "someoneelse", "nick", "in use"))
	assert.True(t, conn.disconnected)
}

func TestDispatchJoinSelfCreatesChannel(t *testing.T) {
	s, _ := newTestServer(t)
	state.Dispatch(s, msg("nick", "JOIN", "#c"))
	c := s.Channel("#c")
	require.NotNil(t, c)
	assert.False(t, c.Parted)
}

func TestDispatchJoinOtherAddsMember(t *testing.T) {
	s, _ := newTestServer(t)
	state.Dispatch(s, msg("nick", "JOIN", "#c"))
	state.Dispatch(s, msg("alice", "JOIN", "#c"))
	c := s.Channel("#c")
	require.NotNil(t, c)
	assert.NotNil(t, c.Users.Get("alice"))
}

func TestDispatchPartSelfMarksParted(t *testing.T) {
	s, _ := newTestServer(t)
	state.Dispatch(s, msg("nick", "JOIN", "#c"))
	state.Dispatch(s, msg("nick", "PART", "#c", "bye"))
	c := s.Channel("#c")
	require.NotNil(t, c)
	assert.True(t, c.Parted)
}

func TestDispatchModeScenario(t *testing.T) {
	s, _ := newTestServer(t)
	state.Dispatch(s, msg("srv", "005", "nick", "CHANMODES=b,k,l,n", "PREFIX=(ov)@+", "are supported"))
	state.Dispatch(s, msg("nick", "JOIN", "#c"))
	state.Dispatch(s, msg("alice", "JOIN", "#c"))
	state.Dispatch(s, msg("bob", "JOIN", "#c"))

	state.Dispatch(s, msg("op", "MODE", "#c", "+ov", "alice", "bob"))

	c := s.Channel("#c")
	require.NotNil(t, c)
	alice := c.Users.Get("alice")
	bob := c.Users.Get("bob")
	require.NotNil(t, alice)
	require.NotNil(t, bob)
	assert.True(t, alice.PrefixModes.Has('o'))
	assert.True(t, bob.PrefixModes.Has('v'))
}

func TestDispatchPrivmsgPingedLine(t *testing.T) {
	s, _ := newTestServer(t)
	s.Nick = "nick"
	state.Dispatch(s, msg("nick", "JOIN", "#c"))
	state.Dispatch(s, msg("alice", "PRIVMSG", "#c", "hey nick, you there?"))
	c := s.Channel("#c")
	require.NotNil(t, c)
	assert.Equal(t, state.ActivityPinged, c.Activity)
}

func TestDispatchUnknownKeywordLogsError(t *testing.T) {
	s, _ := newTestServer(t)
	state.Dispatch(s, msg("srv", "FROBNICATE"))
	assert.Equal(t, 1, s.Console.Buffer.Len())
}

func TestDispatchPrivmsgIgnoredSenderDropped(t *testing.T) {
	s, _ := newTestServer(t)
	s.Ignore.Add("troll", 0)
	state.Dispatch(s, msg("nick", "JOIN", "#c"))
	state.Dispatch(s, msg("troll", "PRIVMSG", "#c", "spam"))
	c := s.Channel("#c")
	require.NotNil(t, c)
	// only the self-JOIN line
	assert.Equal(t, 1, c.Buffer.Len())
}

func TestDispatchPrivmsgIgnoredHostmaskDropped(t *testing.T) {
	s, _ := newTestServer(t)
	s.Ignore.Add("*!*@*.spammers.net", 0)
	state.Dispatch(s, msg("nick", "JOIN", "#c"))
	m := irc.NewMessage(irc.CmdPrivmsg, "#c", "spam")
	m.Source = irc.Prefix{Nick: "troll", User: "u", Host: "bad.spammers.net"}
	state.Dispatch(s, m)
	c := s.Channel("#c")
	require.NotNil(t, c)
	// only the self-JOIN line
	assert.Equal(t, 1, c.Buffer.Len())
}

func TestDispatchPrivmsgCTCPVersionReplies(t *testing.T) {
	s, conn := newTestServer(t)
	s.Nick = "nick"
	state.Dispatch(s, msg("alice", "PRIVMSG", "nick", "\x01VERSION\x01"))
	require.Len(t, conn.sent, 1)
	assert.Contains(t, conn.sent[0], "NOTICE")
	assert.Contains(t, conn.sent[0], "VERSION")
}

func TestDispatchPrivmsgCTCPActionRendersAsLine(t *testing.T) {
	s, _ := newTestServer(t)
	state.Dispatch(s, msg("nick", "JOIN", "#c"))
	state.Dispatch(s, msg("alice", "PRIVMSG", "#c", "\x01ACTION waves\x01"))
	c := s.Channel("#c")
	require.NotNil(t, c)
	// the self-JOIN line, then the action
	require.Equal(t, 2, c.Buffer.Len())
	assert.Contains(t, c.Buffer.Head().Text, "waves")
}

func TestNickRotation(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, "nick", s.Nick)
	s.NicksNext()
	assert.Equal(t, "nick2", s.Nick)
	s.NicksNext()
	assert.Equal(t, "nick2_", s.Nick)
}
