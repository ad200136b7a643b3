package state

import (
	"regexp"
	"strings"

	irc "github.com/rirc-go/rirc"
	"github.com/rirc-go/rirc/internal/casemap"
	"github.com/rirc-go/rirc/internal/cmap"
	"github.com/rirc-go/rirc/internal/mode"
	"github.com/rirc-go/rirc/internal/ring"
	"github.com/rirc-go/rirc/internal/userlist"
)

// ctcpRegex matches a CTCP-delimited PRIVMSG/NOTICE body, recognized here
// directly by the state core rather than by transport-level middleware.
var ctcpRegex = regexp.MustCompile("^\\x01([^ \\x01]+) ?(.*?)\\x01?$")

// parseCTCP reports whether body is CTCP-delimited, returning the
// upper-cased subcommand and the remaining text.
func parseCTCP(body string) (subcommand, text string, ok bool) {
	if len(body) == 0 || body[0] != 0x01 {
		return "", "", false
	}
	parts := ctcpRegex.FindStringSubmatch(body)
	if parts == nil {
		return "", "", false
	}
	return strings.ToUpper(parts[1]), parts[2], true
}

// recvWelcome handles 001 RPL_WELCOME: the reply itself latches the
// confirmed nick, since prior to it the target parameter is only ever "*".
func recvWelcome(s *Server, m *irc.Message) *Error {
	s.Nick = m.Params.Get(1)
	s.Registered = true
	s.Console.Buffer.Newline(ring.LineOther, "--", joinTrailing(m, 2), 0)
	return nil
}

// recvMyInfo handles 004: "<nick> <server> <version> <usermodes> <chanmodes>".
func recvMyInfo(s *Server, m *irc.Message) *Error {
	if um := m.Params.Get(4); um != "" {
		s.ModeConfig.UserModes = um
	}
	return nil
}

// recvISupport handles 005: space-separated TOKEN or TOKEN=value pairs,
// each merged into the mode engine's Config. Unrecognised tokens are
// accepted silently.
func recvISupport(s *Server, m *irc.Message) *Error {
	tokens := map[string]string{}
	for i := 1; i <= len(m.Params); i++ {
		p := m.Params.Get(i)
		if p == "" || strings.Contains(p, "are supported") {
			continue
		}
		if eq := strings.IndexByte(p, '='); eq >= 0 {
			tokens[p[:eq]] = p[eq+1:]
		} else {
			tokens[p] = ""
		}
	}
	if v, ok := tokens["CASEMAPPING"]; ok {
		if cm, err := casemap.Parse(v); err == nil {
			s.CaseMapping = cm
		}
	}
	s.ModeConfig = mode.ParseISUPPORT(s.ModeConfig, tokens)
	return nil
}

// recvPing replies PONG <token>.
func recvPing(s *Server, m *irc.Message) *Error {
	token := m.Params.Get(1)
	if err := s.Conn.WriteMessage(irc.NewMessage(irc.CmdPong, token)); err != nil {
		return newError(KindIOSend, "Send fail: %s", err)
	}
	return nil
}

// recvPong records round-trip latency when token matches an outstanding
// SendPing nonce; otherwise it is silently ignored.
func recvPong(s *Server, m *irc.Message) *Error {
	s.RecvPong(m.Params.Get(len(m.Params)))
	return nil
}

// recv433 handles ERR_NICKNAMEINUSE, received both pre-registration (target
// "*") and, more rarely, after registration if a NICK change collides:
// advance the rotation to the next preferred nick and try again by sending
// NICK directly, since the core doesn't otherwise retry registration itself.
func recv433(s *Server, m *irc.Message) *Error {
	s.NicksNext()
	if err := s.Conn.WriteMessage(irc.Nick(s.Nick)); err != nil {
		return newError(KindIOSend, "Send fail: %s", err)
	}
	return nil
}

// recvJoin: self-JOIN (re)opens the channel; others' JOIN adds them to the
// member list with an empty prefix-mode vector.
func recvJoin(s *Server, m *irc.Message) *Error {
	name := m.Params.Get(1)
	nick := m.Source.Nick.String()

	if s.fold(nick) == s.fold(s.Nick) {
		c := s.AddChannel(name)
		c.Reopen()
		c.Buffer.Newline(ring.LineOther, "--", nick+" has joined "+name, 0)
		return nil
	}

	c := s.Channel(name)
	if c == nil {
		return newError(KindState, "JOIN: unknown channel '%s'", name)
	}
	if res := c.Users.Add(nick, 0); res != cmap.OK {
		return newError(KindState, "JOIN: duplicate user '%s' on '%s'", nick, name)
	}
	c.Buffer.Newline(ring.LineOther, "--", nick+" has joined "+name, 0)
	return nil
}

// recvPart: self-PART marks the channel parted and clears its member list;
// otherwise the departing user is removed.
func recvPart(s *Server, m *irc.Message) *Error {
	name := m.Params.Get(1)
	nick := m.Source.Nick.String()
	reason := m.Params.Get(2)

	c := s.Channel(name)
	if c == nil {
		return newError(KindState, "PART: unknown channel '%s'", name)
	}

	if s.fold(nick) == s.fold(s.Nick) {
		c.Parted = true
		c.Users = userlist.New(s.fold)
		c.Buffer.Newline(ring.LineOther, "--", partText(nick, reason), 0)
		return nil
	}

	c.Users.Del(nick)
	c.Buffer.Newline(ring.LineOther, "--", partText(nick, reason), 0)
	return nil
}

// recvKick: like PART but driven by the kicker; if the kicked nick is
// self, the channel's parted flag is set.
func recvKick(s *Server, m *irc.Message) *Error {
	name := m.Params.Get(1)
	kicked := m.Params.Get(2)
	reason := m.Params.Get(3)
	kicker := m.Source.Nick.String()

	c := s.Channel(name)
	if c == nil {
		return newError(KindState, "KICK: unknown channel '%s'", name)
	}

	if s.fold(kicked) == s.fold(s.Nick) {
		c.Parted = true
		c.Users = userlist.New(s.fold)
	} else {
		c.Users.Del(kicked)
	}
	c.Buffer.Newline(ring.LineOther, "--", kicked+" was kicked by "+kicker+" ("+reason+")", 0)
	return nil
}

// recvQuit removes the quitting nick from every channel that contained
// them, one line per channel.
func recvQuit(s *Server, m *irc.Message) *Error {
	nick := m.Source.Nick.String()
	reason := m.Params.Get(1)
	for _, c := range s.channels {
		if c.Users.Del(nick) == cmap.OK {
			c.Buffer.Newline(ring.LineOther, "--", quitText(nick, reason), 0)
		}
	}
	return nil
}

// recvNick replaces the user entry across every channel that contained the
// old nick; if self, additionally updates the server's current nick.
func recvNick(s *Server, m *irc.Message) *Error {
	oldNick := m.Source.Nick.String()
	newNick := m.Params.Get(1)

	self := s.fold(oldNick) == s.fold(s.Nick)
	if self {
		s.Nick = newNick
	}

	for _, c := range s.channels {
		if c.Users.Replace(oldNick, newNick) == cmap.OK {
			c.Buffer.Newline(ring.LineOther, "--", oldNick+" is now known as "+newNick, 0)
		}
	}
	return nil
}

// recvMode routes to the mode engine as channel or user modes, depending on
// whether target begins with a CHANTYPES sigil.
func recvMode(s *Server, m *irc.Message) *Error {
	target := m.Params.Get(1)
	if target == "" {
		return newError(KindDispatch, "MODE: missing target")
	}

	letters := m.Params.Get(2)
	args := []string(m.Params)
	if len(args) > 2 {
		args = args[2:]
	} else {
		args = nil
	}

	if !s.IsChanType(target[0]) {
		// user modes: apply directly to the server's own usermode vector,
		// ignoring PREFIX semantics (there is no per-user member target).
		applyUserModes(s, letters)
		return nil
	}

	c := s.Channel(target)
	if c == nil {
		return newError(KindState, "MODE: unknown channel '%s'", target)
	}

	memberVectors := map[string]mode.Vector{}
	for _, u := range c.Users.Entries() {
		memberVectors[s.fold(u.Nick)] = u.PrefixModes
	}
	t := &mode.Target{Chan: c.Modes, Members: memberVectors}

	rejections := mode.Apply(s.ModeConfig, t, letters, args, s.fold)
	c.Modes = t.Chan
	for _, u := range c.Users.Entries() {
		if v, ok := memberVectors[s.fold(u.Nick)]; ok {
			u.PrefixModes = v
		}
	}

	for _, r := range rejections {
		s.Log.WithField("letter", string(r.Letter)).Warn("MODE: rejected")
		c.Buffer.Newline(ring.LineOther, "--", target+" mode "+string(r.Letter)+" rejected: "+rejectReasonText(r.Reason), 0)
	}

	c.Buffer.Newline(ring.LineOther, "--", target+" mode "+letters, 0)
	return nil
}

func rejectReasonText(reason mode.RejectReason) string {
	switch reason {
	case mode.RejectUnknownLetter:
		return "unknown mode letter"
	case mode.RejectMissingArg:
		return "missing argument"
	case mode.RejectNoSuchMember:
		return "no such member"
	case mode.RejectModesCapExceeded:
		return "too many modes in one command"
	default:
		return "rejected"
	}
}

func applyUserModes(s *Server, letters string) {
	sign := byte('+')
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		if c == '+' || c == '-' {
			sign = c
			continue
		}
		if strings.IndexByte(s.ModeConfig.UserModes, c) < 0 {
			continue
		}
		if sign == '+' {
			s.UserModes = s.UserModes.Set(c)
		} else {
			s.UserModes = s.UserModes.Clear(c)
		}
	}
}

// recvPrivmsg routes a chat line to the named channel or to a private
// buffer keyed by the sender, marking the line pinged when it word-matches
// the current nick. CTCP-delimited bodies (ACTION aside) are answered
// automatically and never reach the scrollback as raw control bytes.
func recvPrivmsg(s *Server, m *irc.Message) *Error {
	target := m.Params.Get(1)
	text := m.Params.Get(2)
	from := m.Source.Nick.String()

	if target == "" {
		return newError(KindDispatch, "PRIVMSG: missing target")
	}
	if s.Ignored(m.Source) {
		return nil
	}

	displayFrom, line := from, text
	if sub, body, ok := parseCTCP(text); ok {
		if sub != "ACTION" {
			return recvCTCPQuery(s, target, from, sub, body)
		}
		line = "* " + from + " " + body
	}

	if s.IsChanType(target[0]) {
		c := s.Channel(target)
		if c == nil {
			return newError(KindState, "PRIVMSG: unknown channel '%s'", target)
		}
		kind := ring.LineChat
		if mentionsNick(line, s.Nick, s.fold) {
			kind = ring.LinePinged
			c.Activity = ActivityPinged
		} else if c.Activity == ActivityDefault {
			c.Activity = ActivityActive
		}
		c.Buffer.Newline(kind, displayFrom, line, 0)
		return nil
	}

	c := s.AddChannel(from)
	c.Buffer.Newline(ring.LineChat, displayFrom, line, 0)
	return nil
}

// recvCTCPQuery answers a CTCP query (anything but ACTION) with a CTCPReply
// for the well-known VERSION/CLIENTINFO/PING subcommands, and posts a
// console line noting the request.
func recvCTCPQuery(s *Server, target, from, subcommand, body string) *Error {
	var reply string
	switch subcommand {
	case "VERSION":
		reply = "rirc-go"
	case "CLIENTINFO":
		reply = "ACTION CLIENTINFO PING VERSION"
	case "PING":
		reply = body
	default:
		s.Console.Buffer.Newline(ring.LineOther, "--", from+" sent an unsupported CTCP "+subcommand, 0)
		return nil
	}
	if err := s.Conn.WriteMessage(irc.CTCPReply(from, subcommand, reply)); err != nil {
		return newError(KindIOSend, "Send fail: %s", err)
	}
	dest := s.Console
	if s.IsChanType(target[0]) {
		if c := s.Channel(target); c != nil {
			dest = c
		}
	}
	dest.Buffer.Newline(ring.LineOther, "--", from+" sent CTCP "+subcommand, 0)
	return nil
}

// recvNotice routes like PRIVMSG but with kind "other" and no ping
// detection. A CTCP reply is unwrapped to plain text rather than shown
// with its control-byte delimiters.
func recvNotice(s *Server, m *irc.Message) *Error {
	target := m.Params.Get(1)
	text := m.Params.Get(2)
	from := m.Source.Nick.String()
	if from == "" {
		from = m.Source.Host
	}
	if s.Ignored(m.Source) {
		return nil
	}
	if sub, body, ok := parseCTCP(text); ok {
		text = from + " CTCP " + sub + " reply: " + body
		from = "--"
	}

	if target != "" && s.IsChanType(target[0]) {
		c := s.Channel(target)
		if c == nil {
			return newError(KindState, "NOTICE: unknown channel '%s'", target)
		}
		c.Buffer.Newline(ring.LineOther, from, text, 0)
		return nil
	}

	s.Console.Buffer.Newline(ring.LineOther, from, text, 0)
	return nil
}

// recvTopic updates the channel's topic line.
func recvTopic(s *Server, m *irc.Message) *Error {
	name := m.Params.Get(1)
	topic := m.Params.Get(2)
	c := s.Channel(name)
	if c == nil {
		return newError(KindState, "TOPIC: unknown channel '%s'", name)
	}
	c.Topic = topic
	c.Buffer.Newline(ring.LineOther, "--", name+" topic is now: "+topic, 0)
	return nil
}

// recvError writes the reason to the server's console buffer.
func recvError(s *Server, m *irc.Message) *Error {
	s.Console.Buffer.Newline(ring.LineOther, "--", m.Params.Get(1), 0)
	return nil
}

// recvInvite writes a server-buffer notice naming the inviter and channel.
func recvInvite(s *Server, m *irc.Message) *Error {
	nick := m.Params.Get(1)
	channel := m.Params.Get(2)
	from := m.Source.Nick.String()
	s.Console.Buffer.Newline(ring.LineOther, "--", from+" invites "+nick+" to "+channel, 0)
	return nil
}

func mentionsNick(text, nick string, fold func(string) string) bool {
	folded := fold(nick)
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '-' || r == '_' || r == '[' || r == ']' || r == '{' || r == '}' || r == '\\' || r == '|' || r == '^')
	}) {
		if fold(word) == folded {
			return true
		}
	}
	return false
}

func partText(nick, reason string) string {
	if reason == "" {
		return nick + " has left"
	}
	return nick + " has left (" + reason + ")"
}

func quitText(nick, reason string) string {
	if reason == "" {
		return nick + " has quit"
	}
	return nick + " has quit (" + reason + ")"
}

func joinTrailing(m *irc.Message, from int) string {
	return strings.Join([]string(m.Params)[min(from-1, len(m.Params)):], " ")
}
