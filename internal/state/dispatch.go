package state

import (
	"strconv"
	"strings"

	irc "github.com/rirc-go/rirc"
)

// Routine mutates s in response to an incoming message and returns a
// recoverable *Error, or nil on success.
type Routine func(*Server, *irc.Message) *Error

// numerics is the [0..999] table of registered numeric routines: a nil
// entry means "unknown, report an error"; ignoreNumeric marks a numeric
// that is recognised but intentionally produces no state change or output.
var numerics [1000]Routine

// ignoreNumeric is a sentinel Routine used for numerics the core
// recognises but treats as no-ops (RPL_NOTOPIC, RPL_ENDOFNAMES,
// RPL_ENDOFMOTD).
func ignoreNumeric(*Server, *irc.Message) *Error { return nil }

// keywords is the perfect-hash-in-spirit keyword table: a plain map stands
// in for original_source's gperf-generated table, which this package has no
// reason to hand-roll.
var keywords = map[string]Routine{}

func registerNumeric(code int, r Routine) {
	numerics[code] = r
}

func registerKeyword(cmd string, r Routine) {
	keywords[strings.ToUpper(cmd)] = r
}

func init() {
	registerNumeric(1, recvWelcome)
	registerNumeric(4, recvMyInfo)
	registerNumeric(5, recvISupport)
	registerNumeric(331, ignoreNumeric) // RPL_NOTOPIC
	registerNumeric(366, ignoreNumeric) // RPL_ENDOFNAMES
	registerNumeric(376, ignoreNumeric) // RPL_ENDOFMOTD
	registerNumeric(433, recv433)       // ERR_NICKNAMEINUSE

	registerKeyword(irc.CmdPing, recvPing)
	registerKeyword(irc.CmdPong, recvPong)
	registerKeyword(irc.CmdJoin, recvJoin)
	registerKeyword(irc.CmdPart, recvPart)
	registerKeyword(irc.CmdKick, recvKick)
	registerKeyword(irc.CmdQuit, recvQuit)
	registerKeyword(irc.CmdNick, recvNick)
	registerKeyword(irc.CmdMode, recvMode)
	registerKeyword(irc.CmdPrivmsg, recvPrivmsg)
	registerKeyword(irc.CmdNotice, recvNotice)
	registerKeyword(irc.CmdTopic, recvTopic)
	registerKeyword(irc.CmdError, recvError)
	registerKeyword(irc.CmdInvite, recvInvite)
}

// Dispatch is the dispatcher's single entry point: it routes m to a numeric
// or keyword Routine and posts any recoverable error to s.Console's buffer.
// It never returns an error itself — all failure handling is already folded
// into Console logging so that callers (the network read loop) can treat
// every message uniformly.
func Dispatch(s *Server, m *irc.Message) {
	var err *Error
	if isNumeric(m.Command.String()) {
		err = dispatchNumeric(s, m)
	} else {
		err = dispatchKeyword(s, m)
	}

	if err == nil {
		return
	}

	reportError(s, err)

	if err.Kind == KindFatal {
		fatal("state: %s", err.Message)
	}
	if err.Disconnect {
		s.Conn.Disconnect()
	}
}

func isNumeric(cmd string) bool {
	if len(cmd) == 0 {
		return false
	}
	for i := 0; i < len(cmd); i++ {
		if cmd[i] < '0' || cmd[i] > '9' {
			return false
		}
	}
	return true
}

// dispatchNumeric implements original_source's irc_recv_numeric: validate
// the 3-digit code, check the target parameter against the current nick
// (or '*' pre-registration, or unconditionally for 001 which is itself
// what establishes the nick), then route to the numerics table.
func dispatchNumeric(s *Server, m *irc.Message) *Error {
	code, err := strconv.Atoi(m.Command.String())
	if err != nil || code < 0 || code > 999 {
		return newError(KindParse, "NUMERIC: invalid")
	}

	target := m.Params.Get(1)
	if target == "" {
		return newProtocolError(true, "NUMERIC: target is null")
	}
	if code != 1 && target != s.Nick && (target != "*" || s.Registered) {
		return newProtocolError(true, "NUMERIC: target mismatched, nick is '%s', received '%s'", s.Nick, target)
	}

	dispatchTotal.WithLabelValues(m.Command.String()).Inc()

	r := numerics[code]
	if r == nil {
		return newError(KindDispatch, "Numeric type '%d' unknown", code)
	}
	return r(s, m)
}

func dispatchKeyword(s *Server, m *irc.Message) *Error {
	r, ok := keywords[strings.ToUpper(m.Command.String())]
	if !ok {
		return newError(KindDispatch, "Message type '%s' unknown", m.Command.String())
	}
	dispatchTotal.WithLabelValues(m.Command.String()).Inc()
	return r(s, m)
}
