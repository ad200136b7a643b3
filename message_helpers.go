package irc

import (
	"fmt"
	"strings"
)

// Text returns the free-form text portion of a message, for commands that
// carry one: PRIVMSG, NOTICE, CTCP ACTION, TOPIC, KICK, PART, MODE, QUIT,
// and ERROR. For PART and KICK this is the <reason> parameter.
//
// Calling Text on an unsupported command returns the full parameter list
// joined with spaces, plus a non-nil error; callers that only ever see one
// command (e.g. a handler registered solely for PRIVMSG) may discard err.
func (m *Message) Text() (string, error) {
	switch m.Command {
	case CmdQuit, CmdError:
		return m.Params.Get(1), nil
	case CmdPrivmsg, CmdNotice, CTCPAction, CmdTopic, CmdPart, CmdMode:
		return m.Params.Get(2), nil
	case CmdKick:
		return m.Params.Get(3), nil

	default:
		return strings.Join(m.Params, " "), fmt.Errorf("text: command %s is not supported", m.Command)
	}
}

// Target returns the intended recipient of a message: the client's own
// nickname for a query, a channel name for a channel message, or on servers
// supporting ISUPPORT's STATUSMSG, a channel name prefixed by one or more
// membership sigils (e.g. "+#foo" for everyone with voice or higher).
func (m *Message) Target() (string, error) {

	switch m.Command {
	case CmdPrivmsg, CmdNotice, CTCPAction, CmdInvite, CmdTopic, CmdKick, CmdPart, CmdMode:
		return m.Params.Get(1), nil
	default:
		return "", fmt.Errorf("%s: target method not supported", m.Command)
	}
}

// Chan returns the channel parameter of a message exactly as sent.
// Membership prefixes (@, %, +, ...) on a STATUSMSG-style target are not
// stripped, and for a PRIVMSG or NOTICE sent to a nick (a query) it returns
// that nick rather than "".
func (m *Message) Chan() (string, error) {
	switch m.Command {
	case CmdPrivmsg, CmdNotice, CTCPAction, CmdJoin, CmdTopic, CmdKick, CmdPart:
		return m.Params.Get(1), nil
	case CmdInvite:
		return m.Params.Get(2), nil
	default:
		return "", fmt.Errorf("%s: chan method not supported", m.Command)
	}
}
