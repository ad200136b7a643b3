/*
Package irc is the wire layer of rirc: the RFC 1459/2812 message grammar
(Message, Command, Params, the lexer that parses a CR-LF-stripped line into
those fields) plus Client, the network connection that turns a raw byte
stream into a sequence of parsed Messages and accepts outgoing ones.

Everything above the wire — servers, channels, users, the mode engine,
scrollback buffers, and the per-command dispatch that interprets a parsed
Message — lives in internal/state, which imports this package for Message
and Command but is otherwise independent of it. internal/netadapter is the
seam between the two: it drives a Client and feeds every Message it parses
into state.Dispatch.

	type Message struct {
		Tags    Tags
		Source  Prefix
		Command Command
		Params  Params
	}

	type Client struct {
		// ...
	}

	func (c *Client) ConnectAndRun(ctx context.Context, h Handler) error {
		// ...
	}

Message satisfies encoding.TextMarshaler/TextUnmarshaler, so it can be used
standalone for parsing or formatting IRC lines without a live connection.

Client.ConnectAndRun dials, sends the PASS/NICK/USER registration sequence,
and calls the given Handler for every Message parsed off the connection
until the context is cancelled or the connection ends. IRCv3 capability
negotiation and CTCP interception are not done here, and neither is PING
handling, with one exception: after two idle minutes the Client sends its
own "PING TIMEOUTCHECK" and swallows the matching PONG. Everything else
belongs to the protocol core in internal/state, which is where a Message's
meaning is interpreted.
*/
package irc
