package state

import (
	"fmt"

	goerrors "github.com/go-errors/errors"

	"github.com/rirc-go/rirc/internal/ring"
)

// Kind classifies a state-layer error for logging and for deciding whether
// the connection must be torn down. The taxonomy is exhaustive: every error
// the package returns carries exactly one of these.
type Kind int

const (
	KindParse Kind = iota
	KindDispatch
	KindProtocol
	KindState
	KindIOSend
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindDispatch:
		return "dispatch"
	case KindProtocol:
		return "protocol"
	case KindState:
		return "state"
	case KindIOSend:
		return "io-send"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a recoverable core error: the dispatcher posts its message to the
// originating server's buffer and continues. Disconnect reports whether
// Kind==KindProtocol during registration additionally requires the caller to
// request a disconnect from the I/O layer.
type Error struct {
	Kind       Kind
	Message    string
	Disconnect bool
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func newProtocolError(disconnect bool, format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Message: fmt.Sprintf(format, args...), Disconnect: disconnect}
}

// reportError posts e to s's console buffer and increments the error-count
// metric, labeled by kind. This is the single path by which a recoverable
// Error becomes visible to whatever is rendering s.Console.Buffer, whether
// it originated from a Routine returned to Dispatch or from a background
// operation (e.g. a failed keepalive SendPing) that has no Routine to
// return through.
func reportError(s *Server, e *Error) {
	errorsTotal.WithLabelValues(e.Kind.String()).Inc()
	s.Log.WithField("kind", e.Kind.String()).Error(e.Message)
	s.Console.Buffer.Newline(ring.LineOther, "--", e.Message, 0)
}

// fatal reports a core invariant violation: a programmer error that can
// never originate from user or network input. It aborts the process
// rather than being handled as a recoverable Error; go-errors attaches a
// stack trace to make the panic actionable.
func fatal(format string, args ...any) {
	panic(goerrors.Errorf(format, args...))
}
