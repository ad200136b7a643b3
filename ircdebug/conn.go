// Package ircdebug contains helper functions that are useful while writing an IRC client.
package ircdebug

import (
	"io"

	"github.com/sirupsen/logrus"
)

// WriteTo returns a new io.ReadWriteCloser that logs every read/write for rwc
// through log at Debug level, tagged with a "direction" field ("in" for
// bytes read from the server, "out" for bytes written to it). This is mainly
// useful while developing an IRC client like a bot.
func WriteTo(log *logrus.Entry, rwc io.ReadWriteCloser) io.ReadWriteCloser {
	return &debugConn{
		ReadWriteCloser: rwc,
		r:               io.TeeReader(rwc, &logWriter{log: log.WithField("direction", "in")}),
		w:               io.MultiWriter(rwc, &logWriter{log: log.WithField("direction", "out")}),
	}
}

type debugConn struct {
	io.ReadWriteCloser
	r io.Reader
	w io.Writer
}

func (dc *debugConn) Read(p []byte) (int, error) {
	return dc.r.Read(p)
}
func (dc *debugConn) Write(p []byte) (int, error) {
	return dc.w.Write(p)
}

// logWriter adapts a *logrus.Entry to io.Writer so it can sit behind an
// io.TeeReader/io.MultiWriter, logging each chunk as a single Debug line.
type logWriter struct {
	log *logrus.Entry
}

func (lw *logWriter) Write(p []byte) (int, error) {
	lw.log.Debug(string(p))
	return len(p), nil
}
