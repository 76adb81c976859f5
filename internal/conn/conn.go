// Package conn implements the per-client connection loop: read a bounded
// buffer, frame a request, dispatch it, serialize and write the responses,
// repeat until the client disconnects or a write fails.
package conn

import (
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"redikv/internal/dispatch"
	"redikv/internal/protocol"
)

// readBufferSize is the reference buffer size: one TCP read is assumed to
// contain one complete framed request. Requests larger than this, or
// multiple requests packed into a single read, are not supported — this is
// the documented "wart" the spec explicitly permits lifting with a
// resumable parser, which this implementation does not pursue.
const readBufferSize = 512

// Loop owns one client connection end to end.
type Loop struct {
	conn       net.Conn
	dispatcher *dispatch.Dispatcher
	log        *logrus.Entry
	onClose    func()
}

// New builds a connection Loop. Every line this connection logs carries a
// conn_id field holding a fresh uuid.
func New(c net.Conn, d *dispatch.Dispatcher, log *logrus.Logger, onClose func()) *Loop {
	return &Loop{
		conn:       c,
		dispatcher: d,
		log:        log.WithField("conn_id", uuid.NewString()),
		onClose:    onClose,
	}
}

// Run drives the loop until the client disconnects (a zero-length read) or
// a write fails. It always closes the underlying connection before
// returning.
func (l *Loop) Run() {
	defer l.conn.Close()
	if l.onClose != nil {
		defer l.onClose()
	}

	l.log.Debug("connection accepted")

	buf := make([]byte, readBufferSize)
	for {
		n, err := l.conn.Read(buf)
		if n == 0 || err != nil {
			l.log.Debug("connection closed")
			return
		}

		req, perr := protocol.ParseRequest(buf[:n])
		var responses []protocol.Value
		if perr != nil {
			l.log.WithError(perr).Debug("malformed frame")
			responses = []protocol.Value{protocol.Err(perr.Error())}
		} else {
			responses = l.dispatcher.Dispatch(req)
		}

		for _, v := range responses {
			out := protocol.Serialize(v)
			if _, err := l.conn.Write(out); err != nil {
				l.log.WithError(err).Debug("write failed, closing connection")
				return
			}
		}
	}
}
