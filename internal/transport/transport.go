// Package transport supplies the byte-level reader/writer glue (spec §5,
// C7): a reader loop that feeds bytes into the incremental wire decoder and
// a writer loop that drains a bounded outbound queue plus the keep-alive
// ticker. Package session owns the dialing, handshake, and state machine;
// this package only knows about bytes and wire.Message.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jpokornyiii/ntcore-client/internal/metrics"
	"github.com/jpokornyiii/ntcore-client/internal/wire"
)

// ErrClosed wraps any read/write failure that ends a ReadLoop/WriteLoop,
// including a clean io.EOF.
var ErrClosed = errors.New("transport: closed")

// ReadLoop consumes bytes from conn, incrementally decodes messages via
// wire.TryParse, and invokes onMessage for each one in wire-arrival order.
// It returns when ctx is cancelled, the connection closes, or onMessage
// returns a non-nil error (which is propagated). idleTimeout bounds how
// long a single Read may block; zero disables the deadline. A Read that
// times out is treated as a dead peer and ends the loop with ErrClosed,
// since the server is expected to keep traffic (at minimum KEEP_ALIVE)
// flowing within idleTimeout. m records traffic/decode-error metrics and
// may be nil.
func ReadLoop(ctx context.Context, conn net.Conn, idleTimeout time.Duration, lookup wire.RPCDefLookup, m *metrics.Metrics, onMessage func(wire.Message) error) error {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	offset := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		}

		n, err := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			m.AddBytesReceived(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return fmt.Errorf("%w: idle timeout after %s", ErrClosed, idleTimeout)
			}
			return fmt.Errorf("%w: %v", ErrClosed, err)
		}

		for {
			msg, newOffset, result, perr := wire.TryParse(buf, offset, lookup)
			switch result {
			case wire.NeedMore:
				if offset > 0 {
					buf = buf[offset:]
					offset = 0
				}
				goto nextRead
			case wire.Invalid:
				var we *wire.Error
				if errors.As(perr, &we) {
					m.IncDecodeError(we.Kind.String())
				}
				return perr
			case wire.Parsed:
				offset = newOffset
				if err := onMessage(msg); err != nil {
					return err
				}
			}
		}
	nextRead:
	}
}

// WriteLoop drains outbound and writes each message to conn, interleaving a
// KEEP_ALIVE at keepAliveInterval whenever no other traffic flows. It
// returns when ctx is cancelled or a write fails. m records traffic/
// keep-alive metrics and may be nil.
func WriteLoop(ctx context.Context, conn net.Conn, outbound <-chan wire.Message, keepAliveInterval time.Duration, m *metrics.Metrics) error {
	if keepAliveInterval <= 0 {
		keepAliveInterval = time.Second
	}
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	var scratch []byte

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-outbound:
			if !ok {
				return ErrClosed
			}
			buf, err := wire.Encode(scratch[:0], msg)
			if err != nil {
				continue
			}
			scratch = buf
			if _, err := conn.Write(buf); err != nil {
				return fmt.Errorf("%w: %v", ErrClosed, err)
			}
			m.AddBytesSent(len(buf))
			ticker.Reset(keepAliveInterval)

		case <-ticker.C:
			buf, err := wire.Encode(scratch[:0], wire.KeepAlive())
			if err != nil {
				continue
			}
			scratch = buf
			if _, err := conn.Write(buf); err != nil {
				return fmt.Errorf("%w: %v", ErrClosed, err)
			}
			m.AddBytesSent(len(buf))
			m.IncKeepAlivesSent()
			ticker.Reset(keepAliveInterval)
		}
	}
}
