package server

import (
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/coreserve/httpd/core/wire"
)

// connState is the phase a connection is in. The handler loop moves through
// reading, dispatching and writing until the connection closes.
type connState int

const (
	stateReading connState = iota
	stateDispatching
	stateWriting
	stateClosed
)

// errConnGone marks read failures that end the connection without a
// response: peer close, reset, idle timeout.
var errConnGone = errors.New("connection gone")

type conn struct {
	srv    *Server
	rwc    net.Conn
	remote string

	// buf holds bytes read but not yet consumed by the decoder. Pipelined
	// request bytes survive in it across iterations.
	buf []byte

	reqCount int
}

func (s *Server) newConn(rwc net.Conn) *conn {
	return &conn{
		srv:    s,
		rwc:    rwc,
		remote: rwc.RemoteAddr().String(),
		buf:    s.bufPool.Get(4096),
	}
}

// serve drives the connection state machine until the connection is done.
func (c *conn) serve() {
	defer func() {
		c.rwc.Close()
		c.srv.bufPool.Put(c.buf)
	}()

	var (
		req        *wire.Request
		res        *wire.Response
		closeAfter bool
	)

	state := stateReading
	for state != stateClosed {
		switch state {
		case stateReading:
			var err error
			req, err = c.readRequest()
			switch {
			case err == nil:
				state = stateDispatching
			case errors.Is(err, errConnGone):
				state = stateClosed
			default:
				// Malformed input leaves the stream position untrusted, so
				// answer once and close.
				res = wire.ErrorResponse(wire.StatusFor(err), true)
				res.Headers.Set("Connection", "close")
				closeAfter = true
				state = stateWriting
			}

		case stateDispatching:
			res = c.dispatch(req)
			c.reqCount++
			closeAfter = !req.KeepAlive() ||
				(c.srv.opts.MaxRequestsPerConn > 0 && c.reqCount >= c.srv.opts.MaxRequestsPerConn)
			if closeAfter {
				res.Headers.Set("Connection", "close")
			}
			state = stateWriting

		case stateWriting:
			err := c.writeResponse(res)
			c.logAccess(req, res)
			if err != nil || closeAfter {
				state = stateClosed
			} else {
				req, res = nil, nil
				state = stateReading
			}
		}
	}
}

// readRequest reads until one full request decodes or the idle deadline
// passes. Bytes beyond the decoded request stay buffered for the next one.
func (c *conn) readRequest() (*wire.Request, error) {
	deadline := time.Now().Add(c.srv.opts.IdleTimeout)
	for {
		if len(c.buf) > 0 {
			req, n, err := wire.DecodeRequest(c.buf, c.srv.opts.Limits)
			if err == nil {
				c.buf = append(c.buf[:0], c.buf[n:]...)
				return req, nil
			}
			if !errors.Is(err, wire.ErrIncomplete) {
				return nil, err
			}
		}

		if err := c.rwc.SetReadDeadline(deadline); err != nil {
			return nil, errConnGone
		}
		if cap(c.buf)-len(c.buf) < 1024 {
			c.buf = c.srv.bufPool.Grow(c.buf, 2*cap(c.buf))
		}
		n, err := c.rwc.Read(c.buf[len(c.buf):cap(c.buf)])
		c.buf = c.buf[:len(c.buf)+n]
		if err != nil {
			// TCP may deliver the last bytes together with the FIN; a
			// request completed by them still deserves an answer.
			if n > 0 {
				req, used, derr := wire.DecodeRequest(c.buf, c.srv.opts.Limits)
				if derr == nil {
					c.buf = append(c.buf[:0], c.buf[used:]...)
					return req, nil
				}
				if !errors.Is(derr, wire.ErrIncomplete) {
					return nil, derr
				}
			}
			return nil, errConnGone
		}
	}
}

func (c *conn) writeResponse(res *wire.Response) error {
	if err := c.rwc.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout)); err != nil {
		return err
	}
	_, err := c.rwc.Write(wire.EncodeResponse(res))
	return err
}

// dispatch runs the handler with panic containment: a panicking handler
// costs the request a 500, never the process.
func (c *conn) dispatch(req *wire.Request) (res *wire.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.srv.log.Error("handler panic",
				zap.String("remote", c.remote),
				zap.String("target", req.Target),
				zap.Any("panic", r))
			res = wire.ErrorResponse(500, true)
		}
	}()
	return c.srv.handler.Handle(req, c.remote)
}

// logAccess emits one line per handled request in common log format fields.
// req is nil when the request never decoded.
func (c *conn) logAccess(req *wire.Request, res *wire.Response) {
	line := "-"
	if req != nil {
		line = fmt.Sprintf("%s %s %s", req.Method, req.Target, req.Proto)
	}
	c.srv.log.Info("request",
		zap.String("remote", c.remote),
		zap.String("time", time.Now().Format("02/Jan/2006:15:04:05 -0700")),
		zap.String("line", line),
		zap.Int("status", res.Status),
		zap.Int("bytes", len(res.Body)))
}
