// Package server owns the transport: it binds the listening socket, accepts
// plaintext or TLS connections, and runs one connection handler goroutine
// per client. All request semantics live behind the Handler interface.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/coreserve/httpd/core/pools"
	"github.com/coreserve/httpd/core/wire"
)

// Handler produces a response for a decoded request. Implementations must
// be safe for concurrent use; the router satisfies this by being read-only
// after construction.
type Handler interface {
	Handle(req *wire.Request, remoteAddr string) *wire.Response
}

// Options is the engine's immutable tuning, fixed at startup.
type Options struct {
	Addr               string
	TLS                *tls.Config // nil serves plaintext
	IdleTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxRequestsPerConn int // 0 = unlimited
	MaxConnections     int // 0 = unlimited
	ShutdownGrace      time.Duration
	Limits             wire.Limits
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 30 * time.Second
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 5 * time.Second
	}
	return o
}

// Server accepts connections and spawns a connection handler per client.
type Server struct {
	opts    Options
	handler Handler
	log     *zap.Logger
	bufPool *pools.BufferPool

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a Server. log may be nil.
func New(opts Options, handler Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		opts:    opts.withDefaults(),
		handler: handler,
		log:     log,
		bufPool: pools.NewBufferPool(),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve binds opts.Addr and runs the accept loop until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener runs the accept loop over an existing listener. Canceling
// ctx closes the listener immediately; in-flight connections then get
// ShutdownGrace to drain before their sockets are force-closed. The
// listener is always closed by the time ServeListener returns.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	if s.opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConnections)
	}
	if s.opts.TLS != nil {
		ln = tls.NewListener(ln, s.opts.TLS)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", s.opts.TLS != nil))

	for {
		rwc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Error("cannot accept connection", zap.Error(err))
			continue
		}

		c := s.newConn(rwc)
		s.track(rwc, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(rwc, false)
			c.serve()
		}()
	}

	s.drain()
	s.log.Info("server stopped")
	return nil
}

func (s *Server) track(rwc net.Conn, add bool) {
	s.mu.Lock()
	if add {
		s.conns[rwc] = struct{}{}
	} else {
		delete(s.conns, rwc)
	}
	s.mu.Unlock()
}

// drain waits for in-flight connections up to the grace period, then
// force-closes whatever remains.
func (s *Server) drain() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(s.opts.ShutdownGrace):
	}

	s.mu.Lock()
	remaining := len(s.conns)
	for rwc := range s.conns {
		rwc.Close()
	}
	s.mu.Unlock()
	if remaining > 0 {
		s.log.Warn("force-closed connections after grace period",
			zap.Int("connections", remaining))
	}
	<-done
}
