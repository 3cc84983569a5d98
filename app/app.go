// Package app assembles the server from loaded settings: logger, TLS,
// router and engine, plus signal-driven lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coreserve/httpd/config"
	"github.com/coreserve/httpd/core/dispatch"
	"github.com/coreserve/httpd/core/server"
)

// App is a fully wired server instance.
type App struct {
	settings *config.Settings
	log      *zap.Logger
	srv      *server.Server
}

// New builds an App from settings. The document root is canonicalized
// here so the dispatcher's containment checks work against one absolute
// prefix.
func New(settings *config.Settings) (*App, error) {
	log, err := newLogger(settings.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	root, err := filepath.Abs(settings.DocumentRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve document root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", root)
	}

	creds, err := config.ParseCredentials(settings.AuthCreds)
	if err != nil {
		return nil, err
	}
	var gate *dispatch.AuthGate
	if len(creds) > 0 {
		pairs := make([]dispatch.Credential, len(creds))
		for i, c := range creds {
			pairs[i] = dispatch.Credential{User: c.User, Pass: c.Pass}
		}
		gate = dispatch.NewAuthGate(pairs)
	}

	router := dispatch.NewRouter(dispatch.RouterConfig{
		Root:         root,
		AllowListing: settings.AllowDirListing,
		Auth:         gate,
		CGI:          dispatch.NewCGIHandler(settings.PHPBinary, settings.CGIExtensions, settings.CGITimeout, log),
		Log:          log,
	})

	opts := server.Options{
		Addr:               settings.Address,
		IdleTimeout:        settings.IdleTimeout,
		WriteTimeout:       settings.WriteTimeout,
		MaxRequestsPerConn: settings.MaxRequestsPerConn,
		MaxConnections:     settings.MaxConnections,
		ShutdownGrace:      settings.ShutdownGrace,
	}
	opts.Limits.MaxHeaderBytes = settings.MaxHeaderBytes
	opts.Limits.MaxBodyBytes = int64(settings.MaxBodyBytes)

	if settings.TLSEnabled() {
		tlsCfg, err := server.LoadServerTLS(settings.SSLCert, settings.SSLKey)
		if err != nil {
			// A broken certificate pair degrades to plaintext rather than
			// refusing to start.
			log.Warn("cannot load TLS key pair, serving plaintext",
				zap.String("cert", settings.SSLCert),
				zap.String("key", settings.SSLKey),
				zap.Error(err))
		} else {
			opts.TLS = tlsCfg
		}
	}

	return &App{
		settings: settings,
		log:      log,
		srv:      server.New(opts, router, log),
	}, nil
}

// Run serves until ctx is canceled or SIGINT/SIGTERM arrives, then drains.
func (a *App) Run(ctx context.Context) error {
	defer a.log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.log.Info("starting",
		zap.String("addr", a.settings.Address),
		zap.String("document_root", a.settings.DocumentRoot),
		zap.String("env", a.settings.Env))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.srv.Serve(ctx)
	})
	return g.Wait()
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
