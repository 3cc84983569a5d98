// Package dispatch maps a decoded request to exactly one content handler:
// static file, directory listing, or CGI script, optionally behind a Basic
// authentication gate. The handler set is fixed at build time.
package dispatch

import (
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/coreserve/httpd/core/wire"
)

// resource is the resolved view of a request target handed to a content
// handler.
type resource struct {
	fsPath     string // absolute filesystem path under the document root
	reqPath    string // request path as sent by the client, without query
	query      string // raw query string, "" if absent
	remoteAddr string
}

// contentHandler is the single capability all content handlers implement.
// The router selects exactly one handler per request.
type contentHandler interface {
	serve(req *wire.Request, res resource) *wire.Response
}

// Router owns the request-to-handler mapping. All fields are read-only
// after construction and shared by every connection without locking.
type Router struct {
	root         string // canonical absolute document root
	allowListing bool
	auth         *AuthGate   // nil disables authentication
	cgi          *CGIHandler // nil disables dynamic scripts
	log          *zap.Logger

	static  staticHandler
	listing listingHandler
}

// RouterConfig carries the immutable configuration a Router is built from.
type RouterConfig struct {
	Root         string // absolute document root; must already be canonical
	AllowListing bool
	Auth         *AuthGate
	CGI          *CGIHandler
	Log          *zap.Logger
}

// NewRouter builds a Router. cfg.Log may be nil.
func NewRouter(cfg RouterConfig) *Router {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		root:         filepath.Clean(cfg.Root),
		allowListing: cfg.AllowListing,
		auth:         cfg.Auth,
		cgi:          cfg.CGI,
		log:          log,
	}
}

// Handle maps req to a response. It never returns nil and never panics on
// malformed targets; handler-level faults are mapped to error responses.
func (rt *Router) Handle(req *wire.Request, remoteAddr string) *wire.Response {
	if rt.auth != nil && !rt.auth.Allow(req) {
		res := wire.ErrorResponse(401, true)
		res.Headers.Set("WWW-Authenticate", `Basic realm="restricted"`)
		return res
	}

	// Asterisk-form and authority-form targets have no resource to serve.
	if req.Target == "*" || !strings.HasPrefix(req.Target, "/") {
		return wire.ErrorResponse(400, true)
	}

	reqPath, query, _ := strings.Cut(req.Target, "?")

	fsPath, ok := rt.resolve(reqPath)
	if !ok {
		rt.log.Warn("path escapes document root",
			zap.String("target", req.Target),
			zap.String("remote", remoteAddr))
		return wire.ErrorResponse(403, true)
	}

	res := resource{
		fsPath:     fsPath,
		reqPath:    reqPath,
		query:      query,
		remoteAddr: remoteAddr,
	}

	info, err := statResource(fsPath)
	if err != nil {
		return ioErrorResponse(err)
	}

	var out *wire.Response
	switch {
	case info.IsDir():
		if !rt.allowListing {
			return wire.ErrorResponse(403, true)
		}
		out = rt.listing.serve(req, res)
	case rt.cgi != nil && rt.cgi.Matches(fsPath):
		out = rt.cgi.serve(req, res)
	default:
		out = rt.static.serve(req, res)
	}

	return negotiate(req, out)
}

// resolve maps a request path onto the document root, rejecting any path
// whose dot-dot segments would climb above it. The check runs before any
// filesystem access.
func (rt *Router) resolve(reqPath string) (string, bool) {
	if strings.IndexByte(reqPath, 0) >= 0 {
		return "", false
	}
	depth := 0
	for _, seg := range strings.Split(reqPath, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", false
			}
		default:
			depth++
		}
	}
	clean := path.Clean(reqPath)
	full := filepath.Join(rt.root, filepath.FromSlash(clean))
	// Join cleans again; a resolved path outside the root means the lexical
	// guard above was bypassed somehow. Treat it as an escape.
	if full != rt.root && !strings.HasPrefix(full, rt.root+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// ioErrorResponse maps filesystem errors onto the spec's taxonomy.
func ioErrorResponse(err error) *wire.Response {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return wire.ErrorResponse(404, true)
	case errors.Is(err, fs.ErrPermission):
		return wire.ErrorResponse(403, true)
	default:
		return wire.ErrorResponse(500, true)
	}
}
