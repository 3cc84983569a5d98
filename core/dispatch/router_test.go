package dispatch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreserve/httpd/core/wire"
)

func testRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.json"), []byte(`{"a":1}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "images", "pic.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644))
	return root
}

func getRequest(target string) *wire.Request {
	return &wire.Request{Method: "GET", Target: target, Proto: "HTTP/1.1"}
}

func TestRouter_StaticFile(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t)})

	res := rt.Handle(getRequest("/index.html"), "127.0.0.1:9999")
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "hi", string(res.Body))
	assert.Equal(t, "text/html; charset=utf-8", res.Headers.Get("Content-Type"))
}

func TestRouter_MimeTypes(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t)})

	res := rt.Handle(getRequest("/data.json"), "127.0.0.1:9999")
	assert.Equal(t, "application/json; charset=utf-8", res.Headers.Get("Content-Type"))

	res = rt.Handle(getRequest("/images/pic.png"), "127.0.0.1:9999")
	assert.Equal(t, "image/png", res.Headers.Get("Content-Type"))
}

func TestRouter_NotFound(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t)})

	res := rt.Handle(getRequest("/missing.html"), "127.0.0.1:9999")
	assert.Equal(t, 404, res.Status)
	assert.Contains(t, string(res.Body), "404 Not Found")
}

func TestRouter_PathTraversalForbidden(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t)})

	targets := []string{
		"/../../etc/passwd",
		"/..",
		"/images/../../etc/passwd",
		"/images/../../../root",
		"/\x00",
	}
	for _, target := range targets {
		res := rt.Handle(getRequest(target), "127.0.0.1:9999")
		assert.Equal(t, 403, res.Status, "target %q must not escape the root", target)
	}
}

func TestRouter_DotDotThatStaysInsideRootIsAllowed(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t)})

	res := rt.Handle(getRequest("/images/../index.html"), "127.0.0.1:9999")
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "hi", string(res.Body))
}

func TestRouter_AsteriskTarget(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t)})

	res := rt.Handle(getRequest("*"), "127.0.0.1:9999")
	assert.Equal(t, 400, res.Status)
}

func TestRouter_DirectoryListingDisabled(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t), AllowListing: false})

	res := rt.Handle(getRequest("/images/"), "127.0.0.1:9999")
	assert.Equal(t, 403, res.Status)
}

func TestRouter_DirectoryListingEnabled(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t), AllowListing: true})

	res := rt.Handle(getRequest("/"), "127.0.0.1:9999")
	require.Equal(t, 200, res.Status)
	body := string(res.Body)
	assert.Contains(t, body, "Index of /")
	assert.Contains(t, body, `<a href="/images/">images/</a>`)
	assert.Contains(t, body, `<a href="/index.html">index.html</a>`)
	// Directories sort before files.
	assert.Less(t, strings.Index(body, "images"), strings.Index(body, "index.html"))
}

func TestRouter_AuthRequired(t *testing.T) {
	gate := NewAuthGate([]Credential{{User: "alice", Pass: "secret"}})
	rt := NewRouter(RouterConfig{Root: testRoot(t), Auth: gate})

	res := rt.Handle(getRequest("/index.html"), "127.0.0.1:9999")
	assert.Equal(t, 401, res.Status)
	assert.Contains(t, res.Headers.Get("WWW-Authenticate"), "Basic")

	req := getRequest("/index.html")
	req.Headers.Add("Authorization", "Basic YWxpY2U6c2VjcmV0") // alice:secret
	res = rt.Handle(req, "127.0.0.1:9999")
	assert.Equal(t, 200, res.Status)
}

func TestRouter_GzipNegotiation(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t)})

	req := getRequest("/index.html")
	req.Headers.Add("Accept-Encoding", "gzip, deflate")
	res := rt.Handle(req, "127.0.0.1:9999")
	require.Equal(t, 200, res.Status)
	assert.Equal(t, "gzip", res.Headers.Get("Content-Encoding"))
	assert.NotEqual(t, "hi", string(res.Body))

	// Identity when the client does not accept gzip.
	res = rt.Handle(getRequest("/index.html"), "127.0.0.1:9999")
	assert.Empty(t, res.Headers.Get("Content-Encoding"))
	assert.Equal(t, "hi", string(res.Body))
}

func TestRouter_UnsupportedMediaType(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t)})

	req := getRequest("/images/pic.png")
	req.Headers.Add("Accept", "text/html")
	res := rt.Handle(req, "127.0.0.1:9999")
	assert.Equal(t, 415, res.Status)

	req = getRequest("/images/pic.png")
	req.Headers.Add("Accept", "image/*")
	res = rt.Handle(req, "127.0.0.1:9999")
	assert.Equal(t, 200, res.Status)

	req = getRequest("/images/pic.png")
	req.Headers.Add("Accept", "*/*")
	res = rt.Handle(req, "127.0.0.1:9999")
	assert.Equal(t, 200, res.Status)
}

func TestRouter_IdempotentGet(t *testing.T) {
	rt := NewRouter(RouterConfig{Root: testRoot(t)})

	first := rt.Handle(getRequest("/index.html"), "127.0.0.1:9999")
	second := rt.Handle(getRequest("/index.html"), "127.0.0.1:9999")
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Body, second.Body)
}
