package dispatch

import (
	"bytes"
	"compress/gzip"
	"path/filepath"
	"strings"

	"github.com/coreserve/httpd/core/wire"
)

// Fixed extension-to-mime mapping. Anything unknown is served as an opaque
// octet stream.
var mimeTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".xml":   "application/xml; charset=utf-8",
	".txt":   "text/plain; charset=utf-8",
	".md":    "text/markdown; charset=utf-8",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".pdf":   "application/pdf",
	".zip":   "application/zip",
	".gz":    "application/gzip",
	".tar":   "application/x-tar",
	".wasm":  "application/wasm",
	".mp4":   "video/mp4",
	".mp3":   "audio/mpeg",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

func mimeTypeFor(path string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}

// negotiate applies content negotiation to an already-built response:
// an Accept header incompatible with the response's Content-Type yields
// 415, and a client that accepts gzip gets a compressed body.
func negotiate(req *wire.Request, res *wire.Response) *wire.Response {
	if res.Status == 200 {
		accept := req.Headers.Get("Accept")
		actual := res.Headers.Get("Content-Type")
		if accept != "" && actual != "" && !acceptCompatible(accept, actual) {
			return wire.ErrorResponse(415, false)
		}
	}

	if len(res.Body) > 0 && !res.Headers.Has("Content-Encoding") && acceptsGzip(req.Headers.Get("Accept-Encoding")) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(res.Body); err == nil && zw.Close() == nil {
			res.Body = buf.Bytes()
			res.Headers.Set("Content-Encoding", "gzip")
			res.Headers.Del("Content-Length")
		}
	}
	return res
}

// acceptsGzip parses an Accept-Encoding value and reports whether gzip is
// an acceptable coding (directly or via "*"), honoring q=0 exclusions.
func acceptsGzip(value string) bool {
	for _, part := range strings.Split(value, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != "gzip" && coding != "*" {
			continue
		}
		q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
		if q == "q=0" || strings.HasPrefix(q, "q=0.0") || strings.HasPrefix(q, "q=0,") {
			continue
		}
		return true
	}
	return false
}

// acceptCompatible reports whether any media range in the Accept value
// covers the actual content type, with "*" matching any type or subtype.
func acceptCompatible(accept, actual string) bool {
	actualType, actualSub := splitMime(actual)
	for _, part := range strings.Split(accept, ",") {
		rangeVal, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		accType, accSub := splitMime(rangeVal)
		if (accType == "*" || accType == actualType) && (accSub == "*" || accSub == actualSub) {
			return true
		}
	}
	return false
}

func splitMime(value string) (string, string) {
	essence, _, _ := strings.Cut(strings.TrimSpace(value), ";")
	typ, sub, ok := strings.Cut(strings.ToLower(strings.TrimSpace(essence)), "/")
	if !ok {
		return typ, "*"
	}
	return typ, sub
}
