package wire

import (
	"strconv"
	"sync"
	"time"
)

// ServerName is the Server header value stamped on responses that did not
// set their own.
const ServerName = "coreserve-httpd"

// bufPool recycles encode buffers across connections.
var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 2048)
		return &b
	},
}

// EncodeResponse returns the exact wire bytes for res: status line, headers
// in insertion order, blank line, then the body. Content-Length is computed
// and inserted when a body is present and the handler omitted it; Date and
// Server are defaulted likewise.
func EncodeResponse(res *Response) []byte {
	bp := bufPool.Get().(*[]byte)
	buf := AppendResponse((*bp)[:0], res)

	out := make([]byte, len(buf))
	copy(out, buf)
	*bp = buf
	bufPool.Put(bp)
	return out
}

// AppendResponse appends the wire encoding of res to buf and returns the
// extended slice.
func AppendResponse(buf []byte, res *Response) []byte {
	proto := res.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	reason := res.Reason
	if reason == "" {
		reason = ReasonPhrase(res.Status)
	}

	buf = append(buf, proto...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(res.Status), 10)
	buf = append(buf, ' ')
	buf = append(buf, reason...)
	buf = append(buf, '\r', '\n')

	for _, h := range res.Headers {
		buf = append(buf, h.Name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, h.Value...)
		buf = append(buf, '\r', '\n')
	}

	if !res.Headers.Has("Date") {
		buf = append(buf, "Date: "...)
		buf = append(buf, time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")...)
		buf = append(buf, '\r', '\n')
	}
	if !res.Headers.Has("Server") {
		buf = append(buf, "Server: "...)
		buf = append(buf, ServerName...)
		buf = append(buf, '\r', '\n')
	}
	// Without Content-Length or chunked framing the client would have to
	// wait for connection close to delimit the body, which defeats
	// keep-alive. Zero-byte bodies therefore get an explicit length too.
	if !res.Headers.Has("Content-Length") && !res.Headers.IsChunked() && bodyAllowed(res.Status) {
		buf = append(buf, "Content-Length: "...)
		buf = strconv.AppendInt(buf, int64(len(res.Body)), 10)
		buf = append(buf, '\r', '\n')
	}

	buf = append(buf, '\r', '\n')
	if len(res.Body) > 0 {
		buf = append(buf, res.Body...)
	}
	return buf
}

// bodyAllowed reports whether a status code permits a message body and thus
// a Content-Length header: 1xx, 204 and 304 forbid both.
func bodyAllowed(status int) bool {
	if status >= 100 && status < 200 {
		return false
	}
	return status != 204 && status != 304
}
