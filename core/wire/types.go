// Package wire implements the HTTP/1.1 wire format per RFC 9112: request
// decoding over a growable byte buffer, chunked transfer framing, and
// response serialization.
//
// All functions are stateless and safe for concurrent use; each connection
// drives its own buffer.
package wire

import (
	"strconv"
	"strings"
)

// Request is a decoded HTTP/1.1 request. A Request only exists if the
// request line and header section were well formed; malformed input is
// rejected during decoding and never reaches this type.
type Request struct {
	Method  string  // "GET", "POST", "PUT", "PATCH" or "DELETE"
	Target  string  // raw request-target, not yet resolved against a root
	Proto   string  // "HTTP/1.1" or "HTTP/1.0"
	Headers Headers // ordered, duplicates preserved
	Body    []byte  // nil if no body was declared
}

// Response is an HTTP/1.1 response ready for serialization.
type Response struct {
	Proto   string // defaults to "HTTP/1.1" when empty
	Status  int
	Reason  string // defaults to ReasonPhrase(Status) when empty
	Headers Headers
	Body    []byte
}

// Header is a single name/value pair.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered, repeatable header list. Lookups are
// case-insensitive; the original name casing and ordering are preserved.
type Headers []Header

// Get returns the first value for name, or "" if absent.
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Values returns all values for name in insertion order.
func (h Headers) Values(name string) []string {
	var vals []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			vals = append(vals, hdr.Value)
		}
	}
	return vals
}

// Has reports whether at least one header with the given name exists.
func (h Headers) Has(name string) bool {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return true
		}
	}
	return false
}

// Set replaces the first header named name and drops any later duplicates,
// appending if no such header exists.
func (h *Headers) Set(name, value string) {
	for i, hdr := range *h {
		if strings.EqualFold(hdr.Name, name) {
			(*h)[i].Value = value
			j := i + 1
			for j < len(*h) {
				if strings.EqualFold((*h)[j].Name, name) {
					*h = append((*h)[:j], (*h)[j+1:]...)
				} else {
					j++
				}
			}
			return
		}
	}
	*h = append(*h, Header{Name: name, Value: value})
}

// Add appends a header without replacing existing ones.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Del removes all headers with the given name.
func (h *Headers) Del(name string) {
	j := 0
	for _, hdr := range *h {
		if !strings.EqualFold(hdr.Name, name) {
			(*h)[j] = hdr
			j++
		}
	}
	*h = (*h)[:j]
}

// Clone returns a deep copy of the header list.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	clone := make(Headers, len(h))
	copy(clone, h)
	return clone
}

// IsChunked reports whether Transfer-Encoding names "chunked".
func (h Headers) IsChunked() bool {
	for _, v := range h.Values("Transfer-Encoding") {
		if strings.Contains(strings.ToLower(v), "chunked") {
			return true
		}
	}
	return false
}

// Methods understood by the server. Anything else fails decoding with a
// 501-class error.
var methods = map[string]struct{}{
	"GET":    {},
	"POST":   {},
	"PUT":    {},
	"PATCH":  {},
	"DELETE": {},
}

// KnownMethod reports whether m is one of the supported request methods.
func KnownMethod(m string) bool {
	_, ok := methods[m]
	return ok
}

var reasonPhrases = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// ReasonPhrase returns the registered reason phrase for a status code, or
// the bare code in decimal if it is not registered.
func ReasonPhrase(code int) string {
	if r, ok := reasonPhrases[code]; ok {
		return r
	}
	return strconv.Itoa(code)
}

// KeepAlive reports whether the connection should persist after answering
// req. HTTP/1.1 defaults to persistent, HTTP/1.0 to non-persistent; the
// Connection header overrides either default.
func (r *Request) KeepAlive() bool {
	conn := strings.ToLower(r.Headers.Get("Connection"))
	if r.Proto == "HTTP/1.0" {
		return strings.Contains(conn, "keep-alive")
	}
	return !strings.Contains(conn, "close")
}
