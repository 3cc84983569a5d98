package wire

import (
	"bytes"
	"strconv"
	"strings"
)

// Limits bounds how much memory a single request may consume while being
// decoded. Exceeding either bound fails decoding with a 413-class error
// instead of buffering unboundedly.
type Limits struct {
	MaxHeaderBytes int   // request line + header section + terminating blank line
	MaxBodyBytes   int64 // declared or dechunked body size
}

// DefaultLimits returns the limits used when a caller passes a zero value.
func DefaultLimits() Limits {
	return Limits{
		MaxHeaderBytes: 8 << 10,
		MaxBodyBytes:   10 << 20,
	}
}

func (l Limits) orDefault() Limits {
	d := DefaultLimits()
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = d.MaxHeaderBytes
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = d.MaxBodyBytes
	}
	return l
}

// DecodeRequest decodes one request from the front of data and returns it
// together with the number of bytes consumed, so the caller can keep any
// pipelined bytes that follow.
//
// If data does not yet hold a complete message the error is ErrIncomplete
// and the caller should read more bytes and retry; any other error is a
// malformed request carrying a suggested status via *Error. Partial input
// is never misclassified as malformed.
func DecodeRequest(data []byte, limits Limits) (*Request, int, error) {
	limits = limits.orDefault()
	d := &decoder{data: data, max: limits.MaxHeaderBytes}

	method, target, proto, err := d.requestLine()
	if err != nil {
		return nil, 0, err
	}

	headers, err := d.headerSection()
	if err != nil {
		return nil, 0, err
	}

	body, err := d.body(headers, limits.MaxBodyBytes)
	if err != nil {
		return nil, 0, err
	}

	return &Request{
		Method:  method,
		Target:  target,
		Proto:   proto,
		Headers: headers,
		Body:    body,
	}, d.pos, nil
}

type decoder struct {
	data []byte
	pos  int
	max  int // header-section byte budget; 0 once the head is done
}

// line returns the next line without its terminator, accepting both CRLF
// and bare LF endings. ErrIncomplete is returned when no terminator has
// arrived yet, unless the header budget is already blown.
func (d *decoder) line() ([]byte, error) {
	rest := d.data[d.pos:]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		if d.max > 0 && len(d.data) > d.max {
			return nil, errTooLargef("header section exceeds %d bytes", d.max)
		}
		return nil, ErrIncomplete
	}
	if d.max > 0 && d.pos+nl+1 > d.max {
		return nil, errTooLargef("header section exceeds %d bytes", d.max)
	}
	line := rest[:nl]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	d.pos += nl + 1
	return line, nil
}

// requestLine parses "METHOD SP target SP HTTP-VERSION".
func (d *decoder) requestLine() (method, target, proto string, err error) {
	line, err := d.line()
	if err != nil {
		return "", "", "", err
	}

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return "", "", "", errBadf("malformed request line: %q", line)
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 < 0 {
		return "", "", "", errBadf("malformed request line: %q", line)
	}
	sp2 += sp1 + 1

	method = string(line[:sp1])
	target = string(line[sp1+1 : sp2])
	proto = string(line[sp2+1:])

	if !isToken(method) {
		return "", "", "", errBadf("invalid method %q", method)
	}
	if !KnownMethod(method) {
		return "", "", "", errNotImplementedf("method %q not implemented", method)
	}
	if target == "" {
		return "", "", "", errBadf("empty request target")
	}
	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		return "", "", "", errBadf("unsupported protocol version %q", proto)
	}
	return method, target, proto, nil
}

// headerSection parses header lines until the terminating blank line.
func (d *decoder) headerSection() (Headers, error) {
	headers := make(Headers, 0, 8)
	for {
		line, err := d.line()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			d.max = 0 // head complete, body is bounded separately
			return headers, nil
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return nil, errBadf("malformed header line: %q", line)
		}
		// RFC 9112 forbids whitespace between field-name and colon.
		if line[colon-1] == ' ' || line[colon-1] == '\t' {
			return nil, errBadf("whitespace before colon in header: %q", line)
		}
		name := string(line[:colon])
		if !isToken(name) {
			return nil, errBadf("invalid header name: %q", name)
		}
		value := string(trimOWS(line[colon+1:]))
		headers = append(headers, Header{Name: name, Value: value})
	}
}

// body determines framing per RFC 9112: chunked transfer coding wins,
// then Content-Length, otherwise the request has no body.
func (d *decoder) body(headers Headers, maxBody int64) ([]byte, error) {
	chunked := headers.IsChunked()
	cls := headers.Values("Content-Length")

	if chunked {
		if len(cls) > 0 {
			// Ambiguous framing is a smuggling vector, reject outright.
			return nil, errBadf("both Content-Length and chunked transfer coding present")
		}
		body, n, err := dechunk(d.data[d.pos:], maxBody)
		if err != nil {
			return nil, err
		}
		d.pos += n
		return body, nil
	}

	if len(cls) == 0 {
		return nil, nil
	}

	// At most one Content-Length value is accepted; repeated identical
	// values collapse, conflicting values are malformed.
	first := strings.TrimSpace(cls[0])
	for _, v := range cls[1:] {
		if strings.TrimSpace(v) != first {
			return nil, errBadf("conflicting Content-Length values")
		}
	}
	// The grammar admits digits only; ParseInt alone would also accept a
	// leading sign.
	if !isDigits(first) {
		return nil, errBadf("invalid Content-Length %q", first)
	}
	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return nil, errBadf("invalid Content-Length %q", first)
	}
	if n > maxBody {
		return nil, errTooLargef("declared body of %d bytes exceeds limit of %d", n, maxBody)
	}
	if int64(len(d.data)-d.pos) < n {
		return nil, ErrIncomplete
	}
	if n == 0 {
		return nil, nil
	}
	body := make([]byte, n)
	copy(body, d.data[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return body, nil
}

// isToken reports whether s is a valid RFC 9110 token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenByte(s[i]) {
			return false
		}
	}
	return true
}

func isTokenByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// trimOWS trims optional whitespace (SP and HTAB) from both ends.
func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
