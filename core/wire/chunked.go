package wire

import (
	"bytes"
	"strconv"
)

// dechunk decodes a chunked transfer-coded body from the front of data.
//
// Format: hex-size[;extension] CRLF chunk-data CRLF ... 0 CRLF [trailers] CRLF.
// Chunk extensions are ignored; trailer headers are consumed and discarded.
// Returns the decoded body, the number of bytes consumed, ErrIncomplete when
// the framing is truncated, or a 400/413-class *Error.
func dechunk(data []byte, maxBody int64) ([]byte, int, error) {
	var body []byte
	pos := 0

	for {
		line, next, err := chunkLine(data, pos)
		if err != nil {
			return nil, 0, err
		}

		// Strip the chunk extension, everything after ';'.
		if semi := bytes.IndexByte(line, ';'); semi >= 0 {
			line = line[:semi]
		}
		line = trimOWS(line)

		size, err := parseChunkSize(line)
		if err != nil {
			return nil, 0, err
		}
		pos = next

		if size == 0 {
			n, err := skipTrailers(data, pos)
			if err != nil {
				return nil, 0, err
			}
			return body, n, nil
		}

		if int64(len(body))+size > maxBody {
			return nil, 0, errTooLargef("dechunked body exceeds limit of %d bytes", maxBody)
		}
		if int64(len(data)-pos) < size {
			return nil, 0, ErrIncomplete
		}
		body = append(body, data[pos:pos+int(size)]...)
		pos += int(size)

		// Chunk data is followed by its own CRLF.
		var ok bool
		pos, ok = skipCRLF(data, pos)
		if !ok {
			if pos >= len(data) {
				return nil, 0, ErrIncomplete
			}
			return nil, 0, errBadf("missing CRLF after chunk data")
		}
	}
}

// skipTrailers consumes optional trailer header lines after the zero chunk,
// up to and including the terminating blank line.
func skipTrailers(data []byte, pos int) (int, error) {
	for {
		line, next, err := chunkLine(data, pos)
		if err != nil {
			return 0, err
		}
		pos = next
		if len(line) == 0 {
			return pos, nil
		}
	}
}

// chunkLine reads one CRLF- or LF-terminated line starting at pos.
func chunkLine(data []byte, pos int) (line []byte, next int, err error) {
	if pos >= len(data) {
		return nil, 0, ErrIncomplete
	}
	nl := bytes.IndexByte(data[pos:], '\n')
	if nl < 0 {
		return nil, 0, ErrIncomplete
	}
	line = data[pos : pos+nl]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, pos + nl + 1, nil
}

// skipCRLF advances past CRLF or bare LF, reporting whether one was present.
func skipCRLF(data []byte, pos int) (int, bool) {
	if pos+1 < len(data) && data[pos] == '\r' && data[pos+1] == '\n' {
		return pos + 2, true
	}
	if pos < len(data) && data[pos] == '\n' {
		return pos + 1, true
	}
	return pos, false
}

func parseChunkSize(line []byte) (int64, error) {
	if len(line) == 0 {
		return 0, errBadf("empty chunk size line")
	}
	// Hex digits only; ParseInt alone would also accept a leading sign.
	for _, c := range line {
		if !isHexDigit(c) {
			return 0, errBadf("invalid chunk size %q", line)
		}
	}
	n, err := strconv.ParseInt(string(line), 16, 64)
	if err != nil {
		return 0, errBadf("invalid chunk size %q", line)
	}
	return n, nil
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// AppendChunked serializes body as chunked transfer coding, splitting it
// into chunks of at most chunkSize bytes and terminating with a zero chunk.
func AppendChunked(buf, body []byte, chunkSize int) []byte {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	for len(body) > 0 {
		n := len(body)
		if n > chunkSize {
			n = chunkSize
		}
		buf = strconv.AppendInt(buf, int64(n), 16)
		buf = append(buf, '\r', '\n')
		buf = append(buf, body[:n]...)
		buf = append(buf, '\r', '\n')
		body = body[n:]
	}
	buf = append(buf, '0', '\r', '\n', '\r', '\n')
	return buf
}
