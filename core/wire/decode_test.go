package wire

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest_Simple(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"

	req, n, err := DecodeRequest([]byte(raw), Limits{})
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html", req.Target)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.Equal(t, "example.com", req.Headers.Get("Host"))
	assert.Equal(t, "*/*", req.Headers.Get("Accept"))
	assert.Nil(t, req.Body)
}

func TestDecodeRequest_ContentLengthConsumesExactly(t *testing.T) {
	head := "POST /submit HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\n"
	raw := head + "helloGET /next HTTP/1.1\r\n"

	req, n, err := DecodeRequest([]byte(raw), Limits{})
	require.NoError(t, err)
	assert.Equal(t, len(head)+5, n, "must consume exactly header bytes + N body bytes")
	assert.Equal(t, []byte("hello"), req.Body)
}

func TestDecodeRequest_Incomplete(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"partial request line", "GET /index.htm"},
		{"missing header terminator", "GET / HTTP/1.1\r\nHost: x\r\n"},
		{"body shorter than declared", "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"},
		{"chunk data truncated", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nab"},
		{"missing final chunk", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabc\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeRequest([]byte(tc.raw), Limits{})
			assert.ErrorIs(t, err, ErrIncomplete, "slow clients must not be misclassified as bad requests")
		})
	}
}

func TestDecodeRequest_Malformed(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		status int
	}{
		{"no spaces in request line", "GET/index.html\r\n\r\n", 400},
		{"unknown version", "GET / HTTP/2.0\r\n\r\n", 400},
		{"unknown method", "BREW / HTTP/1.1\r\n\r\n", 501},
		{"non-token method", "G@T / HTTP/1.1\r\n\r\n", 400},
		{"header without colon", "GET / HTTP/1.1\r\nBogusHeader\r\n\r\n", 400},
		{"space before colon", "GET / HTTP/1.1\r\nHost : x\r\n\r\n", 400},
		{"negative content length", "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", 400},
		{"signed content length", "POST / HTTP/1.1\r\nContent-Length: +5\r\n\r\nhello", 400},
		{"non-numeric content length", "POST / HTTP/1.1\r\nContent-Length: abc\r\n\r\n", 400},
		{"conflicting content lengths", "POST / HTTP/1.1\r\nContent-Length: 2\r\nContent-Length: 5\r\n\r\nab", 400},
		{"content length with chunked", "POST / HTTP/1.1\r\nContent-Length: 3\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n", 400},
		{"invalid chunk size", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n\r\n", 400},
		{"signed chunk size", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n+5\r\nhello\r\n0\r\n\r\n", 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeRequest([]byte(tc.raw), Limits{})
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrIncomplete)
			assert.Equal(t, tc.status, StatusFor(err))
		})
	}
}

func TestDecodeRequest_DuplicateIdenticalContentLength(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 2\r\nContent-Length: 2\r\n\r\nab"
	req, _, err := DecodeRequest([]byte(raw), Limits{})
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), req.Body)
}

func TestDecodeRequest_HeaderTooLarge(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("a", 9000) + "\r\n\r\n"
	_, _, err := DecodeRequest([]byte(raw), Limits{MaxHeaderBytes: 1024})
	var we *Error
	require.True(t, errors.As(err, &we))
	assert.Equal(t, 413, we.Status)
}

func TestDecodeRequest_HeaderTooLargeWithoutTerminator(t *testing.T) {
	// No newline at all: once the buffer exceeds the budget the decoder must
	// fail instead of asking for more bytes forever.
	raw := "GET /" + strings.Repeat("a", 2048)
	_, _, err := DecodeRequest([]byte(raw), Limits{MaxHeaderBytes: 1024})
	assert.Equal(t, 413, StatusFor(err))
	assert.NotErrorIs(t, err, ErrIncomplete)
}

func TestDecodeRequest_BodyTooLarge(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 4096\r\n\r\n"
	_, _, err := DecodeRequest([]byte(raw), Limits{MaxBodyBytes: 1024})
	assert.Equal(t, 413, StatusFor(err))
}

func TestDecodeRequest_OrderedDuplicateHeaders(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Tag: one\r\nHost: x\r\nX-Tag: two\r\n\r\n"
	req, _, err := DecodeRequest([]byte(raw), Limits{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, req.Headers.Values("X-Tag"))
	assert.Equal(t, "one", req.Headers.Get("x-tag"), "lookups are case-insensitive")
}

func TestDecodeRequest_Chunked(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"

	req, n, err := DecodeRequest([]byte(raw), Limits{})
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, []byte("Wikipedia"), req.Body)
}

func TestDecodeRequest_ChunkedWithExtensionAndTrailer(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3;name=value\r\nabc\r\n0\r\nX-Checksum: abc123\r\n\r\n"

	req, n, err := DecodeRequest([]byte(raw), Limits{})
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, []byte("abc"), req.Body)
}

func TestChunkedRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 100))

	for _, chunkSize := range []int{1, 7, 64, 1000, 1 << 20} {
		framed := AppendChunked(nil, payload, chunkSize)
		body, n, err := dechunk(framed, DefaultLimits().MaxBodyBytes)
		require.NoError(t, err, "chunk size %d", chunkSize)
		assert.Equal(t, len(framed), n)
		assert.Equal(t, payload, body)
	}
}

func TestKeepAlive(t *testing.T) {
	cases := []struct {
		proto, conn string
		want        bool
	}{
		{"HTTP/1.1", "", true},
		{"HTTP/1.1", "keep-alive", true},
		{"HTTP/1.1", "close", false},
		{"HTTP/1.0", "", false},
		{"HTTP/1.0", "keep-alive", true},
		{"HTTP/1.0", "close", false},
	}
	for _, tc := range cases {
		req := &Request{Proto: tc.proto}
		if tc.conn != "" {
			req.Headers.Add("Connection", tc.conn)
		}
		assert.Equal(t, tc.want, req.KeepAlive(), "%s with Connection=%q", tc.proto, tc.conn)
	}
}
