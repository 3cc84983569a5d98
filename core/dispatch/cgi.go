package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/coreserve/httpd/core/wire"
)

// DefaultCGITimeout bounds script execution when no timeout is configured.
const DefaultCGITimeout = 30 * time.Second

// CGIHandler bridges requests to an external script interpreter speaking
// CGI/1.1: the request is mapped to environment variables, the body is
// piped to the subprocess's stdin, and its stdout is parsed as a CGI header
// block followed by the response body.
//
// The subprocess runs inside the calling connection's goroutine, so a slow
// script stalls only its own connection.
type CGIHandler struct {
	interpreter string
	exts        map[string]struct{}
	timeout     time.Duration
	log         *zap.Logger
}

// NewCGIHandler builds a handler that runs interpreter for any resolved
// path whose extension is in exts (e.g. ".php").
func NewCGIHandler(interpreter string, exts []string, timeout time.Duration, log *zap.Logger) *CGIHandler {
	if timeout <= 0 {
		timeout = DefaultCGITimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = struct{}{}
	}
	return &CGIHandler{
		interpreter: interpreter,
		exts:        set,
		timeout:     timeout,
		log:         log,
	}
}

// Matches reports whether path has a configured dynamic extension.
func (h *CGIHandler) Matches(path string) bool {
	_, ok := h.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (h *CGIHandler) serve(req *wire.Request, res resource) *wire.Response {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.interpreter, res.fsPath)
	cmd.Dir = filepath.Dir(res.fsPath)
	cmd.Env = cgiEnv(req, res)

	// The script runs in its own process group so that a timeout kills any
	// children it spawned, not just the interpreter itself.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	if len(req.Body) > 0 {
		cmd.Stdin = bytes.NewReader(req.Body)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		h.log.Warn("cgi script timed out",
			zap.String("script", res.fsPath),
			zap.Duration("timeout", h.timeout))
		return wire.ErrorResponse(504, true)
	}
	if err != nil {
		var execErr *exec.Error
		var pathErr *fs.PathError
		if errors.As(err, &execErr) || errors.As(err, &pathErr) {
			// The interpreter binary itself could not be started; this is a
			// server misconfiguration, not a script failure.
			h.log.Error("cannot launch cgi interpreter",
				zap.String("interpreter", h.interpreter),
				zap.Error(err))
			return wire.ErrorResponse(500, true)
		}
		h.log.Warn("cgi script failed",
			zap.String("script", res.fsPath),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return wire.ErrorResponse(502, true)
	}

	out, err := parseCGIOutput(stdout.Bytes())
	if err != nil {
		h.log.Warn("malformed cgi output",
			zap.String("script", res.fsPath),
			zap.Error(err))
		return wire.ErrorResponse(502, true)
	}
	return out
}

// cgiEnv maps the request onto CGI/1.1 meta-variables. The Authorization
// header is deliberately not forwarded.
func cgiEnv(req *wire.Request, res resource) []string {
	remoteHost := res.remoteAddr
	if host, _, err := net.SplitHostPort(res.remoteAddr); err == nil {
		remoteHost = host
	}

	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_SOFTWARE=" + wire.ServerName,
		"SERVER_PROTOCOL=" + req.Proto,
		"REQUEST_METHOD=" + req.Method,
		"SCRIPT_FILENAME=" + res.fsPath,
		"SCRIPT_NAME=" + res.reqPath,
		"QUERY_STRING=" + res.query,
		"REMOTE_ADDR=" + remoteHost,
		// php-cgi refuses to execute without this when force-cgi-redirect
		// is compiled in.
		"REDIRECT_STATUS=200",
	}

	// CGI/1.1 wants CONTENT_LENGTH whenever the request declared a length,
	// including an explicit zero. Chunked requests report the dechunked size.
	if req.Headers.Has("Content-Length") || len(req.Body) > 0 {
		env = append(env, "CONTENT_LENGTH="+strconv.Itoa(len(req.Body)))
	}
	if ct := req.Headers.Get("Content-Type"); ct != "" {
		env = append(env, "CONTENT_TYPE="+ct)
	}

	for _, hdr := range req.Headers {
		name := strings.ToUpper(strings.ReplaceAll(hdr.Name, "-", "_"))
		switch name {
		case "CONTENT_TYPE", "CONTENT_LENGTH", "AUTHORIZATION":
			continue
		}
		env = append(env, "HTTP_"+name+"="+hdr.Value)
	}
	return env
}

// parseCGIOutput splits the subprocess's stdout into its header block and
// body. A missing blank-line separator or a header line without a colon is
// a malformed block.
func parseCGIOutput(out []byte) (*wire.Response, error) {
	head, body, ok := cutHeaderBlock(out)
	if !ok {
		return nil, fmt.Errorf("missing header/body separator")
	}

	res := &wire.Response{Status: 200}
	for _, line := range bytes.Split(head, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		name, value, found := bytes.Cut(line, []byte(":"))
		if !found || len(bytes.TrimSpace(name)) == 0 {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		res.Headers.Add(string(bytes.TrimSpace(name)), string(bytes.TrimSpace(value)))
	}

	if status := res.Headers.Get("Status"); status != "" {
		code, _, _ := strings.Cut(status, " ")
		n, err := strconv.Atoi(code)
		if err != nil || n < 100 || n > 599 {
			return nil, fmt.Errorf("invalid Status header %q", status)
		}
		res.Status = n
		res.Headers.Del("Status")
	}

	if !res.Headers.Has("Content-Type") {
		return nil, fmt.Errorf("header block lacks Content-Type")
	}

	res.Body = body
	return res, nil
}

// cutHeaderBlock finds the first blank line, accepting CRLF and LF endings.
func cutHeaderBlock(out []byte) (head, body []byte, ok bool) {
	if i := bytes.Index(out, []byte("\r\n\r\n")); i >= 0 {
		return out[:i], out[i+4:], true
	}
	if i := bytes.Index(out, []byte("\n\n")); i >= 0 {
		return out[:i], out[i+2:], true
	}
	return nil, nil, false
}
