package dispatch

import (
	"io/fs"
	"os"

	"github.com/coreserve/httpd/core/wire"
)

// staticHandler serves a regular file in full. Range requests are not
// supported; a Range header is ignored and the whole resource is returned.
type staticHandler struct{}

func (staticHandler) serve(_ *wire.Request, res resource) *wire.Response {
	data, err := os.ReadFile(res.fsPath)
	if err != nil {
		return ioErrorResponse(err)
	}

	out := &wire.Response{Status: 200, Body: data}
	out.Headers.Set("Content-Type", mimeTypeFor(res.fsPath))
	return out
}

func statResource(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}
