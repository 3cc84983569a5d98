package dispatch

import (
	"fmt"
	"html"
	"os"
	"sort"
	"strings"

	"github.com/coreserve/httpd/core/wire"
)

// listingHandler renders a directory index: directories first, then files,
// each group in name order, with directories marked by a trailing slash.
type listingHandler struct{}

func (listingHandler) serve(_ *wire.Request, res resource) *wire.Response {
	entries, err := os.ReadDir(res.fsPath)
	if err != nil {
		return ioErrorResponse(err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	var items strings.Builder
	for _, e := range entries {
		name := e.Name()
		sep := "/"
		if strings.HasSuffix(res.reqPath, "/") {
			sep = ""
		}
		suffix := ""
		if e.IsDir() {
			suffix = "/"
		}
		fmt.Fprintf(&items, `<li><a href="%s">%s%s</a></li>`,
			html.EscapeString(res.reqPath+sep+name), html.EscapeString(name), suffix)
	}

	title := html.EscapeString("Index of " + res.reqPath)
	body := fmt.Sprintf(`<!DOCTYPE HTML>
<html lang="en">
<head><meta charset="utf-8"/><title>%s</title></head>
<body>
<h1>%s</h1>
<hr/>
<ul>%s</ul>
<hr/>
</body>
</html>
`, title, title, items.String())

	out := &wire.Response{Status: 200, Body: []byte(body)}
	out.Headers.Set("Content-Type", "text/html; charset=utf-8")
	return out
}
