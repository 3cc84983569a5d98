package wire

import "fmt"

// ErrorResponse builds a well-formed error response for a status code,
// optionally carrying a small HTML document naming the status.
func ErrorResponse(status int, withBody bool) *Response {
	res := &Response{Status: status}
	if !withBody {
		return res
	}
	title := fmt.Sprintf("%d %s", status, ReasonPhrase(status))
	body := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"/><title>%s</title></head>
<body><h1>%s</h1></body>
</html>
`, title, title)
	res.Headers.Set("Content-Type", "text/html; charset=utf-8")
	res.Body = []byte(body)
	return res
}
