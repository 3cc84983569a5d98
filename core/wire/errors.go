package wire

import (
	"errors"
	"fmt"
)

// ErrIncomplete signals that the buffer does not yet hold a full message.
// The caller should read more bytes and retry; it is never a client error.
var ErrIncomplete = errors.New("wire: incomplete message")

// Error is a malformed-message error with a suggested response status:
// 400 for grammar and framing violations, 413 for oversized input,
// 501 for an unrecognized method.
type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("wire: %s", e.Msg)
}

func errBadf(format string, args ...any) *Error {
	return &Error{Status: 400, Msg: fmt.Sprintf(format, args...)}
}

func errTooLargef(format string, args ...any) *Error {
	return &Error{Status: 413, Msg: fmt.Sprintf(format, args...)}
}

func errNotImplementedf(format string, args ...any) *Error {
	return &Error{Status: 501, Msg: fmt.Sprintf(format, args...)}
}

// StatusFor maps a decode error to the status code of the response that
// should be sent before closing the connection.
func StatusFor(err error) int {
	var we *Error
	if errors.As(err, &we) {
		return we.Status
	}
	return 400
}
