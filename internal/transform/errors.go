package transform

import (
	"errors"
	"fmt"
)

var ErrUnexpectedKind = errors.New("unexpected input kind")

// Error is a file that matched a rule but could not be processed.
type Error struct {
	Path   string
	Loader string
	Line   int
	Column int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.Path, e.Line, e.Column)
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s loader: %s", loc, e.Loader, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}
