package config

import (
	"errors"
	"fmt"
)

var (
	ErrNoEntries   = errors.New("no entry points configured")
	ErrEmptyEntry  = errors.New("entry has no files")
	ErrNoOutput    = errors.New("output path is required")
	ErrNoLoaders   = errors.New("rule has no loaders")
	ErrNameMissing = errors.New("filename template must contain [name] when there are several entries")
)

// Error is a malformed or missing descriptor field, reported before any build step runs.
type Error struct {
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("invalid build descriptor: %s: %s: %v", e.Field, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("invalid build descriptor: %s: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("invalid build descriptor: %s: %s", e.Field, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
