package session

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrBusy is returned by Submit while a build is running.
	ErrBusy = errors.New("a build is already running")
	// ErrStopped is returned once the controller loop has exited.
	ErrStopped = errors.New("session controller stopped")
	// ErrUnknownSession is returned by Wait for an id that is not the current session.
	ErrUnknownSession = errors.New("unknown session")

	errUnsupportedBootMode = errors.New("unsupported boot mode")
)

// ValidationError reports an unusable request field, typically a path that
// does not exist.
type ValidationError struct {
	Field string
	Path  string
	Err   error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Path == "":
		return fmt.Sprintf("%s is required", e.Field)
	case e.Err == nil || errors.Is(e.Err, fs.ErrNotExist):
		return fmt.Sprintf("%s %q does not exist", e.Field, e.Path)
	default:
		return fmt.Sprintf("%s %q: %v", e.Field, e.Path, e.Err)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
