package runner

import "fmt"

// LaunchError reports that the external program could not be started.
type LaunchError struct {
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// StreamError reports a failure while reading process output.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("read process output: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
