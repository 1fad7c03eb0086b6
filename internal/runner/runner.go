package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"unicode"

	"github.com/cochaviz/exactiso/internal/command"
)

// maxLineSize bounds a single line of tool output.
const maxLineSize = 1 << 20

// Runner starts invocations as child processes with merged output.
type Runner struct {
	Logger *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Lines is the read side of a LineStream.
type Lines interface {
	Next() bool
	Text() string
	Err() error
	Close() error
}

var _ Lines = (*LineStream)(nil)

// Launch is Run with the stream returned as Lines.
func (r *Runner) Launch(ctx context.Context, inv command.Invocation) (Lines, error) {
	stream, err := r.Run(ctx, inv)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Run starts inv and returns a stream over its combined stdout and stderr.
// If the program cannot be started a *LaunchError is returned and no process
// is left behind.
func (r *Runner) Run(ctx context.Context, inv command.Invocation) (*LineStream, error) {
	if strings.TrimSpace(inv.Program) == "" {
		return nil, &LaunchError{Program: inv.Program, Err: errors.New("no program provided")}
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Program: inv.Program, Err: fmt.Errorf("create output pipe: %w", err)}
	}

	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = nil
	// One descriptor for both streams keeps writes in the order the child made them.
	cmd.Stdout = pw
	cmd.Stderr = pw

	logger := r.logger().With("program", inv.Program)
	logger.Debug("starting process", "command", inv.CommandLine(), "dir", inv.Dir)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &LaunchError{Program: inv.Program, Err: err}
	}
	// The child holds its own copy; closing ours lets EOF arrive when it exits.
	pw.Close()

	logger.Debug("process started", "pid", cmd.Process.Pid)

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &LineStream{
		cmd:     cmd,
		pipe:    pr,
		scanner: scanner,
		logger:  logger,
	}, nil
}

// LineStream is a single-pass, ordered sequence of output lines. It is used
// like bufio.Scanner:
//
//	for stream.Next() {
//		fmt.Println(stream.Text())
//	}
//	if err := stream.Err(); err != nil { ... }
//
// The process is reaped once the stream is exhausted. Close may be called at
// any time and is safe to call more than once.
type LineStream struct {
	cmd     *exec.Cmd
	pipe    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger

	line string
	err  error
	done bool

	closeOnce sync.Once
	waitErr   error
	exitCode  int
}

// Next advances to the next line. It returns false when the child closed its
// output or reading failed.
func (s *LineStream) Next() bool {
	if s == nil || s.done {
		return false
	}
	if s.scanner.Scan() {
		s.line = strings.TrimRightFunc(s.scanner.Text(), unicode.IsSpace)
		return true
	}

	s.done = true
	s.line = ""
	if err := s.scanner.Err(); err != nil {
		s.err = &StreamError{Err: err}
	}
	s.Close()
	return false
}

// Text returns the line produced by the most recent call to Next, trimmed of
// trailing whitespace.
func (s *LineStream) Text() string {
	return s.line
}

// Err returns the first read error, if any. Exit status is not an error.
func (s *LineStream) Err() error {
	return s.err
}

// ExitCode returns the child's exit code once the stream has been closed, or
// -1 if it is unknown.
func (s *LineStream) ExitCode() int {
	s.Close()
	return s.exitCode
}

// Close releases the pipe and waits for the child process. The returned error
// is the wait error, which callers may log but which does not by itself mean
// the build failed.
func (s *LineStream) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.done = true
		s.pipe.Close()
		s.waitErr = s.cmd.Wait()
		s.exitCode = -1
		if s.cmd.ProcessState != nil {
			s.exitCode = s.cmd.ProcessState.ExitCode()
		}
		s.logger.Debug("process exited", "exit_code", s.exitCode)
	})
	return s.waitErr
}
