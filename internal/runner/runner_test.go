package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/cochaviz/exactiso/internal/command"
)

func newTestRunner() *Runner {
	return &Runner{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func shellInvocation(t *testing.T, script string) command.Invocation {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return command.Invocation{Program: sh, Args: []string{"-c", script}}
}

func collect(t *testing.T, stream *LineStream) []string {
	t.Helper()
	var lines []string
	for stream.Next() {
		lines = append(lines, stream.Text())
	}
	return lines
}

func TestRunStreamsLinesInOrder(t *testing.T) {
	t.Parallel()

	inv := shellInvocation(t, `printf 'first\nsecond  \nthird\r\n'`)
	stream, err := newTestRunner().Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := collect(t, stream)
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected lines: got %q want %q", got, want)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if code := stream.ExitCode(); code != 0 {
		t.Fatalf("unexpected exit code %d", code)
	}
}

func TestRunMergesStderr(t *testing.T) {
	t.Parallel()

	inv := shellInvocation(t, `echo out-1; echo err-1 1>&2; echo out-2; echo err-2 1>&2`)
	stream, err := newTestRunner().Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := collect(t, stream)
	want := []string{"out-1", "err-1", "out-2", "err-2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected lines: got %q want %q", got, want)
	}
}

func TestRunDoesNotTreatExitCodeAsStreamError(t *testing.T) {
	t.Parallel()

	inv := shellInvocation(t, `echo failing; exit 3`)
	stream, err := newTestRunner().Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := collect(t, stream); len(got) != 1 || got[0] != "failing" {
		t.Fatalf("unexpected lines: %q", got)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("exit status must not surface as stream error, got %v", err)
	}
	if code := stream.ExitCode(); code != 3 {
		t.Fatalf("unexpected exit code: got %d want 3", code)
	}
	var exitErr *exec.ExitError
	if err := stream.Close(); !errors.As(err, &exitErr) {
		t.Fatalf("expected Close to report the exit error, got %v", err)
	}
}

func TestRunMissingProgramReturnsLaunchError(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	stream, err := newTestRunner().Run(context.Background(), command.Invocation{Program: missing})
	if stream != nil {
		t.Fatalf("expected no stream on launch failure")
	}

	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("expected *LaunchError, got %T (%v)", err, err)
	}
	if launchErr.Program != missing {
		t.Fatalf("unexpected program in error: %q", launchErr.Program)
	}
}

func TestRunEmptyProgramReturnsLaunchError(t *testing.T) {
	t.Parallel()

	_, err := newTestRunner().Run(context.Background(), command.Invocation{})
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("expected *LaunchError, got %v", err)
	}
}

func TestLineStreamIsSinglePass(t *testing.T) {
	t.Parallel()

	inv := shellInvocation(t, `echo only`)
	stream, err := newTestRunner().Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := collect(t, stream); len(got) != 1 {
		t.Fatalf("unexpected lines: %q", got)
	}
	if stream.Next() {
		t.Fatalf("exhausted stream produced another line: %q", stream.Text())
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("repeated Close() error = %v", err)
	}
}

func TestRunHandlesLongLines(t *testing.T) {
	t.Parallel()

	inv := shellInvocation(t, `i=0; while [ $i -lt 2000 ]; do printf 'abcdefghij'; i=$((i+1)); done; printf '\n'`)
	stream, err := newTestRunner().Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := collect(t, stream)
	if len(got) != 1 || len(got[0]) != 20000 {
		t.Fatalf("expected one 20000 byte line, got %d lines", len(got))
	}
}
