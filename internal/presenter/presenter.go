// Package presenter renders build sessions on a terminal.
package presenter

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/theckman/yacspin"
	"golang.org/x/term"

	"github.com/cochaviz/exactiso/internal/build"
	"github.com/cochaviz/exactiso/internal/session"
)

// LineWriter prints every tool line verbatim and a short summary when the
// session ends.
type LineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewLineWriter returns a LineWriter printing to out.
func NewLineWriter(out io.Writer) *LineWriter {
	return &LineWriter{out: out}
}

func (w *LineWriter) OnLine(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, line)
}

func (w *LineWriter) OnStatusChange(s build.BuildSession) {
	if !s.Status.Terminal() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, summary(s))
}

// Spinner keeps an animated status line at the bottom of the terminal that
// shows the most recent tool line. Tool lines are still printed in full
// above it.
type Spinner struct {
	out     io.Writer
	width   func() int
	spinner *yacspin.Spinner
}

// NewSpinner creates a spinner on out. width reports the terminal width; nil
// means 80 columns.
func NewSpinner(out io.Writer, width func() int) (*Spinner, error) {
	if width == nil {
		width = func() int { return 80 }
	}
	spinner, err := yacspin.New(yacspin.Config{
		Writer:            out,
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		Colors:            []string{"fgHiCyan"},
		StopColors:        []string{"fgHiGreen"},
		StopFailColors:    []string{"fgHiRed"},
		StopCharacter:     "✓",
		StopFailCharacter: "✗",
	})
	if err != nil {
		return nil, fmt.Errorf("create spinner: %w", err)
	}
	return &Spinner{out: out, width: width, spinner: spinner}, nil
}

func (s *Spinner) OnLine(line string) {
	if s.spinner.Status() == yacspin.SpinnerRunning {
		_ = s.spinner.Pause()
		defer s.spinner.Unpause()
	}
	fmt.Fprintln(s.out, line)
	s.spinner.Message(truncate(line, s.width()-6))
}

func (s *Spinner) OnStatusChange(bs build.BuildSession) {
	switch bs.Status {
	case build.BuildStatusRunning:
		s.spinner.Message("starting image tool")
		_ = s.spinner.Start()
	case build.BuildStatusCompleted:
		s.spinner.StopMessage(summary(bs))
		_ = s.spinner.Stop()
	case build.BuildStatusFailed:
		s.spinner.StopFailMessage(summary(bs))
		_ = s.spinner.StopFail()
	}
}

var (
	_ session.Observer = (*LineWriter)(nil)
	_ session.Observer = (*Spinner)(nil)
)

// ForFile picks the spinner when f is a terminal and a LineWriter otherwise.
func ForFile(f *os.File) session.Observer {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return NewLineWriter(f)
	}
	spinner, err := NewSpinner(f, func() int {
		width, _, err := term.GetSize(fd)
		if err != nil || width <= 0 {
			return 80
		}
		return width
	})
	if err != nil {
		return NewLineWriter(f)
	}
	return spinner
}

func summary(s build.BuildSession) string {
	elapsed := s.FinishedAt.Sub(s.StartedAt).Round(time.Second)
	switch s.Status {
	case build.BuildStatusCompleted:
		return fmt.Sprintf("build completed in %s (%d lines)", elapsed, len(s.Log))
	case build.BuildStatusFailed:
		return fmt.Sprintf("build failed after %s", elapsed)
	default:
		return string(s.Status)
	}
}

// truncate shortens input to at most max runes, keeping the tail.
func truncate(input string, max int) string {
	if max < 10 {
		max = 10
	}
	runes := []rune(input)
	if len(runes) <= max {
		return input
	}
	return "..." + string(runes[len(runes)-(max-3):])
}
