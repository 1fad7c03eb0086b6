package presenter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cochaviz/exactiso/internal/build"
)

func TestLineWriterPrintsLinesAndSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewLineWriter(&buf)

	start := time.Unix(1_700_000_000, 0)
	w.OnStatusChange(build.BuildSession{Status: build.BuildStatusRunning, StartedAt: start})
	w.OnLine("Detecting boot mode")
	w.OnLine("ISO created")
	w.OnStatusChange(build.BuildSession{
		Status:     build.BuildStatusCompleted,
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Log:        []string{"Detecting boot mode", "ISO created"},
	})

	want := "Detecting boot mode\nISO created\nbuild completed in 1m30s (2 lines)\n"
	if got := buf.String(); got != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", got, want)
	}
}

func TestLineWriterReportsFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewLineWriter(&buf)
	w.OnStatusChange(build.BuildSession{Status: build.BuildStatusFailed})

	if !strings.Contains(buf.String(), "build failed") {
		t.Fatalf("missing failure summary: %q", buf.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerPrintsLinesWithoutTerminal(t *testing.T) {
	t.Parallel()

	var buf syncBuffer
	s, err := NewSpinner(&buf, nil)
	if err != nil {
		t.Fatalf("NewSpinner() error = %v", err)
	}

	s.OnStatusChange(build.BuildSession{Status: build.BuildStatusRunning})
	s.OnLine("copying install.wim")
	s.OnStatusChange(build.BuildSession{Status: build.BuildStatusCompleted, Log: []string{"copying install.wim"}})

	if !strings.Contains(buf.String(), "copying install.wim") {
		t.Fatalf("line not printed: %q", buf.String())
	}
}

func TestForFileFallsBackToLineWriter(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()

	if _, ok := ForFile(f).(*LineWriter); !ok {
		t.Fatalf("expected LineWriter for a regular file")
	}
}

func TestTruncateKeepsTail(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 40); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
	got := truncate(strings.Repeat("a", 30)+"TAIL", 12)
	if got != "...aaaaaTAIL" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
