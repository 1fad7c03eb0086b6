package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kdomanski/iso9660"
)

func writeTestImage(t *testing.T, path, label string) {
	t.Helper()

	writer, err := iso9660.NewWriter()
	if err != nil {
		t.Fatalf("create iso writer: %v", err)
	}
	defer writer.Cleanup()

	if err := writer.AddFile(strings.NewReader("exactiso test image\n"), "readme.txt"); err != nil {
		t.Fatalf("add readme: %v", err)
	}
	if err := writer.AddFile(strings.NewReader("loader"), "boot/loader.bin"); err != nil {
		t.Fatalf("add loader: %v", err)
	}

	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image file: %v", err)
	}
	if err := writer.WriteTo(out, label); err != nil {
		out.Close()
		t.Fatalf("write iso: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close image: %v", err)
	}
}

func TestInspectReadsLabelAndRootEntries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "drive.iso")
	writeTestImage(t, path, "EXACTISO")

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if info.Label != "EXACTISO" {
		t.Fatalf("unexpected label %q", info.Label)
	}
	if info.Size == 0 {
		t.Fatalf("expected non-zero image size")
	}

	var sawReadme, sawBoot bool
	for _, entry := range info.Entries {
		switch {
		case strings.EqualFold(entry.Name, "readme.txt"):
			sawReadme = !entry.Dir
		case strings.EqualFold(entry.Name, "boot"):
			sawBoot = entry.Dir
		}
	}
	if !sawReadme || !sawBoot {
		t.Fatalf("unexpected root entries: %+v", info.Entries)
	}
}

func TestInspectRejectsNonImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.iso")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Inspect(path); err == nil {
		t.Fatalf("expected error for invalid image")
	}
}

func TestFindImagesFiltersByExtensionAndTime(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	since := time.Now().Add(-time.Minute)

	old := filepath.Join(dir, "old.iso")
	fresh := filepath.Join(dir, "fresh.ISO")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	past := since.Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.iso"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := FindImages(dir, since)
	if err != nil {
		t.Fatalf("FindImages() error = %v", err)
	}
	if len(got) != 1 || got[0] != fresh {
		t.Fatalf("unexpected images: %q", got)
	}
}

func TestInspectProducedCollectsErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "good.iso"), "GOOD")
	if err := os.WriteFile(filepath.Join(dir, "bad.iso"), []byte("junk"), 0o644); err != nil {
		t.Fatalf("write bad image: %v", err)
	}

	infos, errs := InspectProduced(dir, time.Time{})
	if len(infos) != 1 || infos[0].Label != "GOOD" {
		t.Fatalf("unexpected infos: %+v", infos)
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}
