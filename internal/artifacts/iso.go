package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kdomanski/iso9660"
)

// ImageExtension is the suffix of images produced by the image tool.
const ImageExtension = ".iso"

// Entry is one item in the root directory of an image.
type Entry struct {
	Name string
	Dir  bool
	Size int64
}

// ImageInfo summarizes an ISO 9660 image on disk.
type ImageInfo struct {
	Path    string
	Label   string
	Size    int64
	ModTime time.Time
	Entries []Entry
}

// Inspect opens the image at path and reads its volume label and root
// directory listing.
func Inspect(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return ImageInfo{}, fmt.Errorf("stat image: %w", err)
	}

	image, err := iso9660.OpenImage(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("read iso9660 image %s: %w", path, err)
	}

	label, err := image.Label()
	if err != nil {
		return ImageInfo{}, fmt.Errorf("read volume label: %w", err)
	}

	root, err := image.RootDir()
	if err != nil {
		return ImageInfo{}, fmt.Errorf("read root directory: %w", err)
	}
	children, err := root.GetChildren()
	if err != nil {
		return ImageInfo{}, fmt.Errorf("list root directory: %w", err)
	}

	entries := make([]Entry, 0, len(children))
	for _, child := range children {
		name := child.Name()
		if name == "" || name == "." || name == ".." || name == "\x00" || name == "\x01" {
			continue
		}
		entries = append(entries, Entry{
			Name: name,
			Dir:  child.IsDir(),
			Size: child.Size(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return ImageInfo{
		Path:    path,
		Label:   strings.TrimSpace(label),
		Size:    stat.Size(),
		ModTime: stat.ModTime(),
		Entries: entries,
	}, nil
}

// FindImages returns the images directly under dir modified at or after
// since, oldest first.
func FindImages(dir string, since time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var found []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ImageExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(since) {
			continue
		}
		found = append(found, candidate{path: filepath.Join(dir, entry.Name()), modTime: info.ModTime()})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].modTime.Equal(found[j].modTime) {
			return found[i].path < found[j].path
		}
		return found[i].modTime.Before(found[j].modTime)
	})

	paths := make([]string, 0, len(found))
	for _, c := range found {
		paths = append(paths, c.path)
	}
	return paths, nil
}

// InspectProduced inspects every image FindImages reports. Images that cannot
// be parsed are returned in the error slice rather than aborting the scan.
func InspectProduced(dir string, since time.Time) ([]ImageInfo, []error) {
	paths, err := FindImages(dir, since)
	if err != nil {
		return nil, []error{err}
	}

	var (
		infos []ImageInfo
		errs  []error
	)
	for _, path := range paths {
		info, err := Inspect(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		infos = append(infos, info)
	}
	return infos, errs
}
