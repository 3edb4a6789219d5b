package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/camden-git/photocatalog/media"
)

// SourceFile is a file selected for offloading.
type SourceFile struct {
	Path string
	Size int64
}

// CollectCopySources lists every known media file below root, videos
// included on request, in natural path order.
func CollectCopySources(root string, includeVideos bool) ([]SourceFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, root)
		}
		return nil, fmt.Errorf("failed to stat source %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceNotFound, root)
	}

	var files []SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !media.ClassifyPath(path).IsKnown() && !(includeVideos && media.IsVideoPath(path)) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, SourceFile{Path: path, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return naturalLess(files[i].Path, files[j].Path) })
	return files, nil
}

// EarliestCaptureDate returns the earliest EXIF capture time among the
// image files, or nil when none carries one.
func EarliestCaptureDate(files []SourceFile, extractor *media.Extractor) *time.Time {
	var earliest *time.Time
	for _, f := range files {
		if !media.ClassifyPath(f.Path).IsImage() {
			continue
		}
		t := media.DeriveTakenAt(extractor.Extract(f.Path))
		if t != nil && (earliest == nil || t.Before(*earliest)) {
			earliest = t
		}
	}
	return earliest
}
