// Package scanner walks an import source and groups files that belong to
// the same shot (IMG_0001.CR2 + IMG_0001.JPG + IMG_0001.xmp).
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/facette/natsort"

	"github.com/camden-git/photocatalog/media"
)

var ErrSourceNotFound = errors.New("source path not found")

// FileGroup is one shot: the master file used for previews and metadata,
// plus every other file sharing its directory and stem.
type FileGroup struct {
	Master     string   `json:"master"`
	Companions []string `json:"companions"`
	HasRaw     bool     `json:"has_raw"`
	HasJPEG    bool     `json:"has_jpeg"`
}

type Result struct {
	Groups       []FileGroup
	UnknownCount int
}

type groupKey struct {
	dir  string
	stem string
}

// ScanDirectory groups every known file below sourcePath. Files with
// unrecognised extensions are only counted. Groups made of sidecars alone
// are dropped. The output order depends only on the names found.
func ScanDirectory(sourcePath string, recursive bool) (Result, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}
		return Result{}, fmt.Errorf("failed to stat source %s: %w", sourcePath, err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s is not a directory", ErrSourceNotFound, sourcePath)
	}

	buckets := make(map[groupKey][]string)
	var res Result

	walkErr := filepath.WalkDir(sourcePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped, the root was checked above
			if d != nil && d.IsDir() && path != sourcePath {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive && path != sourcePath {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if !media.ClassifyPath(path).IsKnown() {
			res.UnknownCount++
			return nil
		}
		name := filepath.Base(path)
		key := groupKey{
			dir:  filepath.Dir(path),
			stem: strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))),
		}
		buckets[key] = append(buckets[key], path)
		return nil
	})
	if walkErr != nil {
		return Result{}, fmt.Errorf("failed to walk %s: %w", sourcePath, walkErr)
	}

	keys := make([]groupKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].dir != keys[j].dir {
			return naturalLess(keys[i].dir, keys[j].dir)
		}
		return naturalLess(keys[i].stem, keys[j].stem)
	})

	for _, k := range keys {
		if g, ok := buildGroup(buckets[k]); ok {
			res.Groups = append(res.Groups, g)
		}
	}
	return res, nil
}

// buildGroup orders files by role priority then natural name order, so the
// first entry is the master.
func buildGroup(files []string) (FileGroup, bool) {
	sort.SliceStable(files, func(i, j int) bool {
		pi := media.ClassifyPath(files[i]).Priority()
		pj := media.ClassifyPath(files[j]).Priority()
		if pi != pj {
			return pi < pj
		}
		return naturalLess(filepath.Base(files[i]), filepath.Base(files[j]))
	})

	master := media.ClassifyPath(files[0])
	if !master.IsImage() {
		return FileGroup{}, false
	}

	g := FileGroup{Master: files[0], Companions: append([]string{}, files[1:]...)}
	for _, f := range files {
		switch media.ClassifyPath(f) {
		case media.RoleRAW:
			g.HasRaw = true
		case media.RoleJPEG:
			g.HasJPEG = true
		}
	}
	return g, true
}

// naturalLess falls back to byte order when natural order sees a tie
// ("img01" vs "img1") so sorting map keys stays deterministic.
func naturalLess(a, b string) bool {
	ab, ba := natsort.Compare(a, b), natsort.Compare(b, a)
	if ab != ba {
		return ab
	}
	return a < b
}
