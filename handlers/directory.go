package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/scanner"
	"github.com/camden-git/photocatalog/services"
)

type DirEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
	Role  string `json:"role,omitempty"`
}

type DirectoryListing struct {
	Path    string     `json:"path"`
	Parent  string     `json:"parent,omitempty"`
	Entries []DirEntry `json:"entries"`
}

type scanDirectoryRequest struct {
	Path      string `json:"path"`
	Recursive *bool  `json:"recursive"`
}

// DirectoryHandler lets a client browse import sources below Root and
// preview how a directory would be grouped.
type DirectoryHandler struct {
	Root string
}

// ListDirectory lists the directory named by the path query parameter,
// relative to Root. Directories come first, then files in natural order.
func (dh *DirectoryHandler) ListDirectory(w http.ResponseWriter, r *http.Request) {
	root, err := filepath.Abs(dh.Root)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	requested := filepath.Clean("/" + r.URL.Query().Get("path"))
	fullPath := filepath.Join(root, requested)
	if fullPath != root && !strings.HasPrefix(fullPath, root+string(filepath.Separator)) {
		WriteAPIError(w, http.StatusForbidden, "forbidden", "Forbidden")
		logging.Component("http").Warn().Str("request", requested).Str("root", root).Msg("attempted access outside root directory")
		return
	}

	dirEntries, err := os.ReadDir(fullPath)
	if os.IsNotExist(err) {
		WriteAPIError(w, http.StatusNotFound, "not_found", "Directory not found")
		return
	}
	if os.IsPermission(err) {
		WriteAPIError(w, http.StatusForbidden, "forbidden", "Forbidden")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	entries := make([]DirEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		entry := DirEntry{
			Name:  e.Name(),
			Path:  filepath.ToSlash(filepath.Join(requested, e.Name())),
			IsDir: e.IsDir(),
		}
		if !e.IsDir() {
			entry.Size = info.Size()
			entry.Role = string(media.ClassifyPath(e.Name()))
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	listing := DirectoryListing{Path: filepath.ToSlash(requested), Entries: entries}
	if requested != "/" {
		listing.Parent = filepath.ToSlash(filepath.Dir(requested))
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeJSON(w, http.StatusOK, listing)
}

// ScanDirectory groups an arbitrary directory without creating a session.
func (dh *DirectoryHandler) ScanDirectory(w http.ResponseWriter, r *http.Request) {
	var req scanDirectoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_input", "Missing required field: path")
		return
	}
	recursive := true
	if req.Recursive != nil {
		recursive = *req.Recursive
	}

	res, err := scanner.ScanDirectory(req.Path, recursive)
	if err != nil {
		if os.IsPermission(err) {
			WriteAPIError(w, http.StatusForbidden, "forbidden", err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}
	out := services.ScanResult{Groups: res.Groups, UnknownCount: res.UnknownCount}
	if out.Groups == nil {
		out.Groups = []scanner.FileGroup{}
	}
	writeJSON(w, http.StatusOK, out)
}
