package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Store defines the interface for saving, locating and deleting generated
// media assets.
type Store interface {
	// Save writes data under the asset type's directory and returns the
	// slash-separated path relative to that directory. An existing file at
	// the same location is replaced atomically.
	Save(assetType AssetType, relativeDirHint string, filename string, data io.Reader) (string, error)
	// Delete removes an asset. Missing assets are not an error.
	Delete(assetType AssetType, relativePath string) error
	// Exists reports whether an asset is present.
	Exists(assetType AssetType, relativePath string) bool
	// GetFullPath returns the absolute filesystem path for a relative asset path
	GetFullPath(assetType AssetType, relativePath string) (string, error)
	// EnsureDir makes sure a specific asset type directory exists
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath        string               // absolute path to the MEDIA_STORAGE_PATH
	resolvedPathMap map[AssetType]string // maps AssetType to full absolute path
}

// NewLocalStorage creates a new local filesystem store. subDirs maps each
// asset type to its directory below basePath.
func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[AssetType]string)
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !within(absBasePath, fullPath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolvedPaths[assetType] = fullPath
	}

	log.Info().Str("path", absBasePath).Msg("media.store: initialized local storage")
	return &LocalStorage{
		basePath:        absBasePath,
		resolvedPathMap: resolvedPaths,
	}, nil
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

func (ls *LocalStorage) getAssetTypeDir(assetType AssetType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	return dirPath, nil
}

// EnsureDir creates the directory for the asset type if it doesn't exist
func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, err := ls.getAssetTypeDir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

// Save writes to a temporary sibling and renames it into place, so readers
// never observe a partially written asset.
func (ls *LocalStorage) Save(assetType AssetType, relativeDirHint string, filename string, data io.Reader) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty for LocalStorage.Save")
	}

	baseAssetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}

	targetDir := baseAssetDir
	if relativeDirHint != "" {
		targetDir = filepath.Join(baseAssetDir, relativeDirHint)
		if !within(baseAssetDir, targetDir) {
			return "", fmt.Errorf("invalid relative directory hint '%s'", relativeDirHint)
		}
		if err := os.MkdirAll(targetDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create sub-directory '%s': %w", targetDir, err)
		}
	}

	fullSavePath := filepath.Join(targetDir, filename)
	if !within(targetDir, fullSavePath) {
		return "", fmt.Errorf("invalid filename '%s'", filename)
	}

	tmp, err := os.CreateTemp(targetDir, "."+filename+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create destination file in '%s': %w", targetDir, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close '%s': %w", tmpName, err)
	}
	if err := os.Rename(tmpName, fullSavePath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move asset into '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(baseAssetDir, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}

	log.Debug().Str("path", fullSavePath).Msg("media.store: saved asset")
	return filepath.ToSlash(relativePath), nil
}

// Delete removes an asset file
func (ls *LocalStorage) Delete(assetType AssetType, relativePath string) error {
	fullPath, err := ls.GetFullPath(assetType, relativePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	if err == nil {
		log.Debug().Str("path", fullPath).Msg("media.store: deleted asset")
	}
	return nil
}

func (ls *LocalStorage) Exists(assetType AssetType, relativePath string) bool {
	fullPath, err := ls.GetFullPath(assetType, relativePath)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// GetFullPath calculates the absolute path and performs security check
func (ls *LocalStorage) GetFullPath(assetType AssetType, relativePath string) (string, error) {
	baseAssetDir, err := ls.getAssetTypeDir(assetType)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(baseAssetDir, filepath.Clean(filepath.FromSlash(relativePath)))

	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if !within(baseAssetDir, absFullPath) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}

	return absFullPath, nil
}
