package media

import (
	"path/filepath"
	"strings"
)

// FileRole is the role a file plays inside a file group. Its string value is
// the file_type persisted on ImageFile rows.
type FileRole string

const (
	RoleRAW     FileRole = "RAW"
	RoleJPEG    FileRole = "JPEG"
	RolePNG     FileRole = "PNG"
	RoleTIFF    FileRole = "TIFF"
	RoleHEIC    FileRole = "HEIC"
	RoleXMP     FileRole = "XMP"
	RoleUnknown FileRole = ""
)

var extensionRoles = map[string]FileRole{
	".cr2": RoleRAW, ".cr3": RoleRAW, ".nef": RoleRAW, ".arw": RoleRAW, ".orf": RoleRAW,
	".rw2": RoleRAW, ".dng": RoleRAW, ".raf": RoleRAW, ".pef": RoleRAW, ".srw": RoleRAW,
	".jpg": RoleJPEG, ".jpeg": RoleJPEG,
	".png": RolePNG,
	".tif": RoleTIFF, ".tiff": RoleTIFF,
	".heic": RoleHEIC, ".heif": RoleHEIC,
	".xmp": RoleXMP,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mxf": true, ".avi": true, ".mkv": true,
	".m4v": true, ".mpg": true, ".mpeg": true, ".3gp": true, ".wmv": true,
}

// ClassifyExtension maps an extension (with or without the leading dot, any
// case) to its role.
func ClassifyExtension(ext string) FileRole {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return extensionRoles[ext]
}

// ClassifyPath classifies by the path's extension only.
func ClassifyPath(path string) FileRole {
	return ClassifyExtension(filepath.Ext(path))
}

// IsVideoPath reports whether the file copy engine treats the path as video.
func IsVideoPath(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

func (r FileRole) IsRaw() bool     { return r == RoleRAW }
func (r FileRole) IsSidecar() bool { return r == RoleXMP }
func (r FileRole) IsKnown() bool   { return r != RoleUnknown }

// IsImage reports whether the role carries pixels.
func (r FileRole) IsImage() bool {
	switch r {
	case RoleRAW, RoleJPEG, RolePNG, RoleTIFF, RoleHEIC:
		return true
	}
	return false
}

// Priority orders roles for master selection: lower wins.
func (r FileRole) Priority() int {
	switch r {
	case RoleRAW:
		return 0
	case RoleJPEG:
		return 1
	case RolePNG, RoleTIFF, RoleHEIC:
		return 2
	case RoleXMP:
		return 3
	}
	return 4
}

// IsRasterImage checks if the filename is a decodable non-RAW image.
func IsRasterImage(filename string) bool {
	r := ClassifyPath(filename)
	return r.IsImage() && !r.IsRaw()
}
