// media/types.go
package media

import "errors"

type AssetType string

const (
	AssetTypeColdPreview AssetType = "coldpreview"
	AssetTypeUpload      AssetType = "upload"
)

var (
	// ErrDecodeFailure marks a file whose pixels could not be decoded.
	ErrDecodeFailure = errors.New("decode failure")
	// ErrIOFailure marks a read or write failure on the filesystem.
	ErrIOFailure = errors.New("io failure")
	// ErrUnsupportedContainer is returned by readers that do not understand
	// the file layout.
	ErrUnsupportedContainer = errors.New("unsupported container")
)
