package media

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rs/zerolog/log"
)

const (
	HotPreviewSize    = 150
	HotPreviewQuality = 80

	DefaultColdPreviewMaxPx   = 1200
	DefaultColdPreviewQuality = 85
	ColdPreviewFileExtension  = ".jpg"
)

// HotPreview is the canonical square thumbnail. Hothash identifies the Photo.
type HotPreview struct {
	JPEG    []byte
	Hothash string
	// Width and Height are the true dimensions of the source image
	Width  int
	Height int
}

// Processor renders hot and cold previews. Cold previews are written through
// the Store.
type Processor struct {
	store Store
	raw   RawDecoder
}

func NewProcessor(store Store) *Processor {
	return &Processor{store: store, raw: TIFFRawDecoder{}}
}

// WithRawDecoder swaps the decoder used for full RAW renders.
func (p *Processor) WithRawDecoder(d RawDecoder) *Processor {
	p.raw = d
	return p
}

// GenerateHotPreview renders the 150x150 JPEG for path. RAW files use the
// largest embedded preview and only fall back to a full decode when none is
// usable. The same input bytes always produce the same hash.
func (p *Processor) GenerateHotPreview(filePath string) (HotPreview, error) {
	return p.HotPreviewFor(NewSource(filePath))
}

// HotPreviewFor is GenerateHotPreview over an already opened Source.
func (p *Processor) HotPreviewFor(src *Source) (HotPreview, error) {
	img, w, h, err := p.loadHotSource(src)
	if err != nil {
		return HotPreview{}, err
	}

	thumb := imaging.Fill(flattenOnWhite(img), HotPreviewSize, HotPreviewSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(HotPreviewQuality)); err != nil {
		return HotPreview{}, fmt.Errorf("%w: encoding hot preview for %s: %v", ErrDecodeFailure, src.Path, err)
	}

	return HotPreview{
		JPEG:    buf.Bytes(),
		Hothash: HashBytes(buf.Bytes()),
		Width:   w,
		Height:  h,
	}, nil
}

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (p *Processor) loadHotSource(src *Source) (image.Image, int, int, error) {
	if src.Role != RoleRAW {
		img, err := decodeRaster(src.Path)
		if err != nil {
			return nil, 0, 0, err
		}
		b := img.Bounds()
		return img, b.Dx(), b.Dy(), nil
	}

	rc, err := src.Raw()
	if err != nil {
		return nil, 0, 0, err
	}
	img, err := rc.PreviewImage()
	if err != nil {
		log.Debug().Str("path", src.Path).Msg("processor: no embedded preview, decoding full raw")
		img, err = p.raw.DecodeFull(rc)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("decoding %s: %w", src.Path, err)
		}
	}
	w, h := rc.Width, rc.Height
	if w == 0 || h == 0 {
		b := img.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	return img, w, h, nil
}

// ColdPreviewRelPath is the fan-out location of a cold preview inside the
// cold preview directory: ab/cd/abcd....jpg.
func ColdPreviewRelPath(hash string) (string, error) {
	if len(hash) < 4 {
		return "", fmt.Errorf("content hash %q too short", hash)
	}
	return path.Join(hash[0:2], hash[2:4], hash+ColdPreviewFileExtension), nil
}

// GenerateColdPreview renders the large preview for filePath, downscaled so
// the longest edge is at most maxPx, and stores it under contentHash.
// Regenerating for the same hash overwrites the same file. Returns the
// absolute path written.
func (p *Processor) GenerateColdPreview(filePath, contentHash string, maxPx, quality int) (string, error) {
	return p.ColdPreviewFor(NewSource(filePath), contentHash, maxPx, quality)
}

// ColdPreviewFor is GenerateColdPreview over an already opened Source.
func (p *Processor) ColdPreviewFor(src *Source, contentHash string, maxPx, quality int) (string, error) {
	rel, err := ColdPreviewRelPath(contentHash)
	if err != nil {
		return "", err
	}
	if maxPx <= 0 {
		maxPx = DefaultColdPreviewMaxPx
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultColdPreviewQuality
	}

	img, err := p.loadColdSource(src)
	if err != nil {
		return "", err
	}
	img = flattenOnWhite(img)
	if b := img.Bounds(); max(b.Dx(), b.Dy()) > maxPx {
		img = imaging.Fit(img, maxPx, maxPx, imaging.Lanczos)
	}

	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, img, imaging.JPEG, imaging.JPEGQuality(quality))
		writer.CloseWithError(err)
	}()

	dir, file := path.Split(rel)
	if _, err := p.store.Save(AssetTypeColdPreview, dir, file, reader); err != nil {
		reader.CloseWithError(err)
		return "", fmt.Errorf("%w: saving cold preview: %v", ErrIOFailure, err)
	}

	fullPath, err := p.store.GetFullPath(AssetTypeColdPreview, rel)
	if err != nil {
		return "", err
	}
	log.Debug().Str("source", src.Path).Str("path", fullPath).Msg("processor: generated cold preview")
	return fullPath, nil
}

// loadColdSource prefers a full RAW render. The embedded preview is used
// when the full decode fails or is smaller than the preview.
func (p *Processor) loadColdSource(src *Source) (image.Image, error) {
	if src.Role != RoleRAW {
		return decodeRaster(src.Path)
	}

	rc, err := src.Raw()
	if err != nil {
		return nil, err
	}
	full, fullErr := p.raw.DecodeFull(rc)
	preview, previewErr := rc.PreviewImage()
	switch {
	case fullErr == nil && (previewErr != nil || longestEdge(full) >= longestEdge(preview)):
		return full, nil
	case previewErr == nil:
		return preview, nil
	default:
		return nil, fmt.Errorf("decoding %s: %w", src.Path, fullErr)
	}
}

// ColdPreviewExists reports whether a cold preview is stored for hash.
func (p *Processor) ColdPreviewExists(hash string) bool {
	rel, err := ColdPreviewRelPath(hash)
	if err != nil {
		return false
	}
	return p.store.Exists(AssetTypeColdPreview, rel)
}

func (p *Processor) DeleteColdPreview(hash string) error {
	rel, err := ColdPreviewRelPath(hash)
	if err != nil {
		return err
	}
	return p.store.Delete(AssetTypeColdPreview, rel)
}

func openRawForDecode(filePath string) (*RawContainer, error) {
	rc, err := OpenRaw(filePath)
	if err != nil {
		if errors.Is(err, ErrIOFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailure, filePath, err)
	}
	return rc, nil
}

// decodeRaster decodes JPEG, PNG, TIFF and HEIC files.
func decodeRaster(filePath string) (image.Image, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	defer f.Close()

	var img image.Image
	if ClassifyPath(filePath) == RoleHEIC {
		img, err = goheif.Decode(f)
	} else {
		img, err = imaging.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailure, filePath, err)
	}
	return img, nil
}

type opaquer interface {
	Opaque() bool
}

// flattenOnWhite composites images with transparency onto white.
func flattenOnWhite(img image.Image) image.Image {
	if o, ok := img.(opaquer); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func longestEdge(img image.Image) int {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return max(b.Dx(), b.Dy())
}
