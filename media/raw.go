package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"sort"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	xtiff "golang.org/x/image/tiff"
)

// TIFF tag ids used while walking RAW containers.
const (
	tagNewSubfileType       = 0x00FE
	tagImageWidth           = 0x0100
	tagImageLength          = 0x0101
	tagCompression          = 0x0103
	tagStripOffsets         = 0x0111
	tagStripByteCounts      = 0x0117
	tagSubIFDs              = 0x014A
	tagJPEGInterchange      = 0x0201
	tagJPEGInterchangeBytes = 0x0202
)

// Magic numbers that follow the byte-order mark in TIFF-derived RAW formats.
var rawTIFFMagics = map[uint16]bool{
	42:     true, // TIFF, DNG, NEF, CR2, ARW, PEF, SRW
	0x4F52: true, // ORF "RO"
	0x5352: true, // ORF "RS"
	0x0055: true, // RW2
}

const (
	rafMagic          = "FUJIFILMCCD-RAW"
	rafJPEGOffsetPos  = 84
	maxSubIFDDepth    = 3
	maxScannedJPEGs   = 16
	minPreviewEdgePix = 32
)

type embeddedJPEG struct {
	offset, length int
	width, height  int
}

func (e embeddedJPEG) area() int { return e.width * e.height }

// RawContainer is the structured view of a camera RAW file: true sensor
// dimensions, the EXIF block and every embedded JPEG preview that decodes.
type RawContainer struct {
	Width, Height int
	Exif          *exif.Exif

	previews []embeddedJPEG // sorted largest first
	data     []byte
}

// OpenRaw reads and parses the RAW file at path.
func OpenRaw(path string) (*RawContainer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIOFailure, path, err)
	}
	return ParseRaw(data)
}

// ParseRaw parses RAW bytes. The slice is owned by the container afterwards.
func ParseRaw(data []byte) (*RawContainer, error) {
	rc := &RawContainer{data: data}

	switch {
	case bytes.HasPrefix(data, []byte(rafMagic)):
		rc.parseRAF()
	case isTIFFLike(data):
		if err := rc.parseTIFF(); err != nil {
			rc.scanForJPEGs()
		}
	default:
		rc.scanForJPEGs()
	}

	sort.SliceStable(rc.previews, func(i, j int) bool {
		return rc.previews[i].area() > rc.previews[j].area()
	})

	if rc.Exif == nil && len(rc.previews) > 0 {
		// containers without a TIFF structure usually carry EXIF in the preview
		if x, err := decodeExifBlob(rc.previewBytes(rc.previews[0])); err == nil {
			rc.Exif = x
		}
	}
	rc.considerExifDimensions()

	if rc.Exif == nil && len(rc.previews) == 0 && rc.Width == 0 {
		return nil, ErrUnsupportedContainer
	}
	return rc, nil
}

func isTIFFLike(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return false
	}
	return rawTIFFMagics[order.Uint16(data[2:4])]
}

// parseTIFF walks IFD0.., their SubIFDs and the EXIF block. Vendor magic
// numbers are rewritten to 42 first so the generic TIFF reader accepts them.
func (rc *RawContainer) parseTIFF() error {
	order := binary.ByteOrder(binary.LittleEndian)
	if rc.data[0] == 'M' {
		order = binary.BigEndian
	}
	if order.Uint16(rc.data[2:4]) != 42 {
		order.PutUint16(rc.data[2:4], 42)
	}

	br := bytes.NewReader(rc.data)
	if err := CheckTIFFStructure(br, int64(len(rc.data))); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}
	tf, err := tiff.Decode(br)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}

	for _, dir := range tf.Dirs {
		rc.walkDir(br, tf.Order, dir, 0)
	}

	if x, err := exif.Decode(bytes.NewReader(rc.data)); err == nil {
		rc.Exif = x
	}
	return nil
}

func (rc *RawContainer) walkDir(br *bytes.Reader, order binary.ByteOrder, dir *tiff.Dir, depth int) {
	tags := make(map[uint16]*tiff.Tag, len(dir.Tags))
	for _, t := range dir.Tags {
		tags[t.Id] = t
	}

	subfileType, hasSubfileType := tagInt(tags, tagNewSubfileType, 0)
	w, _ := tagInt(tags, tagImageWidth, 0)
	h, _ := tagInt(tags, tagImageLength, 0)
	if (!hasSubfileType || subfileType == 0) && w*h > int64(rc.Width)*int64(rc.Height) {
		rc.Width, rc.Height = int(w), int(h)
	}

	if off, ok := tagInt(tags, tagJPEGInterchange, 0); ok {
		if n, ok := tagInt(tags, tagJPEGInterchangeBytes, 0); ok {
			rc.addPreview(int(off), int(n))
		}
	}

	if comp, _ := tagInt(tags, tagCompression, 0); comp == 6 || comp == 7 {
		if st, ok := tags[tagStripOffsets]; ok && st.Count == 1 {
			off, _ := tagInt(tags, tagStripOffsets, 0)
			n, ok := tagInt(tags, tagStripByteCounts, 0)
			if ok {
				rc.addPreview(int(off), int(n))
			}
		}
	}

	if depth >= maxSubIFDDepth {
		return
	}
	sub, ok := tags[tagSubIFDs]
	if !ok {
		return
	}
	for i := 0; i < int(sub.Count); i++ {
		off, err := sub.Int64(i)
		if err != nil || off <= 0 || off >= int64(len(rc.data)) {
			continue
		}
		if _, err := br.Seek(off, 0); err != nil {
			continue
		}
		child, _, err := tiff.DecodeDir(br, order)
		if err != nil {
			continue
		}
		rc.walkDir(br, order, child, depth+1)
	}
}

func tagInt(tags map[uint16]*tiff.Tag, id uint16, i int) (int64, bool) {
	t, ok := tags[id]
	if !ok {
		return 0, false
	}
	v, err := t.Int64(i)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (rc *RawContainer) parseRAF() {
	if len(rc.data) < rafJPEGOffsetPos+8 {
		return
	}
	off := binary.BigEndian.Uint32(rc.data[rafJPEGOffsetPos:])
	n := binary.BigEndian.Uint32(rc.data[rafJPEGOffsetPos+4:])
	rc.addPreview(int(off), int(n))
}

// scanForJPEGs is the last resort for ISO-BMFF style containers (CR3):
// every SOI marker that starts a decodable JPEG is a preview candidate.
func (rc *RawContainer) scanForJPEGs() {
	soi := []byte{0xFF, 0xD8, 0xFF}
	found := 0
	for pos := 0; pos < len(rc.data) && found < maxScannedJPEGs; {
		idx := bytes.Index(rc.data[pos:], soi)
		if idx < 0 {
			return
		}
		start := pos + idx
		if rc.addPreview(start, len(rc.data)-start) {
			found++
		}
		pos = start + len(soi)
	}
}

func (rc *RawContainer) addPreview(offset, length int) bool {
	if offset <= 0 || length <= 0 || offset+length > len(rc.data) {
		return false
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(rc.data[offset : offset+length]))
	if err != nil || cfg.Width < minPreviewEdgePix || cfg.Height < minPreviewEdgePix {
		return false
	}
	for _, p := range rc.previews {
		if p.offset == offset {
			return false
		}
	}
	rc.previews = append(rc.previews, embeddedJPEG{offset: offset, length: length, width: cfg.Width, height: cfg.Height})
	return true
}

func (rc *RawContainer) considerExifDimensions() {
	if rc.Exif != nil {
		w := exifInt(rc.Exif, exif.PixelXDimension)
		h := exifInt(rc.Exif, exif.PixelYDimension)
		if w != nil && h != nil && (*w)*(*h) > rc.Width*rc.Height {
			rc.Width, rc.Height = *w, *h
		}
	}
	if rc.Width == 0 && len(rc.previews) > 0 {
		rc.Width, rc.Height = rc.previews[0].width, rc.previews[0].height
	}
}

func (rc *RawContainer) previewBytes(p embeddedJPEG) []byte {
	return rc.data[p.offset : p.offset+p.length]
}

// HasPreview reports whether at least one embedded JPEG decodes.
func (rc *RawContainer) HasPreview() bool {
	return len(rc.previews) > 0
}

// LargestPreview returns the biggest embedded JPEG.
func (rc *RawContainer) LargestPreview() ([]byte, bool) {
	if len(rc.previews) == 0 {
		return nil, false
	}
	return rc.previewBytes(rc.previews[0]), true
}

// PreviewImage decodes the largest embedded preview that is usable.
func (rc *RawContainer) PreviewImage() (image.Image, error) {
	for _, p := range rc.previews {
		img, err := jpeg.Decode(bytes.NewReader(rc.previewBytes(p)))
		if err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("%w: no usable embedded preview", ErrDecodeFailure)
}

// RawDecoder renders the full image of a RAW container.
type RawDecoder interface {
	DecodeFull(rc *RawContainer) (image.Image, error)
}

// TIFFRawDecoder decodes containers whose main image is stored as ordinary
// TIFF strips or tiles (linear DNG, TIFF-wrapped scans). Mosaiced sensor
// data is rejected with ErrDecodeFailure.
type TIFFRawDecoder struct{}

func (TIFFRawDecoder) DecodeFull(rc *RawContainer) (image.Image, error) {
	if !isTIFFLike(rc.data) {
		return nil, fmt.Errorf("%w: container is not TIFF structured", ErrDecodeFailure)
	}
	img, err := xtiff.Decode(bytes.NewReader(rc.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return img, nil
}
