package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

// ErrMalformedExif marks an EXIF/TIFF block whose directory structure points
// outside the block, loops or declares more value bytes than it carries.
var ErrMalformedExif = errors.New("malformed exif structure")

const (
	maxExifIFDs       = 64
	maxExifIFDEntries = 4096
)

// TIFF tags whose value is the offset of another IFD.
var exifIFDPointers = map[uint16]bool{
	tagSubIFDs: true,
	0x8769:     true, // EXIF
	0x8825:     true, // GPS
	0xA005:     true, // Interoperability
}

// tiffTypeSize mirrors the value widths goexif allocates per entry type.
// Unknown types are rejected by goexif itself.
func tiffTypeSize(typ uint16) uint64 {
	switch typ {
	case 1, 2, 6, 7:
		return 1
	case 3, 8:
		return 2
	case 4, 9, 11, 13:
		return 4
	case 5, 10, 12:
		return 8
	}
	return 0
}

// CheckTIFFStructure walks every IFD reachable from the header of the TIFF
// block in r (the next-IFD chain plus SubIFD, EXIF, GPS and Interop
// pointers) and rejects entries whose declared value size exceeds the block.
// goexif sizes its allocations from the declared counts, so untrusted
// blocks go through here first.
func CheckTIFFStructure(r io.ReaderAt, size int64) error {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return fmt.Errorf("%w: short header", ErrMalformedExif)
	}
	var order binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return fmt.Errorf("%w: bad byte order", ErrMalformedExif)
	}

	limit := uint64(size)
	visited := make(map[uint32]bool)
	queue := []uint32{order.Uint32(hdr[4:8])}
	for len(queue) > 0 {
		off := queue[0]
		queue = queue[1:]
		if off == 0 {
			continue
		}
		if visited[off] {
			return fmt.Errorf("%w: ifd loop at %d", ErrMalformedExif, off)
		}
		visited[off] = true
		if len(visited) > maxExifIFDs {
			return fmt.Errorf("%w: too many ifds", ErrMalformedExif)
		}

		var cnt [2]byte
		if uint64(off)+2 > limit {
			return fmt.Errorf("%w: ifd offset %d out of range", ErrMalformedExif, off)
		}
		if _, err := r.ReadAt(cnt[:], int64(off)); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedExif, err)
		}
		n := uint64(order.Uint16(cnt[:]))
		if n > maxExifIFDEntries || uint64(off)+2+12*n+4 > limit {
			return fmt.Errorf("%w: ifd at %d overruns block", ErrMalformedExif, off)
		}
		buf := make([]byte, 12*n+4)
		if _, err := r.ReadAt(buf, int64(off)+2); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedExif, err)
		}

		for i := uint64(0); i < n; i++ {
			e := buf[12*i : 12*i+12]
			tag := order.Uint16(e[0:2])
			typ := order.Uint16(e[2:4])
			count := uint64(order.Uint32(e[4:8]))
			width := tiffTypeSize(typ)
			if width == 0 {
				continue
			}
			valLen := width * count
			if valLen > limit {
				return fmt.Errorf("%w: tag 0x%04X declares %d bytes", ErrMalformedExif, tag, valLen)
			}
			valOff := uint64(off) + 2 + 12*i + 8
			if valLen > 4 {
				valOff = uint64(order.Uint32(e[8:12]))
				if valOff+valLen > limit {
					return fmt.Errorf("%w: tag 0x%04X value out of range", ErrMalformedExif, tag)
				}
			}
			if exifIFDPointers[tag] && width == 4 {
				ptrs := make([]byte, valLen)
				if _, err := r.ReadAt(ptrs, int64(valOff)); err != nil {
					return fmt.Errorf("%w: %v", ErrMalformedExif, err)
				}
				for p := 0; p+4 <= len(ptrs); p += 4 {
					queue = append(queue, order.Uint32(ptrs[p:p+4]))
				}
			}
		}
		queue = append(queue, order.Uint32(buf[12*n:]))
	}
	return nil
}

// exifPayload locates the TIFF block inside a raw EXIF blob: a bare TIFF
// header, an "Exif\0\0" prefixed payload or a JPEG carrying an APP1 segment.
func exifPayload(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return data, nil
	case bytes.HasPrefix(data, []byte("Exif\x00\x00")):
		return data[6:], nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return jpegExifSegment(bytes.NewReader(data[2:]))
	}
	// some HEIF writers put padding before the header
	for _, magic := range [][]byte{[]byte("II*\x00"), []byte("MM\x00*")} {
		if i := bytes.Index(data, magic); i >= 0 && i < 64 {
			return data[i:], nil
		}
	}
	return nil, fmt.Errorf("%w: no tiff header", ErrMalformedExif)
}

// jpegExifSegment walks JPEG markers after SOI and returns the TIFF block of
// the first APP1 Exif segment.
func jpegExifSegment(r io.Reader) ([]byte, error) {
	var marker [4]byte
	for {
		if _, err := io.ReadFull(r, marker[:2]); err != nil {
			return nil, fmt.Errorf("jpeg: no exif segment: %w", err)
		}
		if marker[0] != 0xFF {
			return nil, fmt.Errorf("jpeg: bad marker 0x%02X", marker[0])
		}
		switch m := marker[1]; {
		case m == 0xD8 || m == 0x01 || (m >= 0xD0 && m <= 0xD7):
			continue
		case m == 0xDA || m == 0xD9:
			return nil, errors.New("jpeg: no exif segment")
		}
		if _, err := io.ReadFull(r, marker[2:4]); err != nil {
			return nil, fmt.Errorf("jpeg: truncated segment: %w", err)
		}
		n := int(binary.BigEndian.Uint16(marker[2:4]))
		if n < 2 {
			return nil, errors.New("jpeg: bad segment length")
		}
		seg := make([]byte, n-2)
		if _, err := io.ReadFull(r, seg); err != nil {
			return nil, fmt.Errorf("jpeg: truncated segment: %w", err)
		}
		if marker[1] == 0xE1 && bytes.HasPrefix(seg, []byte("Exif\x00\x00")) {
			return seg[6:], nil
		}
	}
}

// decodeExifBlob checks the structure of an EXIF blob before handing the
// bare TIFF block to goexif.
func decodeExifBlob(data []byte) (*exif.Exif, error) {
	block, err := exifPayload(data)
	if err != nil {
		return nil, err
	}
	if err := CheckTIFFStructure(bytes.NewReader(block), int64(len(block))); err != nil {
		return nil, err
	}
	return exif.Decode(bytes.NewReader(block))
}
