package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/camden-git/photocatalog/media/mediatest"
)

// hugeMake is an IFD0 Make tag declaring 0x80000002 SHORTs. The byte size
// wraps to 4 in 32 bits, so the value looks inline.
var hugeMake = mediatest.Entry{Tag: 0x010F, Type: 3, Count: 0x80000002, Value: []byte{'A', 0, 'B', 0}}

func TestCheckTIFFStructure(t *testing.T) {
	valid := mediatest.ExifTIFF(fixtureExif())
	if err := CheckTIFFStructure(bytes.NewReader(valid), int64(len(valid))); err != nil {
		t.Fatalf("valid block rejected: %v", err)
	}

	loop := mediatest.TIFF(mediatest.Entry{Tag: 0x0112, Type: 3, Count: 1, Value: []byte{1, 0}})
	binary.LittleEndian.PutUint32(loop[8+2+12:], 8)

	farValue := make([]byte, 4)
	binary.LittleEndian.PutUint32(farValue, 0xFFFF0000)

	tests := []struct {
		name string
		data []byte
	}{
		{"wrapping count", mediatest.TIFF(hugeMake)},
		{"ifd loop", loop},
		{"value past end", mediatest.TIFF(mediatest.Entry{Tag: 0x0110, Type: 2, Count: 100, Value: farValue})},
		{"ifd past end", []byte{'I', 'I', 42, 0, 0xFF, 0xFF, 0, 0}},
		{"truncated", []byte{'I', 'I', 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTIFFStructure(bytes.NewReader(tt.data), int64(len(tt.data)))
			if !errors.Is(err, ErrMalformedExif) {
				t.Errorf("err = %v, want ErrMalformedExif", err)
			}
		})
	}
}

func TestExtractSurvivesHugeTagCount(t *testing.T) {
	dir := t.TempDir()
	block := mediatest.TIFF(hugeMake)
	sensor := mediatest.TIFF(hugeMake,
		mediatest.Entry{Tag: 0x0100, Type: 4, Count: 1, Value: []byte{0xA0, 0x0F, 0, 0}},
		mediatest.Entry{Tag: 0x0101, Type: 4, Count: 1, Value: []byte{0xB8, 0x0B, 0, 0}},
	)

	files := map[string][]byte{
		"a.jpg":  mediatest.InsertExif(mediatest.JPEG(32, 32, 1), block),
		"b.tif":  block,
		"c.png":  pngWithExif(t, block),
		"d.NEF":  sensor,
		"f.tiff": sensor,
	}
	ex := NewExtractor()
	for name, data := range files {
		path := mediatest.WriteFile(t, dir, name, data)
		if m := ex.Extract(path); !m.IsEmpty() {
			t.Errorf("%s: metadata = %+v, want empty", name, m)
		}
		if c := ex.CameraFields(path); c != (CameraFields{}) {
			t.Errorf("%s: camera fields = %+v, want empty", name, c)
		}
	}
}

func TestParseRawRejectsHugeTagCount(t *testing.T) {
	bad := mediatest.TIFF(hugeMake)
	if _, err := ParseRaw(bad); !errors.Is(err, ErrUnsupportedContainer) {
		t.Errorf("err = %v, want ErrUnsupportedContainer", err)
	}

	// the same tag inside an embedded preview's EXIF is skipped, not fatal
	preview := mediatest.InsertExif(mediatest.JPEG(320, 240, 1), bad)
	data := append([]byte("\x00\x00\x00\x18ftypcrx \x00\x00\x00\x01"), make([]byte, 64)...)
	data = append(data, preview...)
	rc, err := ParseRaw(data)
	if err != nil {
		t.Fatalf("ParseRaw: %v", err)
	}
	if rc.Exif != nil {
		t.Error("malformed preview exif should be dropped")
	}
	if !rc.HasPreview() {
		t.Error("expected preview from scan")
	}
}

func TestExifPayload(t *testing.T) {
	block := mediatest.ExifTIFF(mediatest.Exif{Make: "Sony"})

	for name, blob := range map[string][]byte{
		"bare":   block,
		"prefix": append([]byte("Exif\x00\x00"), block...),
		"jpeg":   mediatest.InsertExif(mediatest.JPEG(16, 16, 1), block),
		"padded": append([]byte{0, 0, 0, 0}, block...),
	} {
		got, err := exifPayload(blob)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if !bytes.Equal(got, block) {
			t.Errorf("%s: payload mismatch", name)
		}
	}

	if _, err := exifPayload(mediatest.JPEG(16, 16, 1)); err == nil {
		t.Error("jpeg without app1 should fail")
	}
}
