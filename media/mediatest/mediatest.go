// Package mediatest synthesises image fixtures for tests: plain JPEG/PNG
// images, JPEGs carrying an EXIF APP1 block and TIFF-structured RAW files
// with an embedded JPEG preview.
package mediatest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// Gradient returns a deterministic test pattern. Different seeds give
// visually different images.
func Gradient(w, h int, seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x*255/w + int(seed)*37) % 256),
				G: uint8((y*255/h + int(seed)*91) % 256),
				B: uint8(((x/8 + y/8) * (int(seed) + 1) * 13) % 256),
				A: 255,
			})
		}
	}
	return img
}

// JPEG encodes Gradient(w, h, seed) at quality 90.
func JPEG(w, h int, seed uint8) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h, seed), &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNG encodes Gradient(w, h, seed); with transparent set the left half is
// fully transparent.
func PNG(w, h int, seed uint8, transparent bool) []byte {
	src := Gradient(w, h, seed)
	img := image.NewNRGBA(src.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.RGBAAt(x, y)
			if transparent && x < w/2 {
				c.A = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WriteFile writes data to dir/name, creating parent directories.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// Rational is a numerator/denominator pair.
type Rational [2]uint32

// GPS holds degrees/minutes/seconds per axis plus hemisphere refs.
type GPS struct {
	LatRef string
	Lat    [3]Rational
	LngRef string
	Lng    [3]Rational
}

// Exif describes the tags written into a fixture. Zero values are omitted
// except where a Has flag exists.
type Exif struct {
	Make, Model, LensModel string
	Software, Artist       string
	DateTimeOriginal       string
	SubSecTimeOriginal     string
	DateTimeDigitized      string

	ExposureTime Rational
	FNumber      Rational
	FocalLength  Rational
	ISO          uint16

	ExposureBias    [2]int32
	HasExposureBias bool

	Flash    uint16
	HasFlash bool

	ExposureProgram uint16
	MeteringMode    uint16
	WhiteBalance    uint16
	HasWhiteBalance bool
	Orientation     uint16
	FocalLength35mm uint16

	PixelX, PixelY uint32

	GPS *GPS
}

// JPEGWithExif returns a JPEG of the given size with e embedded as APP1.
func JPEGWithExif(w, h int, seed uint8, e Exif) []byte {
	return InsertExif(JPEG(w, h, seed), ExifTIFF(e))
}

// InsertExif inserts a TIFF-encoded EXIF block right after the SOI marker.
func InsertExif(jpegData, tiffData []byte) []byte {
	payload := append([]byte("Exif\x00\x00"), tiffData...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	out := make([]byte, 0, len(jpegData)+len(seg)+len(payload))
	out = append(out, jpegData[:2]...)
	out = append(out, seg...)
	out = append(out, payload...)
	return append(out, jpegData[2:]...)
}

// ExifTIFF encodes e as a little-endian TIFF block (IFD0, EXIF IFD and GPS IFD).
func ExifTIFF(e Exif) []byte {
	return build(e.ifd0(), nil, e, nil)
}

// TIFF encodes a single little-endian IFD holding exactly the given entries.
// Counts are written as given, so callers can describe values the block
// does not carry.
func TIFF(entries ...Entry) []byte {
	return build(entries, nil, Exif{}, nil)
}

// RAW builds a TIFF-structured RAW file: IFD0 carries the sensor dimensions
// and camera tags, IFD1 points at the embedded preview JPEG.
func RAW(sensorW, sensorH uint32, preview []byte, e Exif) []byte {
	ifd0 := append(e.ifd0(),
		long(0x00FE, 0),
		long(0x0100, sensorW),
		long(0x0101, sensorH),
	)
	var ifd1 []Entry
	if len(preview) > 0 {
		ifd1 = []Entry{
			long(0x00FE, 1),
			long(0x0201, 0),
			long(0x0202, uint32(len(preview))),
		}
	}
	return build(ifd0, ifd1, e, preview)
}

// Entry is one TIFF directory entry with its value bytes (little-endian).
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Value []byte
}

func ascii(tag uint16, s string) Entry {
	v := append([]byte(s), 0)
	return Entry{Tag: tag, Type: 2, Count: uint32(len(v)), Value: v}
}

func short(tag uint16, v uint16) Entry {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return Entry{Tag: tag, Type: 3, Count: 1, Value: b}
}

func long(tag uint16, v uint32) Entry {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return Entry{Tag: tag, Type: 4, Count: 1, Value: b}
}

func rationals(tag uint16, rs ...Rational) Entry {
	b := make([]byte, 0, 8*len(rs))
	for _, r := range rs {
		b = binary.LittleEndian.AppendUint32(b, r[0])
		b = binary.LittleEndian.AppendUint32(b, r[1])
	}
	return Entry{Tag: tag, Type: 5, Count: uint32(len(rs)), Value: b}
}

func srational(tag uint16, num, den int32) Entry {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, uint32(num))
	binary.LittleEndian.PutUint32(b[4:], uint32(den))
	return Entry{Tag: tag, Type: 10, Count: 1, Value: b}
}

func (e Exif) ifd0() []Entry {
	var out []Entry
	if e.Make != "" {
		out = append(out, ascii(0x010F, e.Make))
	}
	if e.Model != "" {
		out = append(out, ascii(0x0110, e.Model))
	}
	if e.Orientation != 0 {
		out = append(out, short(0x0112, e.Orientation))
	}
	if e.Software != "" {
		out = append(out, ascii(0x0131, e.Software))
	}
	if e.Artist != "" {
		out = append(out, ascii(0x013B, e.Artist))
	}
	return out
}

func (e Exif) exifIFD() []Entry {
	var out []Entry
	if e.ExposureTime[1] != 0 {
		out = append(out, rationals(0x829A, e.ExposureTime))
	}
	if e.FNumber[1] != 0 {
		out = append(out, rationals(0x829D, e.FNumber))
	}
	if e.ExposureProgram != 0 {
		out = append(out, short(0x8822, e.ExposureProgram))
	}
	if e.ISO != 0 {
		out = append(out, short(0x8827, e.ISO))
	}
	if e.DateTimeOriginal != "" {
		out = append(out, ascii(0x9003, e.DateTimeOriginal))
	}
	if e.DateTimeDigitized != "" {
		out = append(out, ascii(0x9004, e.DateTimeDigitized))
	}
	if e.HasExposureBias {
		out = append(out, srational(0x9204, e.ExposureBias[0], e.ExposureBias[1]))
	}
	if e.MeteringMode != 0 {
		out = append(out, short(0x9207, e.MeteringMode))
	}
	if e.HasFlash {
		out = append(out, short(0x9209, e.Flash))
	}
	if e.FocalLength[1] != 0 {
		out = append(out, rationals(0x920A, e.FocalLength))
	}
	if e.SubSecTimeOriginal != "" {
		out = append(out, ascii(0x9291, e.SubSecTimeOriginal))
	}
	if e.PixelX != 0 {
		out = append(out, long(0xA002, e.PixelX))
	}
	if e.PixelY != 0 {
		out = append(out, long(0xA003, e.PixelY))
	}
	if e.HasWhiteBalance {
		out = append(out, short(0xA403, e.WhiteBalance))
	}
	if e.FocalLength35mm != 0 {
		out = append(out, short(0xA405, e.FocalLength35mm))
	}
	if e.LensModel != "" {
		out = append(out, ascii(0xA434, e.LensModel))
	}
	return out
}

func (e Exif) gpsIFD() []Entry {
	if e.GPS == nil {
		return nil
	}
	out := []Entry{
		rationals(0x0002, e.GPS.Lat[:]...),
		rationals(0x0004, e.GPS.Lng[:]...),
	}
	if e.GPS.LatRef != "" {
		out = append(out, ascii(0x0001, e.GPS.LatRef))
	}
	if e.GPS.LngRef != "" {
		out = append(out, ascii(0x0003, e.GPS.LngRef))
	}
	return out
}

func ifdSize(entries []Entry) uint32 {
	size := uint32(2 + 12*len(entries) + 4)
	for _, en := range entries {
		if len(en.Value) > 4 {
			size += uint32(len(en.Value)+1) &^ 1
		}
	}
	return size
}

func setLong(entries []Entry, tag uint16, v uint32) {
	for i := range entries {
		if entries[i].Tag == tag {
			binary.LittleEndian.PutUint32(entries[i].Value, v)
		}
	}
}

// build lays out header | IFD0 | IFD1 | EXIF IFD | GPS IFD | trailer.
func build(ifd0, ifd1 []Entry, e Exif, trailer []byte) []byte {
	exifEntries := e.exifIFD()
	gpsEntries := e.gpsIFD()
	if len(exifEntries) > 0 {
		ifd0 = append(ifd0, long(0x8769, 0))
	}
	if len(gpsEntries) > 0 {
		ifd0 = append(ifd0, long(0x8825, 0))
	}

	off0 := uint32(8)
	off1 := off0 + ifdSize(ifd0)
	offExif := off1
	if len(ifd1) > 0 {
		offExif += ifdSize(ifd1)
	}
	offGPS := offExif
	if len(exifEntries) > 0 {
		offGPS += ifdSize(exifEntries)
	}
	offTrailer := offGPS
	if len(gpsEntries) > 0 {
		offTrailer += ifdSize(gpsEntries)
	}

	setLong(ifd0, 0x8769, offExif)
	setLong(ifd0, 0x8825, offGPS)
	setLong(ifd1, 0x0201, offTrailer)

	out := []byte{'I', 'I', 42, 0, 8, 0, 0, 0}
	next0 := uint32(0)
	if len(ifd1) > 0 {
		next0 = off1
	}
	out = append(out, encodeIFD(ifd0, off0, next0)...)
	if len(ifd1) > 0 {
		out = append(out, encodeIFD(ifd1, off1, 0)...)
	}
	if len(exifEntries) > 0 {
		out = append(out, encodeIFD(exifEntries, offExif, 0)...)
	}
	if len(gpsEntries) > 0 {
		out = append(out, encodeIFD(gpsEntries, offGPS, 0)...)
	}
	return append(out, trailer...)
}

func encodeIFD(entries []Entry, at, next uint32) []byte {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })

	head := make([]byte, 0, 2+12*len(sorted)+4)
	var extra []byte
	extraAt := at + uint32(2+12*len(sorted)+4)

	head = binary.LittleEndian.AppendUint16(head, uint16(len(sorted)))
	for _, en := range sorted {
		head = binary.LittleEndian.AppendUint16(head, en.Tag)
		head = binary.LittleEndian.AppendUint16(head, en.Type)
		head = binary.LittleEndian.AppendUint32(head, en.Count)
		if len(en.Value) <= 4 {
			v := make([]byte, 4)
			copy(v, en.Value)
			head = append(head, v...)
			continue
		}
		head = binary.LittleEndian.AppendUint32(head, extraAt+uint32(len(extra)))
		extra = append(extra, en.Value...)
		if len(en.Value)%2 == 1 {
			extra = append(extra, 0)
		}
	}
	head = binary.LittleEndian.AppendUint32(head, next)
	return append(head, extra...)
}
