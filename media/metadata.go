package media

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/jdeng/goheif"
	"github.com/rs/zerolog/log"
	"github.com/rwcarlsen/goexif/exif"
)

// ExifDateLayout is the layout of EXIF DateTime* values.
const ExifDateLayout = "2006:01:02 15:04:05"

// Metadata is the curated EXIF record persisted per ImageFile. Absent tags
// are omitted, never null.
type Metadata struct {
	DateTimeOriginal  *string  `json:"date_time_original,omitempty"`
	DateTimeSubsec    *string  `json:"date_time_subsec,omitempty"`
	DateTimeDigitized *string  `json:"datetime_digitized,omitempty"`
	GPSLat            *float64 `json:"gps_lat,omitempty"`
	GPSLng            *float64 `json:"gps_lng,omitempty"`
	Width             *int     `json:"width,omitempty"`
	Height            *int     `json:"height,omitempty"`
	Orientation       *int     `json:"orientation,omitempty"`
	FocalLength35mm   *int     `json:"focal_length_35mm,omitempty"`
	EVComp            *float64 `json:"ev_comp,omitempty"`
	ExposureProgram   *string  `json:"exposure_program,omitempty"`
	ExposureMode      *string  `json:"exposure_mode,omitempty"`
	Flash             *string  `json:"flash,omitempty"`
	WhiteBalance      *string  `json:"white_balance,omitempty"`
	MeteringMode      *string  `json:"metering_mode,omitempty"`
	ColorSpace        *string  `json:"color_space,omitempty"`
	SceneType         *string  `json:"scene_type,omitempty"`
	LightSource       *string  `json:"light_source,omitempty"`
	Software          *string  `json:"software,omitempty"`
	Artist            *string  `json:"artist,omitempty"`
	Copyright         *string  `json:"copyright,omitempty"`
}

// IsEmpty reports whether no curated field was found.
func (m Metadata) IsEmpty() bool {
	return m == Metadata{}
}

// CameraFields are the columns denormalised onto Photo.
type CameraFields struct {
	CameraMake   *string  `json:"camera_make,omitempty"`
	CameraModel  *string  `json:"camera_model,omitempty"`
	LensModel    *string  `json:"lens_model,omitempty"`
	ISO          *int     `json:"iso,omitempty"`
	ShutterSpeed *string  `json:"shutter_speed,omitempty"`
	Aperture     *float64 `json:"aperture,omitempty"`
	FocalLength  *float64 `json:"focal_length,omitempty"`
}

var (
	exposurePrograms = map[int]string{
		0: "undefined", 1: "manual", 2: "normal", 3: "aperture priority", 4: "shutter priority",
		5: "creative", 6: "action", 7: "portrait", 8: "landscape",
	}
	exposureModes = map[int]string{0: "auto", 1: "manual", 2: "auto bracket"}
	whiteBalances = map[int]string{0: "auto", 1: "manual"}
	meteringModes = map[int]string{
		0: "unknown", 1: "average", 2: "center weighted", 3: "spot", 4: "multi spot",
		5: "pattern", 6: "partial", 255: "other",
	}
	colorSpaces  = map[int]string{1: "sRGB", 65535: "uncalibrated"}
	sceneTypes   = map[int]string{0: "standard", 1: "landscape", 2: "portrait", 3: "night"}
	lightSources = map[int]string{
		0: "unknown", 1: "daylight", 2: "fluorescent", 3: "tungsten", 4: "flash",
		9: "fine weather", 10: "cloudy", 11: "shade", 255: "other",
	}
)

// MetadataBackend reads curated metadata from one family of containers.
type MetadataBackend interface {
	Extract(path string) (Metadata, error)
	CameraFields(path string) (CameraFields, error)
}

// Extractor picks a backend by file role. Its methods never fail: a file
// without readable EXIF yields an empty record.
type Extractor struct {
	backends map[FileRole]MetadataBackend
}

func NewExtractor() *Extractor {
	container := ContainerBackend{}
	return &Extractor{
		backends: map[FileRole]MetadataBackend{
			RoleJPEG: container,
			RolePNG:  container,
			RoleTIFF: container,
			RoleHEIC: container,
			RoleRAW:  RawBackend{},
		},
	}
}

// BackendFor returns the backend registered for role.
func (e *Extractor) BackendFor(role FileRole) (MetadataBackend, bool) {
	b, ok := e.backends[role]
	return b, ok
}

func (e *Extractor) Extract(path string) Metadata {
	b, ok := e.BackendFor(ClassifyPath(path))
	if !ok {
		return Metadata{}
	}
	m, err := b.Extract(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("metadata: no curated exif")
		return Metadata{}
	}
	return m
}

func (e *Extractor) CameraFields(path string) CameraFields {
	b, ok := e.BackendFor(ClassifyPath(path))
	if !ok {
		return CameraFields{}
	}
	c, err := b.CameraFields(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("metadata: no camera fields")
		return CameraFields{}
	}
	return c
}

// ExtractSource is Extract for an opened Source. RAW sources reuse the
// container already parsed for previews.
func (e *Extractor) ExtractSource(src *Source) Metadata {
	if _, ok := e.backends[src.Role].(RawBackend); !ok {
		return e.Extract(src.Path)
	}
	rc, err := src.Raw()
	if err != nil {
		log.Debug().Err(err).Str("path", src.Path).Msg("metadata: no curated exif")
		return Metadata{}
	}
	return rawMetadata(rc)
}

// CameraFieldsSource is CameraFields for an opened Source.
func (e *Extractor) CameraFieldsSource(src *Source) CameraFields {
	if _, ok := e.backends[src.Role].(RawBackend); !ok {
		return e.CameraFields(src.Path)
	}
	rc, err := src.Raw()
	if err != nil {
		log.Debug().Err(err).Str("path", src.Path).Msg("metadata: no camera fields")
		return CameraFields{}
	}
	return rawCameraFields(rc)
}

// ContainerBackend reads EXIF embedded in JPEG APP1, TIFF headers, PNG eXIf
// chunks and HEIF items.
type ContainerBackend struct{}

func (ContainerBackend) decode(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	defer f.Close()

	switch ClassifyPath(path) {
	case RoleHEIC:
		raw, err := goheif.ExtractExif(f)
		if err != nil {
			return nil, fmt.Errorf("heif exif: %w", err)
		}
		return decodeExifBlob(raw)
	case RolePNG:
		raw, err := pngExifChunk(f)
		if err != nil {
			return nil, err
		}
		return decodeExifBlob(raw)
	}

	var head [4]byte
	if _, err := io.ReadFull(f, head[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}
	switch {
	case head[0] == 0xFF && head[1] == 0xD8:
		if _, err := f.Seek(2, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		block, err := jpegExifSegment(bufio.NewReader(f))
		if err != nil {
			return nil, err
		}
		return decodeExifBlob(block)
	case string(head[:]) == "II*\x00" || string(head[:]) == "MM\x00*":
		st, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		if err := CheckTIFFStructure(f, st.Size()); err != nil {
			return nil, err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		return exif.Decode(f)
	}
	return nil, fmt.Errorf("%w: no exif container", ErrUnsupportedContainer)
}

func (b ContainerBackend) Extract(path string) (Metadata, error) {
	x, err := b.decode(path)
	if err != nil {
		return Metadata{}, err
	}
	m := buildCurated(x)
	m.Width = exifInt(x, exif.PixelXDimension)
	m.Height = exifInt(x, exif.PixelYDimension)
	return m, nil
}

func (b ContainerBackend) CameraFields(path string) (CameraFields, error) {
	x, err := b.decode(path)
	if err != nil {
		return CameraFields{}, err
	}
	return buildCameraFields(x), nil
}

// RawBackend reads the TIFF-structured tag tree of camera RAW files.
// Width and height are the sensor dimensions, not the preview's.
type RawBackend struct{}

func (RawBackend) Extract(path string) (Metadata, error) {
	rc, err := OpenRaw(path)
	if err != nil {
		return Metadata{}, err
	}
	return rawMetadata(rc), nil
}

func (RawBackend) CameraFields(path string) (CameraFields, error) {
	rc, err := OpenRaw(path)
	if err != nil {
		return CameraFields{}, err
	}
	return rawCameraFields(rc), nil
}

func rawMetadata(rc *RawContainer) Metadata {
	var m Metadata
	if rc.Exif != nil {
		m = buildCurated(rc.Exif)
	}
	if rc.Width > 0 && rc.Height > 0 {
		w, h := rc.Width, rc.Height
		m.Width, m.Height = &w, &h
	}
	return m
}

func rawCameraFields(rc *RawContainer) CameraFields {
	if rc.Exif == nil {
		return CameraFields{}
	}
	return buildCameraFields(rc.Exif)
}

func buildCurated(x *exif.Exif) Metadata {
	m := Metadata{
		DateTimeOriginal:  exifString(x, exif.DateTimeOriginal),
		DateTimeSubsec:    exifString(x, exif.SubSecTimeOriginal),
		DateTimeDigitized: exifString(x, exif.DateTimeDigitized),
		Orientation:       exifInt(x, exif.Orientation),
		FocalLength35mm:   exifInt(x, exif.FocalLengthIn35mmFilm),
		ExposureProgram:   lookup(exposurePrograms, exifInt(x, exif.ExposureProgram)),
		ExposureMode:      lookup(exposureModes, exifInt(x, exif.ExposureMode)),
		WhiteBalance:      lookup(whiteBalances, exifInt(x, exif.WhiteBalance)),
		MeteringMode:      lookup(meteringModes, exifInt(x, exif.MeteringMode)),
		ColorSpace:        lookup(colorSpaces, exifInt(x, exif.ColorSpace)),
		SceneType:         lookup(sceneTypes, exifInt(x, exif.SceneCaptureType)),
		LightSource:       lookup(lightSources, exifInt(x, exif.LightSource)),
		Software:          exifString(x, exif.Software),
		Artist:            exifString(x, exif.Artist),
		Copyright:         exifString(x, exif.Copyright),
	}

	if ev := exifRational(x, exif.ExposureBiasValue); ev != nil {
		m.EVComp = roundTo(*ev, 2)
	}
	if flash := exifInt(x, exif.Flash); flash != nil {
		s := "no flash"
		if *flash&1 == 1 {
			s = "fired"
		}
		m.Flash = &s
	}
	m.GPSLat = gpsCoordinate(x, exif.GPSLatitude, exif.GPSLatitudeRef, "S")
	m.GPSLng = gpsCoordinate(x, exif.GPSLongitude, exif.GPSLongitudeRef, "W")
	return m
}

func buildCameraFields(x *exif.Exif) CameraFields {
	c := CameraFields{
		CameraMake:   exifString(x, exif.Make),
		CameraModel:  exifString(x, exif.Model),
		LensModel:    exifString(x, exif.LensModel),
		ISO:          exifInt(x, exif.ISOSpeedRatings),
		ShutterSpeed: shutterSpeed(x),
	}
	if v := exifRational(x, exif.FNumber); v != nil {
		c.Aperture = roundTo(*v, 1)
	}
	if v := exifRational(x, exif.FocalLength); v != nil {
		c.FocalLength = roundTo(*v, 1)
	}
	return c
}

// FormatShutterSpeed renders exposure time as "1/N" below one second and
// "Ns" otherwise.
func FormatShutterSpeed(seconds float64) string {
	if seconds >= 1 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	return fmt.Sprintf("1/%d", int(math.Round(1/seconds)))
}

func shutterSpeed(x *exif.Exif) *string {
	v := exifRational(x, exif.ExposureTime)
	if v == nil || *v <= 0 {
		return nil
	}
	s := FormatShutterSpeed(*v)
	return &s
}

// DMSToDecimal converts degrees/minutes/seconds to signed decimal degrees
// rounded to 7 places.
func DMSToDecimal(deg, min, sec float64, negative bool) float64 {
	v := deg + min/60 + sec/3600
	if negative {
		v = -v
	}
	return *roundTo(v, 7)
}

func gpsCoordinate(x *exif.Exif, field, refField exif.FieldName, negativeRef string) *float64 {
	tag, err := x.Get(field)
	if err != nil || tag == nil || tag.Count < 3 {
		return nil
	}
	var parts [3]float64
	for i := range parts {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return nil
		}
		parts[i] = float64(num) / float64(den)
	}
	// a coordinate without its hemisphere is ambiguous
	ref := exifString(x, refField)
	if ref == nil {
		return nil
	}
	v := DMSToDecimal(parts[0], parts[1], parts[2], strings.EqualFold(*ref, negativeRef))
	return &v
}

// DeriveTakenAt parses date_time_original as UTC.
func DeriveTakenAt(m Metadata) *time.Time {
	if m.DateTimeOriginal == nil {
		return nil
	}
	t, err := time.ParseInLocation(ExifDateLayout, strings.TrimSpace(*m.DateTimeOriginal), time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// DeriveGPS returns the record's coordinates.
func DeriveGPS(m Metadata) (lat, lng *float64) {
	return m.GPSLat, m.GPSLng
}

func lookup(table map[int]string, v *int) *string {
	if v == nil {
		return nil
	}
	s, ok := table[*v]
	if !ok {
		return nil
	}
	return &s
}

func roundTo(v float64, places int) *float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	return &r
}

func exifInt(x *exif.Exif, name exif.FieldName) *int {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	v, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &v
}

// exifRational reads a RATIONAL tag, falling back to an integer encoding.
func exifRational(x *exif.Exif, name exif.FieldName) *float64 {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil {
		iv, ierr := tag.Int(0)
		if ierr != nil {
			return nil
		}
		f := float64(iv)
		return &f
	}
	if den == 0 {
		return nil
	}
	f := float64(num) / float64(den)
	return &f
}

func exifString(x *exif.Exif, name exif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	s, err := tag.StringVal()
	if err != nil {
		return nil
	}
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return nil
	}
	return &s
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// maxPNGExifChunk bounds the eXIf payload read into memory.
const maxPNGExifChunk = 4 << 20

// pngExifChunk returns the payload of the eXIf chunk.
func pngExifChunk(r io.Reader) ([]byte, error) {
	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil || !bytes.Equal(sig, pngSignature) {
		return nil, fmt.Errorf("%w: not a png", ErrUnsupportedContainer)
	}
	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("png: no exif chunk: %w", err)
		}
		n := binary.BigEndian.Uint32(hdr[:4])
		kind := string(hdr[4:8])
		switch kind {
		case "eXIf":
			if n > maxPNGExifChunk {
				return nil, fmt.Errorf("%w: exif chunk of %d bytes", ErrMalformedExif, n)
			}
			data := make([]byte, n)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("png: short exif chunk: %w", err)
			}
			return data, nil
		case "IDAT", "IEND":
			// eXIf must precede image data
			return nil, fmt.Errorf("png: no exif chunk")
		}
		if _, err := io.CopyN(io.Discard, r, int64(n)+4); err != nil {
			return nil, fmt.Errorf("png: truncated chunk %s: %w", kind, err)
		}
	}
}
