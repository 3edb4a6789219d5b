package media

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"math/bits"

	"github.com/corona10/goimagehash"
)

// DefaultSimilarityThreshold is the Hamming distance under which two photos
// are reported as visually similar.
const DefaultSimilarityThreshold = 15

// PerceptualHashes holds the two 64-bit signals computed from a hot preview.
type PerceptualHashes struct {
	DCT        uint64
	Difference uint64
}

// ComputePerceptualHashes derives a DCT perceptual hash and a difference
// hash from hot preview JPEG bytes. They feed similarity search only and
// never participate in duplicate detection.
func ComputePerceptualHashes(thumbnail []byte) (PerceptualHashes, error) {
	img, err := jpeg.Decode(bytes.NewReader(thumbnail))
	if err != nil {
		return PerceptualHashes{}, fmt.Errorf("%w: perceptual hash input: %v", ErrDecodeFailure, err)
	}

	dct, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return PerceptualHashes{}, fmt.Errorf("perception hash: %w", err)
	}
	diff, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return PerceptualHashes{}, fmt.Errorf("difference hash: %w", err)
	}

	return PerceptualHashes{DCT: dct.GetHash(), Difference: diff.GetHash()}, nil
}

// HammingDistance counts differing bits.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// ToStored reinterprets a hash as the signed value kept in the database.
func ToStored(h uint64) int64 { return int64(h) }

// FromStored is the inverse of ToStored.
func FromStored(v int64) uint64 { return uint64(v) }
