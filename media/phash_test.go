package media

import (
	"testing"

	"github.com/camden-git/photocatalog/media/mediatest"
)

func TestPerceptualHashesDeterministic(t *testing.T) {
	p, _ := newTestProcessor(t)
	hp, err := p.GenerateHotPreview(mediatest.WriteFile(t, t.TempDir(), "a.jpg", mediatest.JPEG(300, 200, 1)))
	if err != nil {
		t.Fatalf("hot preview: %v", err)
	}

	a, err := ComputePerceptualHashes(hp.JPEG)
	if err != nil {
		t.Fatalf("ComputePerceptualHashes: %v", err)
	}
	b, _ := ComputePerceptualHashes(hp.JPEG)
	if a != b {
		t.Errorf("hashes differ between runs: %+v vs %+v", a, b)
	}
	if HammingDistance(a.DCT, b.DCT) != 0 {
		t.Error("identical input must have distance 0")
	}
}

func TestPerceptualHashRejectsGarbage(t *testing.T) {
	if _, err := ComputePerceptualHashes([]byte("nope")); err == nil {
		t.Error("expected error for non-jpeg input")
	}
}

func TestHammingDistanceAndStorage(t *testing.T) {
	if d := HammingDistance(0, 0xFF); d != 8 {
		t.Errorf("distance = %d, want 8", d)
	}
	h := uint64(0xF000_0000_0000_0001)
	if FromStored(ToStored(h)) != h {
		t.Error("stored round trip lost bits")
	}
	if ToStored(h) >= 0 {
		t.Error("high bit should map to a negative stored value")
	}
}
