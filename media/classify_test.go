package media

import "testing"

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path string
		want FileRole
	}{
		{"/x/IMG_0001.CR2", RoleRAW},
		{"/x/img_0001.cr3", RoleRAW},
		{"a.NEF", RoleRAW},
		{"a.arw", RoleRAW},
		{"a.orf", RoleRAW},
		{"a.rw2", RoleRAW},
		{"a.dng", RoleRAW},
		{"a.raf", RoleRAW},
		{"a.pef", RoleRAW},
		{"a.srw", RoleRAW},
		{"a.JPG", RoleJPEG},
		{"a.jpeg", RoleJPEG},
		{"a.png", RolePNG},
		{"a.tif", RoleTIFF},
		{"a.TIFF", RoleTIFF},
		{"a.heic", RoleHEIC},
		{"a.HEIF", RoleHEIC},
		{"a.xmp", RoleXMP},
		{"a.mov", RoleUnknown},
		{"a.txt", RoleUnknown},
		{"noext", RoleUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyPath(tt.path); got != tt.want {
			t.Errorf("ClassifyPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestClassifyExtensionWithoutDot(t *testing.T) {
	if got := ClassifyExtension("NEF"); got != RoleRAW {
		t.Errorf("ClassifyExtension(NEF) = %q", got)
	}
}

func TestRolePriority(t *testing.T) {
	order := []FileRole{RoleRAW, RoleJPEG, RoleHEIC, RoleXMP, RoleUnknown}
	for i := 1; i < len(order); i++ {
		if order[i-1].Priority() >= order[i].Priority() {
			t.Errorf("%q should rank before %q", order[i-1], order[i])
		}
	}
	if RoleXMP.IsImage() || !RoleXMP.IsSidecar() {
		t.Error("xmp must be a sidecar, not an image")
	}
	if !IsRasterImage("a.png") || IsRasterImage("a.nef") {
		t.Error("IsRasterImage mismatch")
	}
}

func TestIsVideoPath(t *testing.T) {
	for _, p := range []string{"a.MP4", "b.mov", "c.mxf", "d.3gp"} {
		if !IsVideoPath(p) {
			t.Errorf("%s should be video", p)
		}
	}
	if IsVideoPath("a.jpg") {
		t.Error("jpg is not video")
	}
}
