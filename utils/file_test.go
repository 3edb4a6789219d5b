package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFilePreservesContentAndTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(src, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "nested", "dst.bin")
	hash, n, err := CopyFile(src, dst)
	if err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if n != 11 {
		t.Errorf("copied %d bytes, want 11", n)
	}

	dstHash, dstSize, err := HashFile(dst)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if dstHash != hash || dstSize != n {
		t.Errorf("destination hash/size = %s/%d, copy reported %s/%d", dstHash, dstSize, hash, n)
	}
	// sha256("hello world")
	if hash != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Errorf("hash = %s", hash)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
}

func TestCopyFileRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	os.WriteFile(src, []byte("a"), 0o644)
	os.WriteFile(dst, []byte("b"), 0o644)

	if _, _, err := CopyFile(src, dst); err == nil {
		t.Fatal("expected error for existing destination")
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "b" {
		t.Errorf("existing destination was modified: %q", got)
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error")
	}
}
