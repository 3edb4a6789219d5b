package workers

import (
	"os"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/config"
	"github.com/camden-git/photocatalog/database"
	"github.com/camden-git/photocatalog/media/mediatest"
	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/repository"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Type: config.DatabaseTypeSQLite, Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createCopyOp(t *testing.T, db *gorm.DB, src, dst string) *models.FileCopyOperation {
	t.Helper()
	op := &models.FileCopyOperation{SourcePath: src, DestinationPath: dst, VerifyAfterCopy: true}
	if err := repository.NewFileCopyRepository(db).Create(op); err != nil {
		t.Fatalf("create op: %v", err)
	}
	return op
}

func TestFileCopierCopiesAndSkipsExisting(t *testing.T) {
	db := openTestDB(t)
	src, dst := t.TempDir(), t.TempDir()
	mediatest.WriteFile(t, src, "DCIM/IMG_0001.JPG", mediatest.JPEG(32, 32, 1))
	mediatest.WriteFile(t, src, "DCIM/IMG_0002.JPG", mediatest.JPEG(32, 32, 2))
	mediatest.WriteFile(t, src, "DCIM/IMG_0002.CR2", []byte("raw bytes"))
	mediatest.WriteFile(t, src, "DCIM/notes.txt", []byte("ignored"))
	mediatest.WriteFile(t, dst, "IMG_0001.JPG", []byte("already here"))

	op := createCopyOp(t, db, src, dst)
	c := NewFileCopier(db, 4)
	defer c.Stop()

	if !c.Enqueue(op.ID) {
		t.Fatal("Enqueue rejected")
	}
	c.Wait()

	ops := repository.NewFileCopyRepository(db)
	got, err := ops.GetByID(op.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.CopyStatusCompleted {
		t.Fatalf("status = %s (error %v), want completed", got.Status, got.Error)
	}
	if got.FilesTotal != 3 || got.FilesCopied != 2 || got.FilesSkipped != 1 {
		t.Errorf("total/copied/skipped = %d/%d/%d, want 3/2/1", got.FilesTotal, got.FilesCopied, got.FilesSkipped)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("timestamps not recorded")
	}

	skips, err := ops.ListSkips(op.ID)
	if err != nil {
		t.Fatalf("ListSkips: %v", err)
	}
	if len(skips) != 1 || skips[0].Reason != models.SkipReasonAlreadyExists {
		t.Fatalf("skips = %+v", skips)
	}

	if b, _ := os.ReadFile(filepath.Join(dst, "IMG_0001.JPG")); string(b) != "already here" {
		t.Error("existing destination file was overwritten")
	}
	if b, _ := os.ReadFile(filepath.Join(dst, "IMG_0002.CR2")); string(b) != "raw bytes" {
		t.Errorf("copied raw = %q", b)
	}
	if _, err := os.Stat(filepath.Join(dst, "notes.txt")); err == nil {
		t.Error("unknown file type was copied")
	}
}

func TestFileCopierHonoursCancelBeforeFirstFile(t *testing.T) {
	db := openTestDB(t)
	src, dst := t.TempDir(), t.TempDir()
	mediatest.WriteFile(t, src, "a.jpg", mediatest.JPEG(16, 16, 1))

	op := createCopyOp(t, db, src, dst)
	c := NewFileCopier(db, 4)
	defer c.Stop()

	c.Cancel(op.ID)
	c.Enqueue(op.ID)
	c.Wait()

	got, err := repository.NewFileCopyRepository(db).GetByID(op.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.CopyStatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if got.FilesCopied != 0 {
		t.Errorf("files copied = %d", got.FilesCopied)
	}
}

func TestFileCopierSkipsNonPendingOperation(t *testing.T) {
	db := openTestDB(t)
	src, dst := t.TempDir(), t.TempDir()
	mediatest.WriteFile(t, src, "a.jpg", mediatest.JPEG(16, 16, 1))

	op := createCopyOp(t, db, src, dst)
	ops := repository.NewFileCopyRepository(db)
	if ok, err := ops.SetStatus(op.ID, models.CopyStatusCancelled, []string{models.CopyStatusPending}); err != nil || !ok {
		t.Fatalf("SetStatus: %v %v", ok, err)
	}

	c := NewFileCopier(db, 4)
	defer c.Stop()
	c.Enqueue(op.ID)
	c.Wait()

	if _, err := os.Stat(filepath.Join(dst, "a.jpg")); err == nil {
		t.Error("cancelled operation copied files")
	}
}

func TestFileCopierMissingSourceFails(t *testing.T) {
	db := openTestDB(t)
	op := createCopyOp(t, db, filepath.Join(t.TempDir(), "gone"), t.TempDir())

	c := NewFileCopier(db, 4)
	defer c.Stop()
	c.Enqueue(op.ID)
	c.Wait()

	got, err := repository.NewFileCopyRepository(db).GetByID(op.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.CopyStatusFailed || got.Error == nil {
		t.Errorf("status = %s error = %v, want failed with message", got.Status, got.Error)
	}
}
