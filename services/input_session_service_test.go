package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/camden-git/photocatalog/media/mediatest"
	"github.com/camden-git/photocatalog/models"
)

func TestCreateSessionDefaults(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.sessions.Create(CreateSessionRequest{SourcePath: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank source err = %v", err)
	}
	missing := uuid.New()
	if _, err := env.sessions.Create(CreateSessionRequest{SourcePath: "/x", DefaultPhotographerID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown photographer err = %v", err)
	}
	if _, err := env.sessions.Create(CreateSessionRequest{SourcePath: "/x", DefaultEventID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown event err = %v", err)
	}

	s, err := env.sessions.Create(CreateSessionRequest{SourcePath: "/x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !s.Recursive || s.Status != models.SessionStatusPending || s.StartedAt.IsZero() {
		t.Errorf("session = %+v", s)
	}
	unknown, err := env.photographers.List()
	if err != nil || len(unknown) != 1 || s.DefaultPhotographerID != unknown[0].ID {
		t.Errorf("default photographer = %s, photographers = %+v", s.DefaultPhotographerID, unknown)
	}
}

func TestImportRegistersEverything(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	mediatest.WriteFile(t, dir, "IMG_0001.JPG", mediatest.JPEG(100, 80, 1))
	mediatest.WriteFile(t, dir, "IMG_0001.xmp", []byte("<x:xmpmeta/>"))
	mediatest.WriteFile(t, dir, "sub/IMG_0002.png", mediatest.PNG(90, 90, 2, false))
	mediatest.WriteFile(t, dir, "sub/IMG_0003.jpg", []byte("corrupt"))
	mediatest.WriteFile(t, dir, "readme.txt", []byte("skip me"))
	session := env.newSession(t, dir)

	res, err := env.sessions.Import(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res != (ProcessResult{Registered: 2, Duplicates: 0, Errors: 1}) {
		t.Errorf("result = %+v", res)
	}

	s := env.reloadSession(t, session)
	if s.Status != models.SessionStatusCompleted || s.CompletedAt == nil {
		t.Errorf("status = %s completed_at = %v", s.Status, s.CompletedAt)
	}
	photos, err := env.sessions.ListPhotos(session.ID)
	if err != nil || len(photos) != 2 {
		t.Fatalf("ListPhotos = %d, %v", len(photos), err)
	}
	if got := env.count(t, &models.ImageFile{}); got != 3 {
		t.Errorf("image files = %d, want 3", got)
	}

	again, err := env.sessions.Complete(session.ID)
	if err != nil || again != res {
		t.Errorf("second Complete = %+v, %v", again, err)
	}
	if err := env.sessions.Cancel(session.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("cancel completed session err = %v", err)
	}
}

func TestReimportOfSameSourceIsAlreadyRegistered(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	mediatest.WriteFile(t, dir, "a.jpg", mediatest.JPEG(60, 60, 1))
	mediatest.WriteFile(t, dir, "b.jpg", mediatest.JPEG(60, 60, 2))

	first := env.newSession(t, dir)
	if _, err := env.sessions.Import(context.Background(), first.ID); err != nil {
		t.Fatalf("first Import: %v", err)
	}

	second := env.newSession(t, dir)
	res, err := env.sessions.Import(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if res != (ProcessResult{}) {
		t.Errorf("re-import result = %+v, want all zero", res)
	}
	if got := env.count(t, &models.Photo{}); got != 2 {
		t.Errorf("photos = %d", got)
	}
}

func TestScanAndCheck(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	a := mediatest.WriteFile(t, dir, "a.jpg", mediatest.JPEG(40, 40, 1))
	b := mediatest.WriteFile(t, dir, "b.jpg", mediatest.JPEG(40, 40, 2))
	mediatest.WriteFile(t, dir, "b.cr2", []byte("raw"))
	mediatest.WriteFile(t, dir, "c.doc", []byte("?"))
	session := env.newSession(t, dir)

	scan, err := env.sessions.Scan(session.ID)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scan.Groups) != 2 || scan.UnknownCount != 1 {
		t.Fatalf("scan = %+v", scan)
	}
	if scan.Groups[1].Master != filepath.Join(dir, "b.cr2") || !scan.Groups[1].HasRaw {
		t.Errorf("raw should be master of group b: %+v", scan.Groups[1])
	}
	if s := env.reloadSession(t, session); s.Status != models.SessionStatusAwaitingConfirmation {
		t.Errorf("status after scan = %s", s.Status)
	}

	if _, err := env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{MasterPath: a}, defaultSnapshot); err != nil {
		t.Fatalf("RegisterGroup: %v", err)
	}
	check, err := env.sessions.Check(session.ID, []string{b, a})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(check.Known) != 1 || check.Known[0] != a || len(check.Unknown) != 1 || check.Unknown[0] != b {
		t.Errorf("check = %+v", check)
	}
}

func TestScanMissingSource(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t, filepath.Join(t.TempDir(), "gone"))
	if _, err := env.sessions.Scan(session.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if s := env.reloadSession(t, session); s.Status != models.SessionStatusFailed {
		t.Errorf("status after failed scan = %s, want failed", s.Status)
	}
	if _, err := env.sessions.Scan(session.ID); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("rescan err = %v, want ErrSessionClosed", err)
	}
}

func TestCancelledSessionRejectsWork(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t, t.TempDir())

	if err := env.sessions.Cancel(session.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := env.sessions.Cancel(session.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("second cancel err = %v", err)
	}
	if _, err := env.sessions.Complete(session.ID); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Complete err = %v", err)
	}
	if _, err := env.sessions.Scan(session.ID); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Scan err = %v", err)
	}
	if s := env.reloadSession(t, session); s.CompletedAt == nil {
		t.Error("terminal session has no completed_at")
	}
}

func TestDeleteSessionKeepsPhotos(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	mediatest.WriteFile(t, dir, "a.jpg", mediatest.JPEG(50, 50, 1))
	mediatest.WriteFile(t, dir, "copy/a.jpg", mediatest.JPEG(50, 50, 1))
	session := env.newSession(t, dir)
	res, err := env.sessions.Import(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Registered != 1 || res.Duplicates != 1 {
		t.Fatalf("result = %+v", res)
	}

	if err := env.sessions.Delete(session.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.sessions.Get(session.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	var photo models.Photo
	if err := env.db.First(&photo).Error; err != nil {
		t.Fatalf("photo gone with its session: %v", err)
	}
	if photo.InputSessionID != nil {
		t.Errorf("input_session_id = %v, want nil", photo.InputSessionID)
	}
	if got := env.count(t, &models.DuplicateFile{}); got != 0 {
		t.Errorf("duplicate rows = %d", got)
	}
}
