package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/camden-git/photocatalog/media/mediatest"
	"github.com/camden-git/photocatalog/models"
)

func TestRegisterGroupCreatesPhotoWithCompanions(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	jpg := mediatest.WriteFile(t, dir, "IMG_0001.JPG", mediatest.JPEGWithExif(320, 240, 1, mediatest.Exif{
		Make:             "Canon",
		Model:            "EOS R5",
		DateTimeOriginal: "2024:05:06 10:11:12",
		ISO:              400,
		GPS: &mediatest.GPS{
			LatRef: "N", Lat: [3]mediatest.Rational{{59, 1}, {54, 1}, {0, 1}},
			LngRef: "E", Lng: [3]mediatest.Rational{{10, 1}, {45, 1}, {0, 1}},
		},
	}))
	xmp := mediatest.WriteFile(t, dir, "IMG_0001.xmp", []byte("<x:xmpmeta/>"))
	session := env.newSession(t, dir)

	res, err := env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{
		MasterPath: jpg,
		MasterType: "JPEG",
		Companions: []Companion{{Path: xmp, Type: "XMP"}},
	}, defaultSnapshot)
	if err != nil {
		t.Fatalf("RegisterGroup: %v", err)
	}
	if res.Status != StatusRegistered || res.PhotoID == nil || len(res.Hothash) != 64 {
		t.Fatalf("result = %+v", res)
	}

	photo, err := env.photos.Get(*res.PhotoID)
	if err != nil {
		t.Fatalf("Get photo: %v", err)
	}
	if photo.Width == nil || *photo.Width != 320 || *photo.Height != 240 {
		t.Errorf("dims = %v x %v", photo.Width, photo.Height)
	}
	if photo.CameraMake == nil || *photo.CameraMake != "Canon" {
		t.Errorf("camera make = %v", photo.CameraMake)
	}
	if photo.TakenAt == nil || photo.TakenAt.Year() != 2024 {
		t.Errorf("taken at = %v", photo.TakenAt)
	}
	if photo.LocationLat == nil || *photo.LocationLat < 59.8 || *photo.LocationLat > 60 {
		t.Errorf("lat = %v", photo.LocationLat)
	}
	if photo.DCTPerceptualHash == nil || photo.DifferenceHash == nil {
		t.Error("perceptual hashes missing")
	}
	if !env.processor.ColdPreviewExists(res.Hothash) {
		t.Error("cold preview not written")
	}

	if len(photo.ImageFiles) != 2 {
		t.Fatalf("image files = %d, want 2", len(photo.ImageFiles))
	}
	masters := 0
	for _, f := range photo.ImageFiles {
		if f.IsMaster {
			masters++
			if f.FilePath != jpg || f.FileContentHash == nil || f.FileSizeBytes == nil {
				t.Errorf("master file = %+v", f)
			}
		} else if f.FileType != "XMP" {
			t.Errorf("companion type = %s", f.FileType)
		}
	}
	if masters != 1 {
		t.Errorf("masters = %d", masters)
	}

	got := env.reloadSession(t, session)
	if got.PhotoCount != 1 || got.Status != models.SessionStatusProcessing {
		t.Errorf("session count/status = %d/%s", got.PhotoCount, got.Status)
	}
}

func TestRegisterGroupSamePathIsAlreadyRegistered(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	path := mediatest.WriteFile(t, dir, "a.jpg", mediatest.JPEG(64, 48, 1))
	session := env.newSession(t, dir)
	req := GroupRequest{MasterPath: path, MasterType: "JPEG"}

	first, err := env.registration.RegisterGroup(context.Background(), session.ID, req, defaultSnapshot)
	if err != nil || first.Status != StatusRegistered {
		t.Fatalf("first = %+v, %v", first, err)
	}
	second, err := env.registration.RegisterGroup(context.Background(), session.ID, req, defaultSnapshot)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Status != StatusAlreadyRegistered || second.Hothash != first.Hothash {
		t.Errorf("second = %+v", second)
	}

	got := env.reloadSession(t, session)
	if got.PhotoCount != 1 || got.DuplicateCount != 0 {
		t.Errorf("counters = %d/%d", got.PhotoCount, got.DuplicateCount)
	}
}

func TestConcurrentIdenticalContentYieldsOnePhoto(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	data := mediatest.JPEG(120, 90, 4)
	const n = 5
	paths := make([]string, n)
	for i := range paths {
		paths[i] = mediatest.WriteFile(t, dir, fmt.Sprintf("copy%d/IMG.jpg", i), data)
	}
	session := env.newSession(t, dir)

	var wg sync.WaitGroup
	results := make([]GroupResult, n)
	errs := make([]error, n)
	for i, p := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{MasterPath: p}, defaultSnapshot)
		}()
	}
	wg.Wait()

	registered, duplicates := 0, 0
	for i, r := range results {
		if errs[i] != nil {
			t.Fatalf("RegisterGroup(%s): %v", paths[i], errs[i])
		}
		switch r.Status {
		case StatusRegistered:
			registered++
		case StatusDuplicate:
			duplicates++
		default:
			t.Errorf("%s: unexpected result %+v", paths[i], r)
		}
	}
	if registered != 1 || duplicates != n-1 {
		t.Errorf("registered/duplicates = %d/%d", registered, duplicates)
	}
	if got := env.count(t, &models.Photo{}); got != 1 {
		t.Errorf("photos = %d", got)
	}
	if got := env.count(t, &models.DuplicateFile{}); got != n-1 {
		t.Errorf("duplicate rows = %d", got)
	}
	s := env.reloadSession(t, session)
	if s.PhotoCount != 1 || s.DuplicateCount != n-1 {
		t.Errorf("session counters = %d/%d", s.PhotoCount, s.DuplicateCount)
	}
}

func TestRegisterGroupFailureIsRecordedOnSession(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	broken := mediatest.WriteFile(t, dir, "broken.jpg", []byte("definitely not a jpeg"))
	good := mediatest.WriteFile(t, dir, "good.jpg", mediatest.JPEG(64, 64, 2))
	session := env.newSession(t, dir)

	res, err := env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{MasterPath: broken}, defaultSnapshot)
	if err != nil {
		t.Fatalf("group failure must not be returned as error: %v", err)
	}
	if res.Status != StatusError || res.Error == "" {
		t.Errorf("result = %+v", res)
	}

	res, err = env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{MasterPath: good}, defaultSnapshot)
	if err != nil || res.Status != StatusRegistered {
		t.Fatalf("good group after failure = %+v, %v", res, err)
	}

	errs, err := env.sessions.ListErrors(session.ID)
	if err != nil {
		t.Fatalf("ListErrors: %v", err)
	}
	if len(errs) != 1 || errs[0].FilePath != broken {
		t.Errorf("errors = %+v", errs)
	}
	s := env.reloadSession(t, session)
	if s.ErrorCount != 1 || s.PhotoCount != 1 {
		t.Errorf("error/photo counts = %d/%d", s.ErrorCount, s.PhotoCount)
	}
}

func TestRegisterGroupRejectsInvalidRequests(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	xmp := mediatest.WriteFile(t, dir, "a.xmp", []byte("<x/>"))
	jpg := mediatest.WriteFile(t, dir, "a.jpg", mediatest.JPEG(32, 32, 4))
	session := env.newSession(t, dir)
	stranger := uuid.New()

	tests := []struct {
		name string
		req  GroupRequest
		want error
	}{
		{"non-image master", GroupRequest{MasterPath: xmp}, ErrInvalidInput},
		{"empty master", GroupRequest{MasterType: "JPEG"}, ErrInvalidInput},
		{"unknown photographer", GroupRequest{MasterPath: jpg, PhotographerID: &stranger}, ErrNotFound},
		{"unknown event", GroupRequest{MasterPath: jpg, EventID: Some(uuid.New())}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.registration.RegisterGroup(context.Background(), session.ID, tt.req, defaultSnapshot)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	got := env.reloadSession(t, session)
	if got.ErrorCount != 0 || got.PhotoCount != 0 {
		t.Errorf("error/photo counts = %d/%d, want 0/0", got.ErrorCount, got.PhotoCount)
	}
	if n := env.count(t, &models.SessionError{}); n != 0 {
		t.Errorf("session errors = %d, want 0", n)
	}
	if n := env.count(t, &models.Photo{}); n != 0 {
		t.Errorf("photos = %d, want 0", n)
	}
}

func TestRegisterGroupCompanionConflictRemovesColdPreview(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	a := mediatest.WriteFile(t, dir, "a.jpg", mediatest.JPEG(64, 48, 10))
	b := mediatest.WriteFile(t, dir, "b.jpg", mediatest.JPEG(64, 48, 200))
	shared := mediatest.WriteFile(t, dir, "shared.xmp", []byte("<x/>"))
	session := env.newSession(t, dir)

	resA, err := env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{
		MasterPath: a,
		Companions: []Companion{{Path: shared, Type: "XMP"}},
	}, defaultSnapshot)
	if err != nil || resA.Status != StatusRegistered {
		t.Fatalf("first group = %+v, %v", resA, err)
	}

	hotB, err := env.processor.GenerateHotPreview(b)
	if err != nil {
		t.Fatalf("GenerateHotPreview: %v", err)
	}
	resB, err := env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{
		MasterPath: b,
		Companions: []Companion{{Path: shared, Type: "XMP"}},
	}, defaultSnapshot)
	if err != nil {
		t.Fatalf("RegisterGroup: %v", err)
	}
	if resB.Status != StatusError {
		t.Fatalf("conflicting group = %+v, want error", resB)
	}
	if env.processor.ColdPreviewExists(hotB.Hothash) {
		t.Error("cold preview of the rejected group was left behind")
	}
	if !env.processor.ColdPreviewExists(resA.Hothash) {
		t.Error("cold preview of the registered photo was removed")
	}
}

func TestReleaseColdPreviewKeepsOwnedPreview(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	owned := mediatest.WriteFile(t, dir, "owned.jpg", mediatest.JPEG(64, 48, 30))
	session := env.newSession(t, dir)

	res, err := env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{MasterPath: owned}, defaultSnapshot)
	if err != nil || res.Status != StatusRegistered {
		t.Fatalf("RegisterGroup = %+v, %v", res, err)
	}
	env.registration.releaseColdPreview(res.Hothash)
	if !env.processor.ColdPreviewExists(res.Hothash) {
		t.Error("preview owned by a committed photo was deleted")
	}

	orphan := mediatest.WriteFile(t, dir, "orphan.jpg", mediatest.JPEG(64, 48, 31))
	hot, err := env.processor.GenerateHotPreview(orphan)
	if err != nil {
		t.Fatalf("GenerateHotPreview: %v", err)
	}
	if _, err := env.processor.GenerateColdPreview(orphan, hot.Hothash, 0, 0); err != nil {
		t.Fatalf("GenerateColdPreview: %v", err)
	}
	env.registration.releaseColdPreview(hot.Hothash)
	if env.processor.ColdPreviewExists(hot.Hothash) {
		t.Error("unowned preview was kept")
	}
}

func TestRegisterRawGroupUsesSensorDimensions(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	raw := mediatest.RAW(6000, 4000, mediatest.JPEG(320, 213, 8), mediatest.Exif{
		Model:            "Z 9",
		DateTimeOriginal: "2024:02:03 04:05:06",
	})
	path := mediatest.WriteFile(t, dir, "DSC_0001.NEF", raw)
	session := env.newSession(t, dir)

	res, err := env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{MasterPath: path}, defaultSnapshot)
	if err != nil || res.Status != StatusRegistered {
		t.Fatalf("RegisterGroup = %+v, %v", res, err)
	}
	photo, err := env.photos.Get(*res.PhotoID)
	if err != nil {
		t.Fatalf("Get photo: %v", err)
	}
	if photo.Width == nil || *photo.Width != 6000 || *photo.Height != 4000 {
		t.Errorf("dims = %v x %v, want 6000x4000", photo.Width, photo.Height)
	}
	if photo.CameraModel == nil || *photo.CameraModel != "Z 9" {
		t.Errorf("camera model = %v", photo.CameraModel)
	}
	if photo.TakenAt == nil || photo.TakenAt.Year() != 2024 {
		t.Errorf("taken at = %v", photo.TakenAt)
	}
	if !env.processor.ColdPreviewExists(res.Hothash) {
		t.Error("cold preview not written")
	}
}

func TestRegisterGroupUnknownOrClosedSession(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	path := mediatest.WriteFile(t, dir, "a.jpg", mediatest.JPEG(32, 32, 1))

	_, err := env.registration.RegisterGroup(context.Background(), uuid.New(), GroupRequest{MasterPath: path}, defaultSnapshot)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown session err = %v", err)
	}

	session := env.newSession(t, dir)
	if err := env.sessions.Cancel(session.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_, err = env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{MasterPath: path}, defaultSnapshot)
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("cancelled session err = %v", err)
	}
}

func TestEventIDAbsentVersusNull(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	event, err := env.events.Create(CreateEventRequest{Name: "Wedding"})
	if err != nil {
		t.Fatalf("Create event: %v", err)
	}
	session, err := env.sessions.Create(CreateSessionRequest{SourcePath: dir, DefaultEventID: &event.ID})
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	var absent, null GroupRequest
	if err := json.Unmarshal([]byte(fmt.Sprintf(`{"master_path":%q}`, mediatest.WriteFile(t, dir, "a.jpg", mediatest.JPEG(48, 48, 1)))), &absent); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(fmt.Sprintf(`{"master_path":%q,"event_id":null}`, mediatest.WriteFile(t, dir, "b.jpg", mediatest.JPEG(48, 48, 7)))), &null); err != nil {
		t.Fatal(err)
	}

	resA, err := env.registration.RegisterGroup(context.Background(), session.ID, absent, defaultSnapshot)
	if err != nil || resA.Status != StatusRegistered {
		t.Fatalf("absent = %+v, %v", resA, err)
	}
	resB, err := env.registration.RegisterGroup(context.Background(), session.ID, null, defaultSnapshot)
	if err != nil || resB.Status != StatusRegistered {
		t.Fatalf("null = %+v, %v", resB, err)
	}

	photoA, _ := env.photos.Get(*resA.PhotoID)
	photoB, _ := env.photos.Get(*resB.PhotoID)
	if photoA.EventID == nil || *photoA.EventID != event.ID {
		t.Errorf("absent event_id should inherit session default, got %v", photoA.EventID)
	}
	if photoB.EventID != nil {
		t.Errorf("explicit null event_id should clear the event, got %v", photoB.EventID)
	}
}

func TestRegisterUploadStagesAndCleansUp(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t, "/client/card")
	clientPath := "/client/card/DSC_0042.JPG"

	res, err := env.registration.RegisterUpload(context.Background(), session.ID,
		GroupRequest{MasterPath: clientPath}, bytes.NewReader(mediatest.JPEG(80, 60, 3)), defaultSnapshot)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	if res.Status != StatusRegistered {
		t.Fatalf("result = %+v", res)
	}

	photo, err := env.photos.Get(*res.PhotoID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(photo.ImageFiles) != 1 || photo.ImageFiles[0].FilePath != clientPath {
		t.Errorf("image files = %+v", photo.ImageFiles)
	}
	if s := env.reloadSession(t, session); s.Status != models.SessionStatusUploading {
		t.Errorf("status = %s, want uploading", s.Status)
	}

	entries, err := os.ReadDir(filepath.Join(env.store.BasePath(), "uploads"))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staged uploads left behind: %d", len(entries))
	}

	if _, err := env.registration.RegisterUpload(context.Background(), session.ID, GroupRequest{MasterPath: clientPath}, nil, defaultSnapshot); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil body err = %v", err)
	}
}

func TestPhotographerOverrideAndDeleteRestriction(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	path := mediatest.WriteFile(t, dir, "a.jpg", mediatest.JPEG(40, 40, 5))
	session := env.newSession(t, dir)

	p, err := env.photographers.Create(CreatePhotographerRequest{Name: "Ada"})
	if err != nil {
		t.Fatalf("Create photographer: %v", err)
	}
	res, err := env.registration.RegisterGroup(context.Background(), session.ID, GroupRequest{MasterPath: path, PhotographerID: &p.ID}, defaultSnapshot)
	if err != nil || res.Status != StatusRegistered {
		t.Fatalf("RegisterGroup = %+v, %v", res, err)
	}
	photo, _ := env.photos.Get(*res.PhotoID)
	if photo.PhotographerID != p.ID {
		t.Errorf("photographer = %s, want %s", photo.PhotographerID, p.ID)
	}

	err = env.photographers.Delete(p.ID)
	if !errors.Is(err, ErrPhotographerInUse) || !errors.Is(err, ErrConflict) {
		t.Errorf("delete in-use photographer err = %v", err)
	}
	if err := env.photographers.Delete(session.DefaultPhotographerID); !errors.Is(err, ErrConflict) {
		t.Errorf("delete unknown photographer err = %v", err)
	}

	idle, _ := env.photographers.Create(CreatePhotographerRequest{Name: "Idle"})
	if err := env.photographers.Delete(idle.ID); err != nil {
		t.Errorf("delete unused photographer: %v", err)
	}
	if _, err := env.photographers.Get(idle.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted photographer still readable: %v", err)
	}
}

func TestOptionalIDJSON(t *testing.T) {
	var req GroupRequest
	if err := json.Unmarshal([]byte(`{"master_path":"/a.jpg"}`), &req); err != nil {
		t.Fatal(err)
	}
	if req.EventID.Set {
		t.Error("absent field reported as set")
	}
	id := uuid.New()
	if err := json.Unmarshal([]byte(fmt.Sprintf(`{"event_id":%q}`, id)), &req); err != nil {
		t.Fatal(err)
	}
	if !req.EventID.Set || req.EventID.Value == nil || *req.EventID.Value != id {
		t.Errorf("event id = %+v", req.EventID)
	}
	if err := json.Unmarshal([]byte(`{"event_id":"nope"}`), &req); err == nil {
		t.Error("expected error for malformed id")
	}

	def := uuid.New()
	if got := (OptionalID{}).Resolve(&def); got == nil || *got != def {
		t.Errorf("unset Resolve = %v", got)
	}
	if got := Null().Resolve(&def); got != nil {
		t.Errorf("null Resolve = %v", got)
	}
	if got := Some(id).Resolve(&def); got == nil || *got != id {
		t.Errorf("some Resolve = %v", got)
	}
}
