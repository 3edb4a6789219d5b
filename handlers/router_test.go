package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/camden-git/photocatalog/config"
	"github.com/camden-git/photocatalog/database"
	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/media/mediatest"
	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/repository"
	"github.com/camden-git/photocatalog/services"
	"github.com/camden-git/photocatalog/workers"
)

type testServer struct {
	handler http.Handler
	store   *media.LocalStorage
	queue   *workers.RegistrationQueue
	root    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Type: config.DatabaseTypeSQLite, Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := media.NewLocalStorage(t.TempDir(), map[media.AssetType]string{
		media.AssetTypeColdPreview: "coldpreviews",
		media.AssetTypeUpload:      "uploads",
	})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	processor := media.NewProcessor(store)
	extractor := media.NewExtractor()
	registration := services.NewRegistrationService(db, processor, extractor, store)

	queue := workers.NewRegistrationQueue(registration, 16, 2)
	copier := workers.NewFileCopier(db, 4)
	t.Cleanup(func() {
		queue.Stop()
		copier.Stop()
	})

	root := t.TempDir()
	handler := NewRouter(RouterConfig{
		Store:         store,
		Photographers: &PhotographerHandler{Service: services.NewPhotographerService(db)},
		Events:        &EventHandler{Service: services.NewEventService(db)},
		Sessions: &InputSessionHandler{
			Sessions:     services.NewInputSessionService(db, registration, 2),
			Registration: registration,
			Queue:        queue,
			Settings:     repository.NewSettingsRepository(db),
		},
		Photos:      &PhotoHandler{Service: services.NewPhotoService(db, processor)},
		FileCopy:    &FileCopyHandler{Service: services.NewFileCopyService(db, copier, extractor)},
		Directories: &DirectoryHandler{Root: root},
	})
	return &testServer{handler: handler, store: store, queue: queue, root: root}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp APIErrorResponse
	decode(t, rec, &resp)
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error, got %+v", resp)
	}
	return resp.Errors[0].Code
}

func TestPhotographerEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/photographers", map[string]string{"name": "Ada"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var created models.Photographer
	decode(t, rec, &created)
	if created.Name != "Ada" || created.ID == uuid.Nil {
		t.Errorf("created = %+v", created)
	}

	rec = ts.do(t, http.MethodPost, "/api/photographers", map[string]string{"name": "  "})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_input" {
		t.Errorf("blank name: status %d, body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, "/api/photographers", nil)
	var list []models.Photographer
	decode(t, rec, &list)
	var unknown *models.Photographer
	for i := range list {
		if list[i].IsUnknown {
			unknown = &list[i]
		}
	}
	if len(list) != 2 || unknown == nil {
		t.Fatalf("list = %+v", list)
	}

	rec = ts.do(t, http.MethodDelete, "/api/photographers/"+unknown.ID.String(), nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "conflict" {
		t.Errorf("delete unknown: status %d, body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodDelete, "/api/photographers/"+created.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status %d, body %s", rec.Code, rec.Body)
	}
}

func TestNotFoundAndInvalidIDs(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/input-sessions/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Errorf("missing session: status %d, body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, "/api/photos/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_id" {
		t.Errorf("bad id: status %d, body %s", rec.Code, rec.Body)
	}
}

func TestColdPreviewServing(t *testing.T) {
	ts := newTestServer(t)

	hothash := strings.Repeat("ab", 32)
	rel, err := media.ColdPreviewRelPath(hothash)
	if err != nil {
		t.Fatal(err)
	}
	full, err := ts.store.GetFullPath(media.AssetTypeColdPreview, rel)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, mediatest.JPEG(16, 16, 1), 0644); err != nil {
		t.Fatal(err)
	}

	rec := ts.do(t, http.MethodGet, "/api/coldpreviews/"+hothash, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("cache control = %q", cc)
	}

	rec = ts.do(t, http.MethodGet, "/api/coldpreviews/"+strings.Repeat("cd", 32), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing preview status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/coldpreviews/..%2F..%2Fetc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad hothash status = %d", rec.Code)
	}
}

func TestRegisterGroupByPath(t *testing.T) {
	ts := newTestServer(t)
	src := t.TempDir()
	path := mediatest.WriteFile(t, src, "a.jpg", mediatest.JPEG(64, 48, 3))

	rec := ts.do(t, http.MethodPost, "/api/input-sessions", map[string]string{"source_path": src})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body)
	}
	var session models.InputSession
	decode(t, rec, &session)

	body := map[string]string{"master_path": path, "master_type": "JPEG"}
	rec = ts.do(t, http.MethodPost, "/api/input-sessions/"+session.ID.String()+"/groups-by-path", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	var res services.GroupResult
	decode(t, rec, &res)
	if res.Status != services.StatusRegistered || res.PhotoID == nil {
		t.Fatalf("result = %+v", res)
	}

	rec = ts.do(t, http.MethodPost, "/api/input-sessions/"+session.ID.String()+"/groups-by-path", body)
	if rec.Code != http.StatusOK {
		t.Errorf("second register status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/photos/"+res.PhotoID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get photo: %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, "/api/coldpreviews/"+res.Hothash, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("cold preview of registered photo: %d", rec.Code)
	}
}

func TestRegisterGroupByPathRejections(t *testing.T) {
	ts := newTestServer(t)
	src := t.TempDir()
	good := mediatest.WriteFile(t, src, "a.jpg", mediatest.JPEG(64, 48, 3))
	broken := mediatest.WriteFile(t, src, "broken.jpg", []byte("not a jpeg"))

	rec := ts.do(t, http.MethodPost, "/api/input-sessions", map[string]string{"source_path": src})
	var session models.InputSession
	decode(t, rec, &session)
	groups := "/api/input-sessions/" + session.ID.String() + "/groups-by-path"

	rec = ts.do(t, http.MethodPost, groups, map[string]string{"master_path": broken, "master_type": "JPEG"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("undecodable master status = %d, body %s", rec.Code, rec.Body)
	}
	var res services.GroupResult
	decode(t, rec, &res)
	if res.Status != services.StatusError || res.Error == "" {
		t.Errorf("result = %+v", res)
	}

	rec = ts.do(t, http.MethodPost, groups, map[string]string{
		"master_path": good, "master_type": "JPEG", "photographer_id": uuid.NewString(),
	})
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Errorf("unknown photographer: status %d, body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, groups, map[string]string{"master_path": "", "master_type": "JPEG"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_input" {
		t.Errorf("empty master: status %d, body %s", rec.Code, rec.Body)
	}
}

func TestProcessSessionQueuesScannedGroups(t *testing.T) {
	ts := newTestServer(t)
	src := t.TempDir()
	mediatest.WriteFile(t, src, "a.jpg", mediatest.JPEG(64, 48, 5))
	mediatest.WriteFile(t, src, "b.jpg", mediatest.JPEG(64, 48, 90))

	rec := ts.do(t, http.MethodPost, "/api/input-sessions", map[string]string{"source_path": src})
	var session models.InputSession
	decode(t, rec, &session)
	base := "/api/input-sessions/" + session.ID.String()

	rec = ts.do(t, http.MethodPost, base+"/process", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("process: %d %s", rec.Code, rec.Body)
	}
	var queued struct {
		Queued   int `json:"queued"`
		Rejected int `json:"rejected"`
	}
	decode(t, rec, &queued)
	if queued.Queued != 2 || queued.Rejected != 0 {
		t.Fatalf("queued = %+v", queued)
	}
	ts.queue.Wait()

	rec = ts.do(t, http.MethodPost, base+"/complete", nil)
	var tally services.ProcessResult
	decode(t, rec, &tally)
	if tally.Registered != 2 {
		t.Errorf("tally = %+v", tally)
	}

	rec = ts.do(t, http.MethodGet, base+"/photos", nil)
	var photos []models.Photo
	decode(t, rec, &photos)
	if len(photos) != 2 {
		t.Errorf("photos = %d", len(photos))
	}
}

func TestDirectoryListingStaysInsideRoot(t *testing.T) {
	ts := newTestServer(t)
	if err := os.Mkdir(filepath.Join(ts.root, "card"), 0755); err != nil {
		t.Fatal(err)
	}
	mediatest.WriteFile(t, ts.root, "IMG_1.CR2", []byte("raw"))
	mediatest.WriteFile(t, ts.root, ".hidden", []byte("x"))

	rec := ts.do(t, http.MethodGet, "/api/system/directories?path=/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var listing DirectoryListing
	decode(t, rec, &listing)
	if len(listing.Entries) != 2 || !listing.Entries[0].IsDir || listing.Entries[1].Name != "IMG_1.CR2" {
		t.Fatalf("entries = %+v", listing.Entries)
	}

	rec = ts.do(t, http.MethodGet, "/api/system/directories?path=../../", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("parent escape should clamp to root, got %d", rec.Code)
	}
}

func TestUploadGroup(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/input-sessions", map[string]string{"source_path": t.TempDir()})
	var session models.InputSession
	decode(t, rec, &session)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("metadata", `{"master_path":"/card/DCIM/IMG_0001.JPG","master_type":"JPEG"}`); err != nil {
		t.Fatal(err)
	}
	part, err := mw.CreateFormFile("master_file", "IMG_0001.JPG")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(mediatest.JPEG(40, 30, 7))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/input-sessions/"+session.ID.String()+"/groups", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/input-sessions/"+session.ID.String()+"/groups", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart upload status = %d", rec.Code)
	}
}
