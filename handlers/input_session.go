package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/repository"
	"github.com/camden-git/photocatalog/scanner"
	"github.com/camden-git/photocatalog/services"
	"github.com/camden-git/photocatalog/workers"
)

const maxUploadMemory = 32 << 20

type InputSessionHandler struct {
	Sessions     *services.InputSessionService
	Registration *services.RegistrationService
	Queue        *workers.RegistrationQueue
	Settings     repository.SettingsRepositoryInterface
}

type checkRequest struct {
	Paths []string `json:"paths"`
}

type processRequest struct {
	Groups []scanner.FileGroup `json:"groups"`
}

type processResponse struct {
	Queued   int `json:"queued"`
	Rejected int `json:"rejected"`
}

func groupStatusCode(res services.GroupResult) int {
	switch res.Status {
	case services.StatusRegistered:
		return http.StatusCreated
	case services.StatusError:
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}

func (h *InputSessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req services.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.Sessions.Create(req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *InputSessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Sessions.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.InputSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *InputSessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	s, err := h.Sessions.Get(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *InputSessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	if err := h.Sessions.Delete(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InputSessionHandler) ScanSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	res, err := h.Sessions.Scan(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if res.Groups == nil {
		res.Groups = []scanner.FileGroup{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InputSessionHandler) CheckPaths(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	var req checkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Sessions.Check(id, req.Paths)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RegisterGroupByPath registers a group whose files the server can read
// directly.
func (h *InputSessionHandler) RegisterGroupByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	var req services.GroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Registration.RegisterGroup(r.Context(), id, req, h.Settings.Snapshot())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, groupStatusCode(res), res)
}

// UploadGroup registers a group whose master arrives as the "master_file"
// part. The "metadata" field carries the group description as JSON.
func (h *InputSessionHandler) UploadGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid multipart body: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	var req services.GroupRequest
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_metadata", "Invalid metadata field: "+err.Error())
		return
	}
	file, header, err := r.FormFile("master_file")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "missing_file", "Missing master_file part")
		return
	}
	defer file.Close()
	if req.MasterPath == "" {
		req.MasterPath = header.Filename
	}

	res, err := h.Registration.RegisterUpload(r.Context(), id, req, file, h.Settings.Snapshot())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, groupStatusCode(res), res)
}

// ProcessSession queues groups for background registration and returns
// immediately. Without groups in the body the session source is scanned.
func (h *InputSessionHandler) ProcessSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return
	}

	groups := req.Groups
	if len(groups) == 0 {
		scan, err := h.Sessions.Scan(id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		groups = scan.Groups
	}
	if err := h.Sessions.StartProcessing(id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	snap := h.Settings.Snapshot()
	var resp processResponse
	for _, g := range groups {
		job := workers.RegistrationJob{SessionID: id, Request: services.RequestFromGroup(g), Settings: snap}
		if h.Queue.QueueJob(job) {
			resp.Queued++
		} else {
			resp.Rejected++
		}
	}
	logging.Component("http").Info().Str("session", id.String()).Int("queued", resp.Queued).Int("rejected", resp.Rejected).Msg("session groups queued")
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *InputSessionHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	res, err := h.Sessions.Complete(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InputSessionHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	if err := h.Sessions.Cancel(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InputSessionHandler) ListSessionErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	errs, err := h.Sessions.ListErrors(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if errs == nil {
		errs = []models.SessionError{}
	}
	writeJSON(w, http.StatusOK, errs)
}

func (h *InputSessionHandler) ListSessionPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	photos, err := h.Sessions.ListPhotos(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if photos == nil {
		photos = []models.Photo{}
	}
	writeJSON(w, http.StatusOK, photos)
}

func (h *InputSessionHandler) ListSessionDuplicates(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	dups, err := h.Sessions.ListDuplicates(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if dups == nil {
		dups = []models.DuplicateFile{}
	}
	writeJSON(w, http.StatusOK, dups)
}
