package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/services"
)

type FileCopyHandler struct {
	Service *services.FileCopyService
}

type suggestNameRequest struct {
	SourcePath    string `json:"source_path"`
	IncludeVideos bool   `json:"include_videos"`
}

type linkSessionRequest struct {
	InputSessionID uuid.UUID `json:"input_session_id"`
}

func (fh *FileCopyHandler) SuggestName(w http.ResponseWriter, r *http.Request) {
	var req suggestNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SourcePath == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_input", "Missing required field: source_path")
		return
	}
	res, err := fh.Service.SuggestName(req.SourcePath, req.IncludeVideos)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (fh *FileCopyHandler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var req services.CreateCopyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	op, err := fh.Service.Create(req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

func (fh *FileCopyHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := fh.Service.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if ops == nil {
		ops = []models.FileCopyOperation{}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(ops) {
			ops = ops[:n]
		}
	}
	writeJSON(w, http.StatusOK, ops)
}

func (fh *FileCopyHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "operation_id")
	if !ok {
		return
	}
	op, err := fh.Service.Get(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (fh *FileCopyHandler) ListSkips(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "operation_id")
	if !ok {
		return
	}
	skips, err := fh.Service.ListSkips(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if skips == nil {
		skips = []models.FileCopySkip{}
	}
	writeJSON(w, http.StatusOK, skips)
}

func (fh *FileCopyHandler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "operation_id")
	if !ok {
		return
	}
	if err := fh.Service.Cancel(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (fh *FileCopyHandler) LinkSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "operation_id")
	if !ok {
		return
	}
	var req linkSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	op, err := fh.Service.LinkSession(id, req.InputSessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}
