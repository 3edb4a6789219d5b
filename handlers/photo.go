package handlers

import (
	"net/http"
	"strconv"

	"github.com/camden-git/photocatalog/services"
)

type PhotoHandler struct {
	Service *services.PhotoService
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

type ratingRequest struct {
	Rating *int `json:"rating"`
}

func (ph *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "photo_id")
	if !ok {
		return
	}
	photo, err := ph.Service.Get(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

// DeletePhoto moves the photo to the trash.
func (ph *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "photo_id")
	if !ok {
		return
	}
	if err := ph.Service.SoftDelete(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ph *PhotoHandler) RestorePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "photo_id")
	if !ok {
		return
	}
	if err := ph.Service.Restore(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ph *PhotoHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	n, err := ph.Service.EmptyTrash()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (ph *PhotoHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "photo_id")
	if !ok {
		return
	}
	var req tagsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tags, err := ph.Service.SetTags(id, req.Tags)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tagsRequest{Tags: tags})
}

func (ph *PhotoHandler) SetRating(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "photo_id")
	if !ok {
		return
	}
	var req ratingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := ph.Service.SetRating(id, req.Rating); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// FindSimilar accepts an optional max_distance query parameter.
func (ph *PhotoHandler) FindSimilar(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "photo_id")
	if !ok {
		return
	}
	maxDistance := 0
	if v := r.URL.Query().Get("max_distance"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 64 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_max_distance", "max_distance must be an integer between 0 and 64")
			return
		}
		maxDistance = n
	}
	matches, err := ph.Service.FindSimilar(id, maxDistance)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (ph *PhotoHandler) ComputePerceptualHashes(w http.ResponseWriter, r *http.Request) {
	res, err := ph.Service.ComputeMissingPerceptualHashes()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
