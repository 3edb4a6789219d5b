package handlers

import (
	"net/http"

	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/services"
)

type PhotographerHandler struct {
	Service *services.PhotographerService
}

func (ph *PhotographerHandler) CreatePhotographer(w http.ResponseWriter, r *http.Request) {
	var req services.CreatePhotographerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := ph.Service.Create(req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (ph *PhotographerHandler) ListPhotographers(w http.ResponseWriter, r *http.Request) {
	list, err := ph.Service.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Photographer{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (ph *PhotographerHandler) GetPhotographer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "photographer_id")
	if !ok {
		return
	}
	p, err := ph.Service.Get(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (ph *PhotographerHandler) DeletePhotographer(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "photographer_id")
	if !ok {
		return
	}
	if err := ph.Service.Delete(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
