package handlers

import (
	"net/http"

	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/services"
)

type EventHandler struct {
	Service *services.EventService
}

func (eh *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req services.CreateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := eh.Service.Create(req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (eh *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := eh.Service.List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (eh *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "event_id")
	if !ok {
		return
	}
	e, err := eh.Service.Get(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEvent removes the event; its photos and sessions keep existing
// without it.
func (eh *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "event_id")
	if !ok {
		return
	}
	if err := eh.Service.Delete(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
