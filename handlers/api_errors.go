package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/scanner"
	"github.com/camden-git/photocatalog/services"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps service and media sentinels onto HTTP statuses.
// Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, scanner.ErrSourceNotFound):
		WriteAPIError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrSessionClosed):
		WriteAPIError(w, http.StatusConflict, "session_closed", err.Error())
	case errors.Is(err, services.ErrConflict):
		WriteAPIError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		WriteAPIError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, media.ErrDecodeFailure), errors.Is(err, media.ErrUnsupportedContainer):
		WriteAPIError(w, http.StatusUnprocessableEntity, "unprocessable", err.Error())
	default:
		logging.Component("http").Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logging.Component("http").Warn().Err(err).Msg("error encoding JSON response")
		}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
