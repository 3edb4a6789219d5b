package handlers

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/media"
)

// ColdPreviewServer serves cold previews addressed by hothash, e.g.
//
//	r.Get("/coldpreviews/{hothash}", ColdPreviewServer(store))
//
// The hothash is validated before any path is built from it.
func ColdPreviewServer(store media.Store) http.HandlerFunc {
	log := logging.Component("assets")

	return func(w http.ResponseWriter, r *http.Request) {
		hothash := chi.URLParam(r, "hothash")
		rel, err := media.ColdPreviewRelPath(hothash)
		if err != nil || !isHothash(hothash) {
			WriteAPIError(w, http.StatusBadRequest, "invalid_hothash", "Invalid hothash")
			return
		}

		fullPath, err := store.GetFullPath(media.AssetTypeColdPreview, rel)
		if err != nil {
			WriteAPIError(w, http.StatusForbidden, "forbidden", "Forbidden")
			log.Warn().Err(err).Str("hothash", hothash).Msg("cold preview path rejected")
			return
		}

		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Cold preview not found")
			return
		} else if err != nil {
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			log.Error().Err(err).Str("path", fullPath).Msg("error stating cold preview")
			return
		}

		// previews are content-addressed, so they never change
		cacheDuration := 30 * 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))
		w.Header().Set("Content-Type", "image/jpeg")

		http.ServeFile(w, r, fullPath)
	}
}

func isHothash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
