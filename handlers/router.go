package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/metrics"
	"github.com/camden-git/photocatalog/realtime"
)

// RouterConfig holds everything NewRouter mounts.
type RouterConfig struct {
	CORSOrigins    []string
	MetricsEnabled bool
	Store          media.Store
	Hub            *realtime.Hub

	Photographers *PhotographerHandler
	Events        *EventHandler
	Sessions      *InputSessionHandler
	Photos        *PhotoHandler
	FileCopy      *FileCopyHandler
	Directories   *DirectoryHandler
}

func NewRouter(rc RouterConfig) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   rc.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	if rc.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// uploads and synchronous registrations decode images, so only
		// the cheap routes get a timeout
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/photographers", func(r chi.Router) {
				r.Post("/", rc.Photographers.CreatePhotographer)
				r.Get("/", rc.Photographers.ListPhotographers)
				r.Get("/{photographer_id}", rc.Photographers.GetPhotographer)
				r.Delete("/{photographer_id}", rc.Photographers.DeletePhotographer)
			})

			r.Route("/events", func(r chi.Router) {
				r.Post("/", rc.Events.CreateEvent)
				r.Get("/", rc.Events.ListEvents)
				r.Get("/{event_id}", rc.Events.GetEvent)
				r.Delete("/{event_id}", rc.Events.DeleteEvent)
			})

			r.Route("/file-copy", func(r chi.Router) {
				r.Post("/suggest-name", rc.FileCopy.SuggestName)
				r.Post("/", rc.FileCopy.CreateOperation)
				r.Get("/", rc.FileCopy.ListOperations)
				r.Route("/{operation_id}", func(r chi.Router) {
					r.Get("/", rc.FileCopy.GetOperation)
					r.Get("/skips", rc.FileCopy.ListSkips)
					r.Delete("/", rc.FileCopy.CancelOperation)
					r.Patch("/link-session", rc.FileCopy.LinkSession)
				})
			})

			r.Get("/coldpreviews/{hothash}", ColdPreviewServer(rc.Store))
		})

		r.Route("/input-sessions", func(r chi.Router) {
			r.Post("/", rc.Sessions.CreateSession)
			r.Get("/", rc.Sessions.ListSessions)
			r.Route("/{session_id}", func(r chi.Router) {
				r.Get("/", rc.Sessions.GetSession)
				r.Delete("/", rc.Sessions.DeleteSession)
				r.Post("/scan", rc.Sessions.ScanSession)
				r.Post("/check", rc.Sessions.CheckPaths)
				r.Post("/groups", rc.Sessions.UploadGroup)
				r.Post("/groups-by-path", rc.Sessions.RegisterGroupByPath)
				r.Post("/process", rc.Sessions.ProcessSession)
				r.Post("/complete", rc.Sessions.CompleteSession)
				r.Post("/cancel", rc.Sessions.CancelSession)
				r.Get("/errors", rc.Sessions.ListSessionErrors)
				r.Get("/photos", rc.Sessions.ListSessionPhotos)
				r.Get("/duplicates", rc.Sessions.ListSessionDuplicates)
			})
		})

		r.Route("/photos", func(r chi.Router) {
			r.Post("/empty-trash", rc.Photos.EmptyTrash)
			r.Post("/compute-perceptual-hashes", rc.Photos.ComputePerceptualHashes)
			r.Route("/{photo_id}", func(r chi.Router) {
				r.Get("/", rc.Photos.GetPhoto)
				r.Post("/delete", rc.Photos.DeletePhoto)
				r.Post("/restore", rc.Photos.RestorePhoto)
				r.Put("/tags", rc.Photos.SetTags)
				r.Put("/rating", rc.Photos.SetRating)
				r.Get("/similar", rc.Photos.FindSimilar)
			})
		})

		r.Route("/system", func(r chi.Router) {
			r.With(middleware.Timeout(60*time.Second)).Get("/directories", rc.Directories.ListDirectory)
			r.Post("/scan-directory", rc.Directories.ScanDirectory)
		})

		if rc.Hub != nil {
			r.Get("/ws", rc.Hub.ServeWS)
		}
	})

	return r
}
