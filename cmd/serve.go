package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/camden-git/photocatalog/handlers"
	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/realtime"
	"github.com/camden-git/photocatalog/services"
	"github.com/camden-git/photocatalog/workers"
)

const (
	fileCopyQueueSize = 32
	shutdownTimeout   = 15 * time.Second
)

var (
	servePort int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the registration and file copy workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if servePort > 0 {
				cfg.Server.Port = servePort
			}
			return serve(cmd.Context())
		},
	}
)

func registerServeCommand() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides PHOTOCAT_SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.Component("server")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	hub := realtime.NewHub()
	go hub.Run()
	defer hub.Stop()

	queue := workers.NewRegistrationQueue(a.registration, cfg.RegistrationQueueSize, cfg.RegistrationWorkers)
	queue.Events = hub
	defer queue.Stop()

	copier := workers.NewFileCopier(a.db, fileCopyQueueSize)
	copier.Events = hub
	defer copier.Stop()

	router := handlers.NewRouter(handlers.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MetricsEnabled: cfg.MetricsEnabled,
		Store:          a.store,
		Hub:            hub,
		Photographers:  &handlers.PhotographerHandler{Service: a.photographers},
		Events:         &handlers.EventHandler{Service: a.events},
		Sessions: &handlers.InputSessionHandler{
			Sessions:     a.sessions,
			Registration: a.registration,
			Queue:        queue,
			Settings:     a.settings,
		},
		Photos:      &handlers.PhotoHandler{Service: a.photos},
		FileCopy:    &handlers.FileCopyHandler{Service: services.NewFileCopyService(a.db, copier, a.extractor)},
		Directories: &handlers.DirectoryHandler{Root: cfg.RootDirectory},
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// uploads and synchronous registrations can take a while
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Bool("metrics", cfg.MetricsEnabled).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown incomplete")
	}
	return nil
}
