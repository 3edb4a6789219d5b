package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/camden-git/photocatalog/services"
)

var (
	importName         string
	importPhotographer string
	importEvent        string
	importNoRecursive  bool

	importCmd = &cobra.Command{
		Use:   "import <source-dir>",
		Short: "Scan a directory and register every photo group in a new input session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildImportRequest(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session, err := a.sessions.Create(req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s importing %s\n", session.ID, session.SourcePath)

			res, err := a.sessions.Import(ctx, session.ID)
			if err != nil {
				if failErr := a.sessions.Fail(session.ID, err.Error()); failErr != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "cannot mark session failed:", failErr)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %d, duplicates %d, errors %d\n", res.Registered, res.Duplicates, res.Errors)
			return nil
		},
	}
)

func buildImportRequest(source string) (services.CreateSessionRequest, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return services.CreateSessionRequest{}, err
	}
	req := services.CreateSessionRequest{SourcePath: abs}
	if importName != "" {
		req.Name = &importName
	}
	if importNoRecursive {
		recursive := false
		req.Recursive = &recursive
	}
	if importPhotographer != "" {
		id, err := uuid.Parse(importPhotographer)
		if err != nil {
			return req, fmt.Errorf("invalid --photographer: %w", err)
		}
		req.DefaultPhotographerID = &id
	}
	if importEvent != "" {
		id, err := uuid.Parse(importEvent)
		if err != nil {
			return req, fmt.Errorf("invalid --event: %w", err)
		}
		req.DefaultEventID = &id
	}
	return req, nil
}

func registerImportCommand() {
	importCmd.Flags().StringVar(&importName, "name", "", "session name")
	importCmd.Flags().StringVar(&importPhotographer, "photographer", "", "default photographer id")
	importCmd.Flags().StringVar(&importEvent, "event", "", "default event id")
	importCmd.Flags().BoolVar(&importNoRecursive, "no-recursive", false, "only scan the top level of the source")
	rootCmd.AddCommand(importCmd)
}
