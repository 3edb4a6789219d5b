package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/camden-git/photocatalog/services"
)

var (
	photographerWebsite string
	photographerDefault bool
	eventDate           string
	eventLocation       string

	photographersCmd = &cobra.Command{
		Use:   "photographers",
		Short: "Manage photographers",
	}

	photographersAddCmd = &cobra.Command{
		Use:   "add <name>",
		Short: "Add a photographer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			req := services.CreatePhotographerRequest{Name: strings.Join(args, " "), IsDefault: photographerDefault}
			if photographerWebsite != "" {
				req.Website = &photographerWebsite
			}
			p, err := a.photographers.Create(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}

	photographersListCmd = &cobra.Command{
		Use:   "ls",
		Short: "List photographers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.photographers.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDEFAULT\tUNKNOWN")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%t\n", p.ID, p.Name, p.IsDefault, p.IsUnknown)
			}
			return tw.Flush()
		},
	}

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Manage events",
	}

	eventsAddCmd = &cobra.Command{
		Use:   "add <name>",
		Short: "Add an event",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.CreateEventRequest{Name: strings.Join(args, " ")}
			if eventDate != "" {
				d, err := time.Parse("2006-01-02", eventDate)
				if err != nil {
					return fmt.Errorf("invalid --date, want YYYY-MM-DD: %w", err)
				}
				req.Date = &d
			}
			if eventLocation != "" {
				req.Location = &eventLocation
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			e, err := a.events.Create(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.ID)
			return nil
		},
	}

	eventsListCmd = &cobra.Command{
		Use:   "ls",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.events.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDATE")
			for _, e := range list {
				date := "-"
				if e.Date != nil {
					date = e.Date.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.Name, date)
			}
			return tw.Flush()
		},
	}
)

func registerPhotographerCommands() {
	photographersAddCmd.Flags().StringVar(&photographerWebsite, "website", "", "photographer website")
	photographersAddCmd.Flags().BoolVar(&photographerDefault, "default", false, "mark as the default photographer")
	photographersCmd.AddCommand(photographersAddCmd, photographersListCmd)
	rootCmd.AddCommand(photographersCmd)

	eventsAddCmd.Flags().StringVar(&eventDate, "date", "", "event date (YYYY-MM-DD)")
	eventsAddCmd.Flags().StringVar(&eventLocation, "location", "", "event location")
	eventsCmd.AddCommand(eventsAddCmd, eventsListCmd)
	rootCmd.AddCommand(eventsCmd)
}
