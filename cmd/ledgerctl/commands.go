package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	app "github.com/okian/fantavacanza/internal/app"
	"github.com/okian/fantavacanza/internal/config"
	"github.com/okian/fantavacanza/internal/domain/auth"
	"github.com/okian/fantavacanza/internal/domain/interchange"
	"github.com/spf13/cobra"
)

var errNotConfirmed = errors.New("refusing to reset without --yes")

func importCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace activities, and players when present, from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), cfg(), func(svc *app.Service) error {
				sum, err := svc.ImportCSV(cmd.Context(), auth.Editor(), string(text))
				if err != nil {
					return err
				}
				replaced := "kept"
				if sum.PlayersReplaced {
					replaced = "replaced"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d activities; %d players (%s)\n", sum.Activities, sum.Players, replaced)
				return nil
			})
		},
	}
}

func exportCommand(cfg func() *config.Config) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the audit log as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), cfg(), func(svc *app.Service) error {
				if output == "" {
					return svc.ExportLog(cmd.Context(), cmd.OutOrStdout())
				}
				if output == "." {
					output = svc.ExportFilename()
				}
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := svc.ExportLog(cmd.Context(), f); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "wrote", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file; "." uses the dated default name (default stdout)`)
	return cmd
}

func resetCommand(cfg func() *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every entry and restart day numbering today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNotConfirmed
			}
			return withService(cmd.Context(), cfg(), func(svc *app.Service) error {
				if err := svc.ResetAll(cmd.Context(), auth.Editor()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ledger reset; day 1 starts", svc.Stats(cmd.Context()).Epoch.Format("2006-01-02"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func standingsCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "standings",
		Short: "Print the leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), cfg(), func(svc *app.Service) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tPLAYER\tTOTAL\tBEST\tENTRIES")
				for _, s := range svc.Leaderboard(cmd.Context()) {
					best := "-"
					if s.HasEvents() {
						best = interchange.FormatPoints(s.MaxSingle)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", s.Rank, s.Player.Name, interchange.FormatPoints(s.Total), best, s.Events)
				}
				return tw.Flush()
			})
		},
	}
}

func logCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Print the audit log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), cfg(), func(svc *app.Service) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DAY\tTIME\tPLAYER\tACTIVITY\tPOINTS\tNOTE")
				for _, e := range svc.AuditLog(cmd.Context()) {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
						e.Day, e.Timestamp.Local().Format("15:04"), e.PlayerName, e.ActivityName,
						interchange.FormatPoints(e.Points), e.Note)
				}
				return tw.Flush()
			})
		},
	}
}

func shareCommand(cfg func() *config.Config) *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:     "share",
		Aliases: []string{"token"},
		Short:   "Print the editor and viewer links, minting the editor token if needed",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			if base == "" {
				base = c.PublicURL
			}
			return withService(cmd.Context(), c, func(svc *app.Service) error {
				links, err := svc.ShareLinks(cmd.Context(), auth.Editor(), base, nil)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "editor:", links.Editor)
				fmt.Fprintln(cmd.OutOrStdout(), "viewer:", links.Viewer)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "public base URL (default from config)")
	return cmd
}
