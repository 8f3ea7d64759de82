// Command ledgerctl runs operator tasks against the ledger store: CSV
// import and export, reset, standings and share links.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/okian/fantavacanza/internal/adapters/repository"
	app "github.com/okian/fantavacanza/internal/app"
	"github.com/okian/fantavacanza/internal/config"
	"github.com/okian/fantavacanza/pkg/logger"
	"github.com/spf13/cobra"
)

const programName = "ledgerctl"

type globalFlags struct {
	store  string
	dbPath string
	debug  bool
}

func main() {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	var cfg *config.Config

	root := &cobra.Command{
		Use:           programName,
		Short:         "Operate the fantavacanza points ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := "warn"
			if flags.debug {
				level = "debug"
			}
			_ = logger.SetLevelString(level)

			loaded, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if flags.store != "" {
				loaded.Store = flags.store
			}
			if flags.dbPath != "" {
				loaded.DatabasePath = flags.dbPath
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flags.store, "store", "", "store backend (memory or sqlite); defaults to the configured one")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "sqlite database path; defaults to the configured one")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	conf := func() *config.Config { return cfg }
	root.AddCommand(
		importCommand(conf),
		exportCommand(conf),
		resetCommand(conf),
		standingsCommand(conf),
		logCommand(conf),
		shareCommand(conf),
	)
	return root
}

// withService opens the configured store, starts a service over it and runs
// fn. The store does not watch for foreign writes: commands are one-shot.
func withService(ctx context.Context, cfg *config.Config, fn func(*app.Service) error) error {
	store, err := repository.Open(cfg.Store, cfg.DatabasePath, repository.WithPollInterval(0))
	if err != nil {
		return err
	}
	defer store.Close()

	svc := app.New(store,
		app.WithLogger(logger.Named(programName)),
		app.WithSynonyms(cfg.Synonyms()),
		app.WithLocale(cfg.LocaleTag()),
		app.WithSeed(cfg.SeedRoster()),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithStoreName(cfg.Store),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()
	return fn(svc)
}
