// Command simulate drives a running ledger server with a simulated holiday
// and verifies the served standings.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/okian/fantavacanza/internal/simulate"
	"github.com/okian/fantavacanza/pkg/logger"
	"github.com/spf13/cobra"
)

// Default configuration constants.
const (
	defaultDays         = 7
	defaultEventsPerDay = 200
	defaultRetryRatio   = 0.1
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultTestTimeout  = 10 * time.Minute
)

func main() {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cfg := &simulate.Config{}
	cmd := &cobra.Command{
		Use:          "simulate",
		Short:        "Record a simulated holiday through the HTTP API and verify the standings",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Days < 1 || cfg.EventsPerDay < 1 {
				return fmt.Errorf("days and events must be positive")
			}
			if cfg.RetryRatio < 0 || cfg.RetryRatio > 1 {
				return fmt.Errorf("retry ratio %v outside [0,1]", cfg.RetryRatio)
			}
			if cfg.Seed == 0 {
				cfg.Seed = uint64(time.Now().UnixNano())
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTestTimeout)
			defer cancel()

			stats, err := simulate.Run(ctx, cfg)
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d submissions failed", stats.Failed, stats.Generated)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.StringVar(&cfg.Token, "token", os.Getenv("FANTAVACANZA_TOKEN"), "Editor token")
	f.IntVar(&cfg.Days, "days", defaultDays, "Number of days to simulate")
	f.IntVar(&cfg.EventsPerDay, "events", defaultEventsPerDay, "Entries recorded per day")
	f.Float64Var(&cfg.RetryRatio, "retry", defaultRetryRatio, "Share of entries resent with the same request id")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.Uint64Var(&cfg.Seed, "seed", 0, "Generator seed; zero picks one from the clock")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Log every failed submission")
	return cmd
}
