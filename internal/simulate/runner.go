package simulate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/fantavacanza/pkg/logger"
)

// Worker configuration constants.
const workerChannelMultiplier = 2

var errEmptyRoster = errors.New("the server has no players or no activities")

// Run executes the complete simulation.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, cfg.Token, cfg.Timeout)

	log.Info(ctx, "starting ledger simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("days", cfg.Days),
		logger.Int("eventsPerDay", cfg.EventsPerDay),
		logger.Int("workers", cfg.Workers),
		logger.Float64("retryRatio", cfg.RetryRatio))

	// Step 1: Check service health
	var health map[string]string
	if err := c.getJSON(ctx, "/healthz", &health); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Read roster and the baseline standings
	var (
		players    []player
		activities []activity
		baseline   []standing
	)
	if err := c.getJSON(ctx, "/players", &players); err != nil {
		return nil, fmt.Errorf("read players: %w", err)
	}
	if err := c.getJSON(ctx, "/activities", &activities); err != nil {
		return nil, fmt.Errorf("read activities: %w", err)
	}
	if len(players) == 0 || len(activities) == 0 {
		return nil, errEmptyRoster
	}
	if err := c.getJSON(ctx, "/leaderboard", &baseline); err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	stats.Players = len(players)

	// Step 3: Generate and submit entries, then resend a share of them
	entries := generate(cfg, players, activities)
	stats.Generated = len(entries)
	expected := make(map[string]float64, len(players))
	for _, s := range baseline {
		expected[s.PlayerID] = s.Total
	}
	submit(ctx, cfg, c, entries, stats, expected)
	submit(ctx, cfg, c, retries(cfg, entries), stats, nil)

	// Step 4: Verify the served views
	if err := verify(ctx, c, expected); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "simulation completed",
		logger.Int("generated", stats.Generated),
		logger.Int("created", stats.Created),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// submit posts entries with a worker pool. Points of created entries are
// added to expected when it is not nil.
func submit(ctx context.Context, cfg *Config, c *client, entries []entry, stats *Stats, expected map[string]float64) {
	if len(entries) == 0 {
		return
	}
	log := logger.Get().Named("simulate")
	workers := max(1, min(cfg.Workers, len(entries)))

	var mu sync.Mutex
	ch := make(chan entry, workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range ch {
				outcome, ack, err := c.post(ctx, e)
				if err != nil && cfg.Verbose {
					log.Warn(ctx, "submission failed", logger.String("request_id", e.RequestID), logger.Error(err))
				}
				mu.Lock()
				switch outcome {
				case "created":
					stats.Created++
					if expected != nil {
						expected[ack.Event.PlayerID] += ack.Event.Points
					}
				case "duplicate":
					stats.Duplicate++
				default:
					stats.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, e := range entries {
			select {
			case <-ctx.Done():
				return
			case ch <- e:
			}
		}
	}()
	wg.Wait()
}
