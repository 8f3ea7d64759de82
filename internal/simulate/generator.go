package simulate

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// generate builds the entries of the run. Players and activities are drawn
// uniformly; the day sequence is ascending.
func generate(cfg *Config, players []player, activities []activity) []entry {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	out := make([]entry, 0, cfg.Days*cfg.EventsPerDay)
	for day := 1; day <= cfg.Days; day++ {
		for range cfg.EventsPerDay {
			p := players[rng.IntN(len(players))]
			a := activities[rng.IntN(len(activities))]
			out = append(out, entry{
				RequestID:  uuid.NewString(),
				PlayerID:   p.ID,
				ActivityID: a.ID,
				Day:        day,
			})
		}
	}
	return out
}

// retries picks the entries that are submitted a second time.
func retries(cfg *Config, entries []entry) []entry {
	n := int(float64(len(entries)) * cfg.RetryRatio)
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(cfg.Seed+1, cfg.Seed))
	idx := rng.Perm(len(entries))[:n]
	out := make([]entry, n)
	for i, j := range idx {
		out[i] = entries[j]
	}
	return out
}
