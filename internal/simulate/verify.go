package simulate

import (
	"context"
	"fmt"
	"math"
	"sort"
)

const epsilon = 1e-9

// verify checks the leaderboard totals and ordering and the last series
// point against the expected totals.
func verify(ctx context.Context, c *client, expected map[string]float64) error {
	var board []standing
	if err := c.getJSON(ctx, "/leaderboard", &board); err != nil {
		return err
	}
	for _, s := range board {
		if want := expected[s.PlayerID]; math.Abs(s.Total-want) > epsilon {
			return fmt.Errorf("player %s: leaderboard total %v, expected %v", s.PlayerID, s.Total, want)
		}
	}
	if !sort.SliceIsSorted(board, func(i, j int) bool { return board[i].Total > board[j].Total }) {
		return fmt.Errorf("leaderboard is not ordered by total")
	}
	for i, s := range board {
		if s.Rank != i+1 {
			return fmt.Errorf("rank %d at position %d", s.Rank, i+1)
		}
	}

	var series []seriesPoint
	if err := c.getJSON(ctx, "/series", &series); err != nil {
		return err
	}
	if len(series) == 0 {
		return nil
	}
	last := series[len(series)-1]
	for id, want := range expected {
		if got := last.Values[id]; math.Abs(got-want) > epsilon {
			return fmt.Errorf("player %s: series ends at %v, expected %v", id, got, want)
		}
	}
	return nil
}
