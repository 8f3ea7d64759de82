package interchange

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/fantavacanza/internal/domain/model"
)

// DefaultPalette is the round-robin color list for imported players.
var DefaultPalette = []string{"#ef4444", "#3b82f6", "#10b981", "#f59e0b", "#8b5cf6"}

// DefaultMaxPlayers caps the roster size of an import.
const DefaultMaxPlayers = 12

// Synonyms configures how import headers are recognised. Matching is
// case-insensitive on trimmed header cells.
type Synonyms struct {
	Name       []string
	Points     []string
	ID         []string
	Aux        []string // known columns that are neither players nor activity fields
	Palette    []string
	MaxPlayers int
}

// DefaultSynonyms returns the stock header vocabulary.
func DefaultSynonyms() Synonyms {
	return Synonyms{
		Name:       []string{"attivita", "attività", "name"},
		Points:     []string{"punteggio", "points"},
		ID:         []string{"id", "activity_id"},
		Aux:        []string{"premi extra"},
		Palette:    append([]string(nil), DefaultPalette...),
		MaxPlayers: DefaultMaxPlayers,
	}
}

// Result is the outcome of an import. Players is empty when the document
// carried no player columns, in which case the roster keeps its players.
type Result struct {
	Activities []model.Activity
	Players    []model.Player
}

func setOf(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return m
}

func findColumn(header []string, set map[string]struct{}) int {
	for i, h := range header {
		if _, ok := set[h]; ok {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// ParsePoints reads a number accepting a comma as decimal separator.
// Anything unparsable is 0.
func ParsePoints(raw string) float64 {
	raw = strings.Replace(strings.TrimSpace(raw), ",", ".", 1)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Import turns a parsed table into replacement roster data.
func Import(t Table, syn Synonyms) (Result, error) {
	lc := make([]string, len(t.Header))
	for i, h := range t.Header {
		lc[i] = strings.ToLower(strings.TrimSpace(h))
	}
	names, points, ids, aux := setOf(syn.Name), setOf(syn.Points), setOf(syn.ID), setOf(syn.Aux)

	idxName := findColumn(lc, names)
	idxPts := findColumn(lc, points)
	idxID := findColumn(lc, ids)

	activities := make([]model.Activity, 0, len(t.Rows))
	for i, row := range t.Rows {
		id := strings.TrimSpace(cell(row, idxID))
		if id == "" {
			id = fmt.Sprintf("CSV_%d", i+1)
		}
		name := fmt.Sprintf("Attività %d", i+1)
		if idxName >= 0 {
			name = strings.TrimSpace(cell(row, idxName))
		}
		if name == "" {
			continue
		}
		activities = append(activities, model.Activity{ID: id, Name: name, Points: ParsePoints(cell(row, idxPts))})
	}
	if len(activities) == 0 {
		return Result{}, fmt.Errorf("no activities found: %w", ErrFormat)
	}

	return Result{Activities: activities, Players: playerColumns(t.Header, lc, syn, names, points, ids, aux)}, nil
}

func playerColumns(header, lc []string, syn Synonyms, sets ...map[string]struct{}) []model.Player {
	palette := syn.Palette
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	limit := syn.MaxPlayers
	if limit <= 0 {
		limit = DefaultMaxPlayers
	}

	var players []model.Player
outer:
	for i, h := range lc {
		if h == "" {
			continue
		}
		for _, set := range sets {
			if _, ok := set[h]; ok {
				continue outer
			}
		}
		if len(players) == limit {
			break
		}
		n := len(players)
		players = append(players, model.Player{
			ID:    fmt.Sprintf("P%d", n+1),
			Name:  strings.TrimSpace(header[i]),
			Color: palette[n%len(palette)],
		})
	}
	return players
}
