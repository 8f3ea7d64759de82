// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/fantavacanza/internal/adapters/repository"
	"github.com/okian/fantavacanza/internal/domain/auth"
	"github.com/okian/fantavacanza/internal/domain/dedupe"
	"github.com/okian/fantavacanza/internal/domain/interchange"
	"github.com/okian/fantavacanza/internal/domain/ledger"
	"github.com/okian/fantavacanza/internal/domain/model"
	"github.com/okian/fantavacanza/internal/domain/roster"
	"github.com/okian/fantavacanza/internal/domain/scoring"
	"github.com/okian/fantavacanza/internal/domain/types"
	"github.com/okian/fantavacanza/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Gate(ctx context.Context, b auth.Bootstrap, device auth.TokenStore) (*auth.Gate, error)
	Session(ctx context.Context, gate *auth.Gate) types.Session
	ShareLinks(ctx context.Context, gate *auth.Gate, base string, device auth.TokenStore) (auth.Links, error)

	Leaderboard(ctx context.Context) []scoring.Standing
	Series(ctx context.Context) []scoring.SeriesRow
	AuditLog(ctx context.Context) []types.LogEntry
	ExportLog(ctx context.Context, w io.Writer) error
	ExportFilename() string
	Stats(ctx context.Context) types.Stats

	AppendOnce(ctx context.Context, gate *auth.Gate, requestID string, in ledger.Entry) (model.Event, bool, error)
	UndoLast(ctx context.Context, gate *auth.Gate) (model.Event, bool, error)
	UpdateEvent(ctx context.Context, gate *auth.Gate, id string, patch ledger.Patch) (model.Event, error)
	RemoveEvent(ctx context.Context, gate *auth.Gate, id string) (model.Event, error)
	ResetAll(ctx context.Context, gate *auth.Gate) error
	ImportCSV(ctx context.Context, gate *auth.Gate, text string) (types.ImportSummary, error)

	Players(ctx context.Context) []model.Player
	Activities(ctx context.Context) []model.Activity
	UpdatePlayer(ctx context.Context, gate *auth.Gate, id string, patch roster.PlayerPatch) (model.Player, error)
	SetPlayerAvatar(ctx context.Context, gate *auth.Gate, id, ref string) (model.Player, error)
	AddActivity(ctx context.Context, gate *auth.Gate, name string, points float64) (model.Activity, error)
	UpdateActivity(ctx context.Context, gate *auth.Gate, id string, patch roster.ActivityPatch) (model.Activity, error)
}

// Server wires HTTP routes for the ledger API.
type Server struct {
	deps        Dependencies
	logger      logger.Logger
	publicURL   string
	tokenCookie string
	maxBody     int64

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		logger:        logger.Nop(),
		tokenCookie:   auth.TokenKey,
		maxBody:       1 << 20,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /session", MetricsMiddleware(s.handleSession, "session"))
	mux.HandleFunc("GET /share", MetricsMiddleware(s.handleShare, "share"))

	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.handleLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /series", MetricsMiddleware(s.handleSeries, "series"))

	mux.HandleFunc("GET /events", MetricsMiddleware(s.handleListEvents, "events"))
	mux.HandleFunc("POST /events", MetricsMiddleware(s.handlePostEvent, "events"))
	mux.HandleFunc("POST /events/undo", MetricsMiddleware(s.handleUndo, "events_undo"))
	mux.HandleFunc("PATCH /events/{id}", MetricsMiddleware(s.handlePatchEvent, "event"))
	mux.HandleFunc("DELETE /events/{id}", MetricsMiddleware(s.handleDeleteEvent, "event"))
	mux.HandleFunc("POST /reset", MetricsMiddleware(s.handleReset, "reset"))

	mux.HandleFunc("POST /import", MetricsMiddleware(s.handleImport, "import"))
	mux.HandleFunc("GET /export.csv", MetricsMiddleware(s.handleExport, "export"))

	mux.HandleFunc("GET /players", MetricsMiddleware(s.handleListPlayers, "players"))
	mux.HandleFunc("PATCH /players/{id}", MetricsMiddleware(s.handlePatchPlayer, "player"))
	mux.HandleFunc("PUT /players/{id}/avatar", MetricsMiddleware(s.handlePutAvatar, "player_avatar"))
	mux.HandleFunc("GET /activities", MetricsMiddleware(s.handleListActivities, "activities"))
	mux.HandleFunc("POST /activities", MetricsMiddleware(s.handlePostActivity, "activities"))
	mux.HandleFunc("PATCH /activities/{id}", MetricsMiddleware(s.handlePatchActivity, "activity"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps domain errors to a status and an error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrNotPermitted):
		return http.StatusForbidden, "not_permitted"
	case errors.Is(err, dedupe.ErrDuplicate):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, interchange.ErrFormat):
		return http.StatusBadRequest, "invalid_csv"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ledger.ErrValidation),
		errors.Is(err, roster.ErrInvalid):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, roster.ErrUnknownPlayer),
		errors.Is(err, roster.ErrUnknownActivity),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrPersistence):
		return http.StatusServiceUnavailable, "save_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return false
	}
	return true
}
