// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/fantavacanza/internal/domain/ledger"
	"github.com/okian/fantavacanza/internal/domain/model"
	"github.com/okian/fantavacanza/internal/domain/types"
)

// eventRequest mirrors the OpenAPI schema for POST /events.
type eventRequest struct {
	RequestID  string          `json:"request_id"`
	PlayerID   string          `json:"player_id"`
	ActivityID string          `json:"activity_id"`
	Note       string          `json:"note"`
	Day        json.RawMessage `json:"day,omitempty"`
}

// day accepts a number, a numeric string or nothing. Unusable values mean
// "derive the day from the clock".
func (e eventRequest) day() *float64 {
	raw := bytes.TrimSpace(e.Day)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ledger.ParseDay(s)
	}
	return ledger.ParseDay(string(raw))
}

type eventPatchRequest struct {
	Note       *string `json:"note"`
	ActivityID *string `json:"activity_id"`
}

type ackResponse struct {
	Status    string      `json:"status"`
	Duplicate bool        `json:"duplicate"`
	Event     model.Event `json:"event"`
}

type undoResponse struct {
	Removed bool         `json:"removed"`
	Event   *model.Event `json:"event,omitempty"`
}

// handleListEvents handles GET /events and returns the audit log, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	log := s.deps.AuditLog(r.Context())
	if log == nil {
		log = []types.LogEntry{}
	}
	writeJSON(w, http.StatusOK, log)
}

// handlePostEvent handles POST /events. A request_id (or Idempotency-Key
// header) makes retries safe.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	if !s.decode(w, r, op, &req) {
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" || strings.TrimSpace(req.ActivityID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op+": missing player_id or activity_id", ErrBadRequest))
		return
	}
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	e, dup, err := s.deps.AppendOnce(r.Context(), s.gate(w, r), requestID, ledger.Entry{
		PlayerID:   strings.TrimSpace(req.PlayerID),
		ActivityID: strings.TrimSpace(req.ActivityID),
		Note:       req.Note,
		Day:        req.day(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, Event: e})
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "created", Event: e})
}

// handleUndo handles POST /events/undo.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	e, removed, err := s.deps.UndoLast(r.Context(), s.gate(w, r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := undoResponse{Removed: removed}
	if removed {
		resp.Event = &e
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePatchEvent handles PATCH /events/{id}.
func (s *Server) handlePatchEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_event"
	var req eventPatchRequest
	if !s.decode(w, r, op, &req) {
		return
	}
	e, err := s.deps.UpdateEvent(r.Context(), s.gate(w, r), r.PathValue("id"), ledger.Patch{
		Note:       req.Note,
		ActivityID: req.ActivityID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleDeleteEvent handles DELETE /events/{id}.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.RemoveEvent(r.Context(), s.gate(w, r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReset handles POST /reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ResetAll(r.Context(), s.gate(w, r)); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Stats(r.Context()))
}
